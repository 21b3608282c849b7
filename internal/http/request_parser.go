// Package http provides the JSON API over the ledger store.
//
// This file implements parsing of query parameters, transaction bodies and
// uploads shared by the handlers.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"gagyebu/internal/core"
)

// requestError is a client mistake that maps directly to a status code.
type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string { return e.message }

func badRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) error {
	return &requestError{status: http.StatusNotFound, message: fmt.Sprintf(format, args...)}
}

func unsupportedMedia(format string, args ...any) error {
	return &requestError{status: http.StatusUnsupportedMediaType, message: fmt.Sprintf(format, args...)}
}

// monthAll asks list endpoints for the whole ledger instead of one month.
const monthAll = "all"

// parseMonthParam reads ?month=YYYY-MM. An absent value falls back to def.
func parseMonthParam(r *http.Request, def string) (string, error) {
	ym := sanitizeInput(r.URL.Query().Get("month"))
	if ym == "" {
		return def, nil
	}
	if ym == monthAll {
		return monthAll, nil
	}
	if !core.ValidMonthKey(ym) {
		return "", badRequest("invalid month %q: expected YYYY-MM", ym)
	}
	return ym, nil
}

// parseFilter reads ?type=all|income|expense and ?q=.
func parseFilter(r *http.Request) core.Filter {
	q := r.URL.Query()
	return core.Filter{
		Type:  core.ParseFilterType(q.Get("type")),
		Query: sanitizeInput(q.Get("q")),
	}
}

// amountField accepts a JSON number or an entry-form string such as
// "12,000". Anything unparsable becomes zero and fails validation.
type amountField float64

func (a *amountField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := core.ParseAmount(s)
		if err != nil {
			*a = 0
			return nil
		}
		*a = amountField(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*a = amountField(v)
	return nil
}

// transactionRequest is the body of create and update calls.
type transactionRequest struct {
	ID       string         `json:"id"`
	Date     string         `json:"date"`
	Type     core.TxType    `json:"type"`
	Category string         `json:"category"`
	Amount   amountField    `json:"amount"`
	Memo     string         `json:"memo"`
	Merchant *core.Merchant `json:"merchant"`
}

// toTransaction trims free text and defaults an empty date to today (UTC).
func (req transactionRequest) toTransaction(now time.Time) core.Transaction {
	tx := core.Transaction{
		ID:       strings.TrimSpace(req.ID),
		Date:     strings.TrimSpace(req.Date),
		Type:     core.TxType(strings.ToLower(strings.TrimSpace(string(req.Type)))),
		Category: sanitizeInput(req.Category),
		Amount:   float64(req.Amount),
		Memo:     sanitizeInput(req.Memo),
		Merchant: req.Merchant,
	}
	if tx.Date == "" {
		tx.Date = core.Today(now)
	}
	return tx
}

// decodeJSON decodes a single JSON value from the request body.
func decodeJSON(r *http.Request, v any) error {
	if err := requireJSON(r); err != nil {
		return err
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return badRequest("request body is empty")
		}
		return badRequest("malformed JSON body: %v", err)
	}
	return nil
}

// requireJSON accepts an absent Content-Type, application/json and any
// +json suffix type.
func requireJSON(r *http.Request) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return unsupportedMedia("unparsable Content-Type %q", ct)
	}
	if mediaType == "application/json" || strings.HasSuffix(mediaType, "+json") {
		return nil
	}
	return unsupportedMedia("unsupported Content-Type %q: expected application/json", mediaType)
}

// uploadFormField names the multipart field that carries an import file.
const uploadFormField = "file"

// openUpload returns the import payload: the multipart "file" field when
// the request is a form upload, the raw body otherwise. The body must
// already be capped by http.MaxBytesReader.
func openUpload(r *http.Request, maxBytes int64) (io.ReadCloser, error) {
	if !isMultipart(r.Header.Get("Content-Type")) {
		return r.Body, nil
	}

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}
		return nil, badRequest("malformed multipart upload: %v", err)
	}
	f, _, err := r.FormFile(uploadFormField)
	if err != nil {
		return nil, badRequest("multipart upload is missing the %q field", uploadFormField)
	}
	return f, nil
}

func isMultipart(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "multipart/form-data"
}
