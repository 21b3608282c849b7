package importer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gagyebu/internal/core"
)

// NormalizeJSON decodes an exported ledger. The document must be a JSON
// array; each element is decoded and validated on its own, so one bad
// element never spoils the rest. Elements must carry their own id.
func NormalizeJSON(data []byte) (Result, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Result{}, &FormatError{Reason: "not valid JSON", Err: err}
	}
	if _, ok := raw.([]any); !ok {
		return Result{}, &FormatError{Reason: fmt.Sprintf("expected an array, got %s", jsonKind(raw))}
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return Result{}, &FormatError{Reason: "not valid JSON", Err: err}
	}

	res := Result{Accepted: make([]core.Transaction, 0, len(elems))}
	for i, el := range elems {
		tx, err := decodeElement(el)
		if err != nil {
			res.Rejected = append(res.Rejected, Rejection{Index: i, Err: err})
			continue
		}
		res.Accepted = append(res.Accepted, tx)
	}
	return res, nil
}

// element mirrors core.Transaction but leaves the optional fields raw:
// a memo or merchant of the wrong shape is dropped, not fatal.
type element struct {
	ID       string          `json:"id"`
	Date     string          `json:"date"`
	Type     core.TxType     `json:"type"`
	Category string          `json:"category"`
	Amount   float64         `json:"amount"`
	Memo     json.RawMessage `json:"memo"`
	Merchant json.RawMessage `json:"merchant"`
}

func decodeElement(el json.RawMessage) (core.Transaction, error) {
	if bytes.Equal(bytes.TrimSpace(el), []byte("null")) {
		return core.Transaction{}, errors.New("null element")
	}
	var e element
	if err := json.Unmarshal(el, &e); err != nil {
		return core.Transaction{}, fmt.Errorf("decode element: %w", err)
	}
	tx := core.Transaction{
		ID:       strings.TrimSpace(e.ID),
		Date:     e.Date,
		Type:     e.Type,
		Category: e.Category,
		Amount:   e.Amount,
	}
	if len(e.Memo) > 0 {
		_ = json.Unmarshal(e.Memo, &tx.Memo)
	}
	if len(e.Merchant) > 0 {
		var m core.Merchant
		if err := json.Unmarshal(e.Merchant, &m); err == nil && m != (core.Merchant{}) {
			tx.Merchant = &m
		}
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
