package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"gagyebu/internal/core"
	"gagyebu/internal/importer"
	"gagyebu/internal/ledger"
	applog "gagyebu/internal/log"
	"gagyebu/internal/middleware/trace"
	"gagyebu/internal/sheets/xlsx"
)

// sanitizeInput removes control characters except tab, newline and
// carriage return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// statusFor maps an error from parsing or from the store to a status code.
func statusFor(err error) int {
	var (
		reqErr    *requestError
		maxErr    *http.MaxBytesError
		formatErr *importer.FormatError
	)
	switch {
	case errors.As(err, &reqErr):
		return reqErr.status
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, xlsx.ErrUnsupportedWorkbook):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &formatErr), errors.Is(err, xlsx.ErrInvalidWorkbook):
		return http.StatusBadRequest
	case ledger.IsValidationError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as a JSON error. Server-side failures are logged
// with the request-scoped logger and their details are not exposed.
func writeError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger := applog.NewStructuredLogger(applog.FromContext(r.Context()))
		logger.LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, operation,
			applog.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")))
		msg = http.StatusText(status)
	}
	ErrorResponse(status, msg).WithRequestID(trace.GetRequestID(r.Context())).Write(w)
}

// totalsBody is core.Totals plus the same amounts rendered as won.
type totalsBody struct {
	core.Totals
	Formatted formattedTotals `json:"formatted"`
}

type formattedTotals struct {
	Income  string `json:"income"`
	Expense string `json:"expense"`
	Balance string `json:"balance"`
}

func newTotalsBody(t core.Totals) totalsBody {
	return totalsBody{
		Totals: t,
		Formatted: formattedTotals{
			Income:  core.FormatKRW(t.Income),
			Expense: core.FormatKRW(t.Expense),
			Balance: core.FormatKRW(t.Balance),
		},
	}
}
