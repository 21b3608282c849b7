package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gagyebu/internal/core"
	"gagyebu/internal/importer"
	"gagyebu/internal/sheets/xlsx"
)

func TestParseMonthParam(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		want    string
		wantErr bool
	}{
		{"absent uses default", "/", "2025-03", false},
		{"explicit", "/?month=2024-11", "2024-11", false},
		{"whitespace trimmed", "/?month=%202024-11%20", "2024-11", false},
		{"all", "/?month=all", monthAll, false},
		{"single digit month", "/?month=2024-1", "", true},
		{"garbage", "/?month=yesterday", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseMonthParam(httptest.NewRequest(http.MethodGet, tt.target, nil), "2025-03")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && statusFor(err) != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", statusFor(err))
			}
			if got != tt.want {
				t.Errorf("month = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseFilter(t *testing.T) {
	f := parseFilter(httptest.NewRequest(http.MethodGet, "/?type=INCOME&q=+bonus%00+", nil))
	if f.Type != core.FilterIncome {
		t.Errorf("Type = %q", f.Type)
	}
	if f.Query != "bonus" {
		t.Errorf("Query = %q", f.Query)
	}
	if parseFilter(httptest.NewRequest(http.MethodGet, "/?type=transfer", nil)).Type != core.FilterAll {
		t.Error("unknown type must fall back to all")
	}
}

func TestAmountField(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		wantErr bool
	}{
		{`12000`, 12000, false},
		{`"12,000"`, 12000, false},
		{`" 3.5 "`, 3.5, false},
		{`"abc"`, 0, false},
		{`"-5"`, 0, false},
		{`true`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var a amountField
			err := json.Unmarshal([]byte(tt.raw), &a)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v", err)
			}
			if float64(a) != tt.want {
				t.Errorf("amount = %v, want %v", float64(a), tt.want)
			}
		})
	}
}

func TestTransactionRequestDefaults(t *testing.T) {
	now := time.Date(2025, 1, 31, 23, 30, 0, 0, time.FixedZone("KST", 9*3600))
	tx := transactionRequest{Type: " Income ", Category: "급여\x07", Amount: 1}.toTransaction(now)

	if tx.Date != "2025-01-31" {
		t.Errorf("Date = %q, want UTC today", tx.Date)
	}
	if tx.Type != core.Income || tx.Category != "급여" {
		t.Errorf("unexpected %+v", tx)
	}

	tx = transactionRequest{Date: "2024-12-01"}.toTransaction(now)
	if tx.Date != "2024-12-01" {
		t.Errorf("explicit date overwritten: %q", tx.Date)
	}
}

func TestRequireJSON(t *testing.T) {
	for ct, ok := range map[string]bool{
		"":                                  true,
		"application/json":                  true,
		"application/json; charset=utf-8":   true,
		"application/merge-patch+json":      true,
		"text/plain":                        false,
		"application/x-www-form-urlencoded": false,
		"not a media type;;":                false,
	} {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.Header.Set("Content-Type", ct)
		if err := requireJSON(r); (err == nil) != ok {
			t.Errorf("requireJSON(%q) = %v", ct, err)
		}
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"bad request", badRequest("x"), http.StatusBadRequest},
		{"not found", notFound("x"), http.StatusNotFound},
		{"too large", fmt.Errorf("read import: %w", &http.MaxBytesError{Limit: 1}), http.StatusRequestEntityTooLarge},
		{"unsupported workbook", fmt.Errorf("%w: BIFF version 0x500", xlsx.ErrUnsupportedWorkbook), http.StatusUnsupportedMediaType},
		{"invalid workbook", fmt.Errorf("%w: zip: not a valid zip file", xlsx.ErrInvalidWorkbook), http.StatusBadRequest},
		{"import format", &importer.FormatError{Reason: "top level is not an array"}, http.StatusBadRequest},
		{"validation", core.ErrInvalidAmount, http.StatusUnprocessableEntity},
		{"bad month", core.ErrInvalidMonth, http.StatusUnprocessableEntity},
		{"cancelled", context.Canceled, http.StatusServiceUnavailable},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/export", nil)
	writeError(w, r, "export", errors.New("open /secret/path: permission denied"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "/secret/path") {
		t.Fatalf("internal error leaked: %s", w.Body.String())
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  식비  ", "식비"},
		{"a\x00b\x1fc", "abc"},
		{"line\nbreak\ttab", "line\nbreak\ttab"},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
