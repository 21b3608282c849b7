package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applog "gagyebu/internal/log"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Level: slog.LevelInfo, Format: "json", Output: &buf})
	m := NewMiddleware(func(*http.Request) string { return "10.1.2.3" }, logger)

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/totals", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("unexpected request id %q", seen)
	}
	if rr.Header().Get(HeaderRequestID) != seen {
		t.Fatalf("response header %q does not match %q", rr.Header().Get(HeaderRequestID), seen)
	}
	out := buf.String()
	if !strings.Contains(out, `"status_code":418`) || !strings.Contains(out, `"client_ip":"10.1.2.3"`) {
		t.Fatalf("completion log missing fields: %s", out)
	}
	if got := m.GetMetrics().TotalRequests; got != 1 {
		t.Fatalf("TotalRequests = %d", got)
	}
}

func TestMiddlewareHonoursInboundRequestID(t *testing.T) {
	m := NewMiddleware(nil, nil)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	tests := []struct {
		inbound string
		keep    bool
	}{
		{"abc-123", true},
		{"has space", false},
		{strings.Repeat("x", 65), false},
		{"", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		if tt.inbound != "" {
			req.Header.Set(HeaderRequestID, tt.inbound)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		got := rr.Header().Get(HeaderRequestID)
		if tt.keep && got != tt.inbound {
			t.Errorf("inbound %q: got %q", tt.inbound, got)
		}
		if !tt.keep && !strings.HasPrefix(got, "req_") {
			t.Errorf("inbound %q must be replaced, got %q", tt.inbound, got)
		}
	}
}

func TestMiddlewareCountsServerErrors(t *testing.T) {
	m := NewMiddleware(nil, nil)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if got := m.GetMetrics().ServerErrors; got != 1 {
		t.Fatalf("ServerErrors = %d", got)
	}
}
