package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"gagyebu/internal/cache"
	"gagyebu/internal/core"
	"gagyebu/internal/ledger"
	applog "gagyebu/internal/log"
	"gagyebu/internal/middleware/ratelimit"
	"gagyebu/internal/middleware/security"
	"gagyebu/internal/middleware/trace"
)

const (
	defaultMaxUploadBytes = 10 << 20
	maxJSONBodyBytes      = 1 << 20
	readyTimeout          = 2 * time.Second
	dayCacheSize          = 64
	dayCacheTTL           = 10 * time.Minute
)

// Options tunes a Server. The zero value is usable.
type Options struct {
	Logger *applog.Logger

	// Ready reports whether the persistence backend is reachable. Nil
	// means always ready.
	Ready func(ctx context.Context) error

	// MaxUploadBytes caps import bodies (default 10 MiB).
	MaxUploadBytes int64

	// RateLimitPerMinute caps write requests per client; 0 disables it.
	RateLimitPerMinute int

	// TrustedProxies are extra CIDRs allowed to set forwarding headers.
	TrustedProxies []string

	// Now is the clock used to default the date of new records.
	Now func() time.Time
}

type Server struct {
	http.Server
	store    *ledger.Store
	opts     Options
	logger   *applog.Logger
	detector *security.Detector
	tracer   *trace.Middleware
	limiter  *ratelimit.Limiter
	days     *cache.LRU[[]core.DayGroup]

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server over store.
func NewServer(addr string, store *ledger.Store, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.Wrap(nil, applog.ComponentHTTP)
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		store:    store,
		opts:     opts,
		logger:   opts.Logger.WithComponent(applog.ComponentHTTP),
		detector: security.NewDetector(),
		days:     cache.NewLRU[[]core.DayGroup](dayCacheSize, dayCacheTTL),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", applog.FieldError, err)
		}
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, s.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("DELETE /api/months/{month}", s.handleClearMonth)

	mux.HandleFunc("GET /api/totals", s.handleTotals)
	mux.HandleFunc("GET /api/days", s.handleDays)
	mux.HandleFunc("GET /api/selected-month", s.handleGetSelectedMonth)
	mux.HandleFunc("PUT /api/selected-month", s.handleSetSelectedMonth)
	mux.HandleFunc("GET /api/categories", handleCategories)

	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("POST /api/import/json", s.handleImportJSON)
	mux.HandleFunc("POST /api/import/spreadsheet", s.handleImportSpreadsheet)

	var handler http.Handler = mux
	if opts.RateLimitPerMinute > 0 {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute})
		handler = s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
			TooManyRequestsError().WithRequestID(trace.GetRequestID(r.Context())).Write(w)
		})(handler)
	}
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:    addr,
		Handler: handler,
	}
	return s
}

// Shutdown stops the limiter and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Metrics reports request counters from the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

// DayCacheStats reports how often day groupings were served from cache.
func (s *Server) DayCacheStats() cache.Stats {
	return s.days.Stats()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.opts.Ready(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			ErrorResponse(http.StatusServiceUnavailable, "storage unavailable").
				WithRequestID(trace.GetRequestID(r.Context())).Write(w)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
