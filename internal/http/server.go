package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"laundrytrack/internal/cache"
	applog "laundrytrack/internal/log"
	"laundrytrack/internal/middleware/ratelimit"
	"laundrytrack/internal/middleware/security"
	"laundrytrack/internal/middleware/trace"
	"laundrytrack/internal/records"
	"laundrytrack/internal/services"
	"laundrytrack/internal/table"
)

// Options configures NewServer. Zero values fall back to defaults.
type Options struct {
	// Ready reports whether the store can serve requests. Nil means always.
	Ready     func(ctx context.Context) error
	PageSize  int
	CacheSize int
	CacheTTL  time.Duration
	RateLimit ratelimit.Config
	Logger    *applog.Logger
}

type Server struct {
	http.Server
	svc      *services.RecordService
	store    records.Store
	ready    func(ctx context.Context) error
	pageSize int
	now      func() time.Time
	base     *applog.Logger
	logger   *applog.StructuredLogger

	annual *cache.Memo[AnnualView]
	month  *cache.Memo[MonthView]
	ranges *cache.Memo[RangeView]
	caches *cache.Manager

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server. Call Shutdown to release its background goroutines.
func NewServer(addr string, svc *services.RecordService, opts Options) *Server {
	if opts.PageSize <= 0 {
		opts.PageSize = table.DefaultPageSize
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 128
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = applog.Wrap(nil, applog.ComponentHTTP)
	}

	s := &Server{
		svc:      svc,
		store:    svc.Store(),
		ready:    opts.Ready,
		pageSize: opts.PageSize,
		now:      time.Now,
		base:     opts.Logger,
		logger:   applog.NewStructuredLogger(opts.Logger),
		annual:   cache.NewMemo[AnnualView](opts.CacheSize, opts.CacheTTL),
		month:    cache.NewMemo[MonthView](opts.CacheSize, opts.CacheTTL),
		ranges:   cache.NewMemo[RangeView](opts.CacheSize, opts.CacheTTL),
		caches:   cache.NewManager(),
		limiter:  ratelimit.NewLimiter(opts.RateLimit),
		detector: security.NewDetector(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, opts.Logger)

	s.caches.Register("annual", s.annual)
	s.caches.Register("month", s.month)
	s.caches.Register("range", s.ranges)
	s.caches.StartCleanup(10 * time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/weeks", s.handleWeeks)
	mux.HandleFunc("GET /api/dashboard/annual", s.handleAnnual)
	mux.HandleFunc("GET /api/dashboard/month", s.handleMonth)
	mux.HandleFunc("GET /api/dashboard/range", s.handleRange)

	mux.HandleFunc("GET /api/reports", s.handleListReports)
	mux.HandleFunc("POST /api/reports", s.handleCreateReport)
	mux.HandleFunc("GET /api/reports/{id}", s.handleGetReport)
	mux.HandleFunc("PUT /api/reports/{id}", s.handleUpdateReport)
	mux.HandleFunc("DELETE /api/reports/{id}", s.handleDeleteReport)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /api/records", s.handleRecords)
	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("POST /api/import", s.handleImport)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// middleware wraps the mux, outermost first: tracing, request logger,
// security headers, suspicious request logging, then mutation rate limits.
func (s *Server) middleware(h http.Handler) http.Handler {
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").Write(w)
	}
	h = s.limiter.Middleware(s.detector.ExtractClientIP, onLimit,
		http.MethodPost, http.MethodPut, http.MethodDelete)(h)
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = applog.RequestIDMiddleware(trace.RequestIDFromRequest)(h)
	h = applog.Middleware(s.base)(h)
	return s.tracer.Middleware(h)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
		s.caches.LogStats(ctx, s.base.Logger)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			slog.WarnContext(r.Context(), "Readiness check failed", "error", err)
			ErrorResponse(http.StatusServiceUnavailable, "store unavailable").Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]any{"status": "ready", "version": s.store.Version()}).Write(w)
}

// snapshot is the read path shared by all aggregate handlers.
func (s *Server) snapshot(ctx context.Context) (records.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, 7*time.Second)
	defer cancel()
	return s.store.Snapshot(ctx)
}
