// Package ratelimit limits requests per client IP in a fixed window that
// starts at the client's first request.
package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds rate limiter configuration. Zero fields take defaults.
type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
	// IdleTTL is how long an idle client is remembered.
	IdleTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		CleanupInterval:   5 * time.Minute,
		IdleTTL:           10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = d.RequestsPerMinute
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = d.CleanupInterval
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = d.IdleTTL
	}
	return c
}

const window = time.Minute

type bucket struct {
	start time.Time
	last  time.Time
	count int
}

// Decision is the outcome of one Take.
type Decision struct {
	Allowed   bool
	Remaining int
	// RetryAfter is the time left in the window when Allowed is false.
	RetryAfter time.Duration
}

// Limiter tracks one window per client. Call Stop when done.
type Limiter struct {
	cfg     Config
	mu      sync.Mutex
	clients map[string]*bucket
	now     func() time.Time
	limited atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
}

// NewLimiter starts the idle-client sweeper.
func NewLimiter(cfg Config) *Limiter {
	l := &Limiter{
		cfg:     cfg.withDefaults(),
		clients: make(map[string]*bucket),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Take counts one request for key and reports whether it may proceed.
func (l *Limiter) Take(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.clients[key]
	if !ok || now.Sub(b.start) > window {
		b = &bucket{start: now}
		l.clients[key] = b
	}
	b.count++
	b.last = now

	if b.count > l.cfg.RequestsPerMinute {
		l.limited.Add(1)
		return Decision{RetryAfter: b.start.Add(window).Sub(now)}
	}
	return Decision{Allowed: true, Remaining: l.cfg.RequestsPerMinute - b.count}
}

// Allow is Take without the details.
func (l *Limiter) Allow(key string) bool {
	return l.Take(key).Allowed
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := l.sweep(); n > 0 {
				slog.Debug("Rate limiter cleanup", "removed", n)
			}
		case <-l.stop:
			return
		}
	}
}

// sweep forgets clients idle longer than IdleTTL.
func (l *Limiter) sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.cfg.IdleTTL)
	n := 0
	for key, b := range l.clients {
		if b.last.Before(cutoff) {
			delete(l.clients, key)
			n++
		}
	}
	return n
}

func (l *Limiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Stop ends the sweeper. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

type Metrics struct {
	Limited int64
	Clients int
}

func (l *Limiter) GetMetrics() Metrics {
	return Metrics{Limited: l.limited.Load(), Clients: l.ActiveClients()}
}

// Middleware limits requests whose method is in methods; an empty list
// limits every request. onLimit writes the 429 body and may be nil.
func (l *Limiter) Middleware(extractIP func(*http.Request) string, onLimit http.HandlerFunc, methods ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(methods) > 0 && !slices.Contains(methods, r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			ip := extractIP(r)
			d := l.Take(ip)
			if d.Allowed {
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
				next.ServeHTTP(w, r)
				return
			}

			slog.WarnContext(r.Context(), "Rate limit exceeded", "client_ip", ip, "method", r.Method, "path", r.URL.Path)
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
			if onLimit != nil {
				onLimit(w, r)
				return
			}
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		})
	}
}
