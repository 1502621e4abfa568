// Package cache holds computed aggregates between store mutations.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Cleaner is implemented by caches that can drop expired entries.
type Cleaner interface {
	CleanExpired() int
}

type statser interface {
	Stats() (hits, misses int64)
}

// Manager owns a set of named caches and sweeps them periodically.
type Manager struct {
	mu       sync.Mutex
	names    []string
	caches   map[string]Cleaner
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	started  bool
}

func NewManager() *Manager {
	return &Manager{
		caches: make(map[string]Cleaner),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Register adds c under name. Registering a name twice replaces the cache.
func (m *Manager) Register(name string, c Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.caches[name]; !ok {
		m.names = append(m.names, name)
	}
	m.caches[name] = c
}

// StartCleanup sweeps every interval until Stop.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	go m.loop(interval)
}

func (m *Manager) loop(interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				slog.Debug("Cache cleanup", "removed", n)
			}
		case <-m.stop:
			return
		}
	}
}

// Sweep drops expired entries from every cache and returns the total.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, name := range m.names {
		total += m.caches[name].CleanExpired()
	}
	return total
}

// LogStats logs hit and miss counts of every cache that tracks them.
func (m *Manager) LogStats(ctx context.Context, logger *slog.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range m.names {
		if s, ok := m.caches[name].(statser); ok {
			hits, misses := s.Stats()
			logger.DebugContext(ctx, "Cache stats", "cache", name, "hits", hits, "misses", misses)
		}
	}
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
		m.mu.Lock()
		started := m.started
		m.mu.Unlock()
		if started {
			<-m.done
		}
	})
}
