package cache

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Memo caches results keyed by store version and query. Callers never
// invalidate by hand: the first lookup at a newer version purges entries of
// older versions. Concurrent misses for the same key share one computation.
type Memo[T any] struct {
	lru     *LRUCache[T]
	group   singleflight.Group
	timeout time.Duration
	latest  atomic.Uint64
	hits    atomic.Int64
	misses  atomic.Int64
}

// ComputeTimeout bounds a shared computation, which no single caller's
// context can cancel.
const ComputeTimeout = 7 * time.Second

func NewMemo[T any](size int, ttl time.Duration) *Memo[T] {
	return &Memo[T]{lru: NewLRUCache[T](size, ttl), timeout: ComputeTimeout}
}

func versionPrefix(version uint64) string {
	return fmt.Sprintf("v%d|", version)
}

// Get returns the cached value or runs compute once for all callers
// waiting on the same key. A caller whose ctx ends stops waiting without
// affecting the others. Errors are not cached.
func (m *Memo[T]) Get(ctx context.Context, version uint64, query string, compute func(context.Context) (T, error)) (T, error) {
	m.advance(version)

	key := versionPrefix(version) + query
	if v, ok := m.lru.Get(key); ok {
		m.hits.Add(1)
		return v, nil
	}
	m.misses.Add(1)

	ch := m.group.DoChan(key, func() (any, error) {
		if v, ok := m.lru.Get(key); ok {
			return v, nil
		}
		// Keep request values such as the logger but not the caller's
		// cancellation: other callers may be waiting on this result.
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
		defer cancel()
		v, err := compute(cctx)
		if err != nil {
			return v, err
		}
		m.lru.Set(key, v)
		return v, nil
	})

	var zero T
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// advance records version as the newest seen and drops older entries.
func (m *Memo[T]) advance(version uint64) {
	for {
		cur := m.latest.Load()
		if version <= cur {
			return
		}
		if m.latest.CompareAndSwap(cur, version) {
			break
		}
	}
	keep := versionPrefix(version)
	m.lru.DeleteFunc(func(key string) bool { return !strings.HasPrefix(key, keep) })
}

// CleanExpired lets a Manager age out entries.
func (m *Memo[T]) CleanExpired() int {
	return m.lru.CleanExpired()
}

// Len is the number of cached results.
func (m *Memo[T]) Len() int {
	return m.lru.Len()
}

// Stats reports cache hits and misses since creation.
func (m *Memo[T]) Stats() (hits, misses int64) {
	return m.hits.Load(), m.misses.Load()
}
