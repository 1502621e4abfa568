package cache

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLRUCache_EvictsOldest(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // a is now most recent
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("expected a=1, got %d ok=%v", v, ok)
	}
	if c.Len() != 2 {
		t.Errorf("expected size 2, got %d", c.Len())
	}
}

func TestLRUCache_TTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("a", "x")
	c.Set("b", "y")
	now = now.Add(30 * time.Second)
	c.Set("b", "z") // refreshes b's expiry

	now = now.Add(45 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Error("a should have expired")
	}
	if removed := c.CleanExpired(); removed != 0 {
		t.Errorf("expected nothing left to clean, removed %d", removed)
	}
	if v, ok := c.Get("b"); !ok || v != "z" {
		t.Errorf("expected b=z, got %q ok=%v", v, ok)
	}

	now = now.Add(time.Hour)
	if removed := c.CleanExpired(); removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
}

func TestMemo_VersionKeyed(t *testing.T) {
	m := NewMemo[int](10, time.Minute)
	ctx := context.Background()
	calls := 0
	compute := func(context.Context) (int, error) {
		calls++
		return calls, nil
	}

	v1, _ := m.Get(ctx, 1, "annual:2024", compute)
	v1again, _ := m.Get(ctx, 1, "annual:2024", compute)
	if v1 != 1 || v1again != 1 {
		t.Fatalf("expected cached value 1, got %d and %d", v1, v1again)
	}
	v2, _ := m.Get(ctx, 2, "annual:2024", compute)
	if v2 != 2 {
		t.Fatalf("a new version must recompute, got %d", v2)
	}
	hits, misses := m.Stats()
	if hits != 1 || misses != 2 {
		t.Errorf("expected 1 hit 2 misses, got %d/%d", hits, misses)
	}
}

func TestMemo_ErrorsNotCached(t *testing.T) {
	m := NewMemo[int](10, time.Minute)
	ctx := context.Background()
	boom := errors.New("boom")

	if _, err := m.Get(ctx, 1, "q", func(context.Context) (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	v, err := m.Get(ctx, 1, "q", func(context.Context) (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Fatalf("expected recompute after error, got %d %v", v, err)
	}
}

func TestMemo_CollapsesConcurrentMisses(t *testing.T) {
	m := NewMemo[int](10, time.Minute)
	ctx := context.Background()
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := m.Get(ctx, 1, "month:2024-2", func(context.Context) (int, error) {
				calls.Add(1)
				<-release
				return 42, nil
			})
			if err != nil || v != 42 {
				t.Errorf("unexpected result %d %v", v, err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("expected one computation, got %d", n)
	}
}

func TestMemo_CallerCancelDoesNotFailWaiters(t *testing.T) {
	m := NewMemo[int](10, time.Minute)
	started := make(chan struct{})
	release := make(chan struct{})
	compute := func(ctx context.Context) (int, error) {
		close(started)
		select {
		case <-release:
			return 42, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := m.Get(first, 1, "range:this_month", compute)
		firstErr <- err
	}()
	<-started

	second := make(chan int, 1)
	go func() {
		v, err := m.Get(context.Background(), 1, "range:this_month", compute)
		if err != nil {
			t.Errorf("waiter failed: %v", err)
		}
		second <- v
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("disconnected caller should see its own cancellation, got %v", err)
	}
	close(release)
	if v := <-second; v != 42 {
		t.Fatalf("waiter got %d, want 42", v)
	}
	if v, _ := m.lru.Get(versionPrefix(1) + "range:this_month"); v != 42 {
		t.Fatal("result should be cached for later callers")
	}
}

func TestMemo_ComputeTimeout(t *testing.T) {
	m := NewMemo[int](10, time.Minute)
	m.timeout = 10 * time.Millisecond
	_, err := m.Get(context.Background(), 1, "q", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestMemo_NewVersionPurgesOlder(t *testing.T) {
	m := NewMemo[int](10, time.Minute)
	ctx := context.Background()
	one := func(context.Context) (int, error) { return 1, nil }

	m.Get(ctx, 3, "annual:2024", one)
	m.Get(ctx, 3, "month:2024-2", one)
	if m.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", m.Len())
	}
	m.Get(ctx, 4, "annual:2024", one)
	if m.Len() != 1 {
		t.Fatalf("version 3 entries should be purged, %d left", m.Len())
	}
	// An older version arriving late neither purges nor hits.
	m.Get(ctx, 3, "annual:2024", one)
	if m.Len() != 2 {
		t.Fatalf("late lookup should cache alongside, got %d", m.Len())
	}
}

func TestLRUCache_DeleteFunc(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("v1|a", 1)
	c.Set("v1|b", 2)
	c.Set("v2|a", 3)
	c.Delete("v1|b")

	if n := c.DeleteFunc(func(k string) bool { return k[:2] == "v1" }); n != 1 {
		t.Fatalf("expected 1 removed, got %d", n)
	}
	if _, ok := c.Get("v2|a"); !ok {
		t.Error("v2 entry should survive")
	}
}

func TestManager_SweepAndStats(t *testing.T) {
	m := NewManager()
	memo := NewMemo[int](10, time.Nanosecond)
	memo.Get(context.Background(), 1, "q", func(context.Context) (int, error) { return 1, nil })
	m.Register("month", memo)
	m.Register("month", memo)

	time.Sleep(time.Millisecond)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("expected 1 expired entry swept, got %d", n)
	}
	var buf bytes.Buffer
	m.LogStats(context.Background(), slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	if strings.Count(buf.String(), "cache=month") != 1 || !strings.Contains(buf.String(), "misses=1") {
		t.Fatalf("unexpected stats output %q", buf.String())
	}
}

func TestManager_StopIdempotent(t *testing.T) {
	m := NewManager()
	m.Register("tiny", NewLRUCache[int](1, time.Millisecond))
	m.StartCleanup(5 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	m.Stop()
	m.Stop()

	// Stopping a manager that never started must not block.
	NewManager().Stop()
}
