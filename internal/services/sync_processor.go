package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// PendingSyncer drains records whose mirror copy is stale.
// *worker.SyncWorker implements it.
type PendingSyncer interface {
	ProcessPending(ctx context.Context) error
}

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often to look for pending records (default: 30s)
	PollInterval time.Duration
	// MaxBackoff caps the wait after consecutive failed passes (default: 8x PollInterval).
	MaxBackoff time.Duration
}

func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{PollInterval: 30 * time.Second}
}

// SyncStats summarizes the passes run so far.
type SyncStats struct {
	Passes    int
	Failures  int
	LastError string
	LastPass  time.Time
}

// SyncProcessor runs the pending pass periodically and on demand. It backs
// up the AMQP path: records whose publish failed or whose message was lost
// still reach the mirror. Failed passes back off up to MaxBackoff.
type SyncProcessor struct {
	syncer PendingSyncer
	config SyncProcessorConfig
	nudge  chan struct{}

	mu      sync.Mutex
	running bool
	stats   SyncStats
	streak  int
}

func NewSyncProcessor(syncer PendingSyncer, config SyncProcessorConfig) *SyncProcessor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultSyncProcessorConfig().PollInterval
	}
	if config.MaxBackoff < config.PollInterval {
		config.MaxBackoff = 8 * config.PollInterval
	}
	return &SyncProcessor{syncer: syncer, config: config, nudge: make(chan struct{}, 1)}
}

// ErrAlreadyRunning is returned by Run when another Run is active.
var ErrAlreadyRunning = errors.New("sync processor is already running")

// Run blocks, running passes until ctx is done. It returns nil on
// cancellation so it composes under errgroup.
func (p *SyncProcessor) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}
	p.running = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	slog.InfoContext(ctx, "Sync processor started", "poll_interval", p.config.PollInterval)
	timer := time.NewTimer(p.config.PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Sync processor stopped", "passes", p.Stats().Passes)
			return nil
		case <-p.nudge:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		case <-timer.C:
		}
		timer.Reset(p.pass(ctx))
	}
}

// Trigger requests a pass as soon as possible. Triggers coalesce.
func (p *SyncProcessor) Trigger() {
	select {
	case p.nudge <- struct{}{}:
	default:
	}
}

// pass runs one drain and returns the wait before the next.
func (p *SyncProcessor) pass(ctx context.Context) time.Duration {
	err := p.syncer.ProcessPending(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.Passes++
	p.stats.LastPass = time.Now()
	if err == nil || ctx.Err() != nil {
		p.streak = 0
		return p.config.PollInterval
	}

	slog.ErrorContext(ctx, "Pending sync pass failed", "error", err, "consecutive", p.streak+1)
	p.stats.Failures++
	p.stats.LastError = err.Error()
	p.streak++
	wait := p.config.PollInterval << min(p.streak, 16)
	return min(wait, p.config.MaxBackoff)
}

func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) Stats() SyncStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
