package backend

import (
	"context"
	"fmt"
	"log/slog"

	"laundrytrack/internal/amqp"
	applog "laundrytrack/internal/log"
	"laundrytrack/internal/records/memory"
	"laundrytrack/internal/services"
	"laundrytrack/internal/storage"
)

// DialFunc connects a mirror publisher.
type DialFunc func(url, exchange, queue string) (services.Publisher, error)

func dialAMQP(url, exchange, queue string) (services.Publisher, error) {
	return amqp.NewClient(url, exchange, queue)
}

// Factory builds backends. The zero value is not usable; call NewFactory.
type Factory struct {
	logger *applog.Logger
	dial   DialFunc
}

// NewFactory returns a factory publishing through AMQP. A nil logger means
// slog.Default().
func NewFactory(logger *slog.Logger) *Factory {
	return &Factory{logger: applog.Wrap(logger, applog.ComponentBackend), dial: dialAMQP}
}

// WithDialer replaces the mirror dialer.
func (f *Factory) WithDialer(dial DialFunc) *Factory {
	f.dial = dial
	return f
}

// Create validates cfg and builds the backend it names.
func (f *Factory) Create(ctx context.Context, cfg Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("backend config: %w", err)
	}
	switch cfg.Type {
	case SQLite:
		return f.sqlite(ctx, cfg)
	default:
		return f.memory(ctx, cfg)
	}
}

func (f *Factory) sqlite(ctx context.Context, cfg Config) (*Backend, error) {
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}

	publisher := f.publisher(ctx, cfg.Mirror)
	b := &Backend{
		Type:          SQLite,
		Store:         repo,
		Service:       services.NewRecordService(repo, publisher),
		SchemaVersion: repo.SchemaVersion(),
		Mirrored:      publisher != nil,
		ready:         repo.Ping,
	}
	f.logger.InfoContext(ctx, "SQLite backend ready",
		"db_path", cfg.SQLiteDBPath,
		"schema_version", b.SchemaVersion,
		"mirror_enabled", b.Mirrored)
	return b, nil
}

// publisher dials the mirror queue. A broker that is down at startup only
// disables mirroring; local writes must keep working.
func (f *Factory) publisher(ctx context.Context, m MirrorConfig) services.Publisher {
	if m.URL == "" {
		return nil
	}
	p, err := f.dial(m.URL, m.Exchange, m.Queue)
	if err != nil {
		f.logger.WarnContext(ctx, "Mirror queue unavailable, continuing without mirror", applog.FieldError, err)
		return nil
	}
	f.logger.InfoContext(ctx, "Mirror queue connected", "exchange", m.Exchange, "queue", m.Queue)
	return p
}

func (f *Factory) memory(ctx context.Context, cfg Config) (*Backend, error) {
	store := memory.New()
	if cfg.DataFile != "" {
		var err error
		if store, err = memory.NewFromFile(cfg.DataFile); err != nil {
			return nil, fmt.Errorf("load snapshot file: %w", err)
		}
	}
	f.logger.InfoContext(ctx, "Memory backend ready", "data_file", cfg.DataFile, "version", store.Version())
	return &Backend{
		Type:    Memory,
		Store:   store,
		Service: services.NewRecordService(store, nil),
	}, nil
}
