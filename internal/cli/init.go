// Package cli provides common initialization shared by cmd/laundry,
// cmd/laundry-worker and cmd/laundryctl.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"laundrytrack/internal/config"
	"laundrytrack/internal/core"
	applog "laundrytrack/internal/log"
	"laundrytrack/internal/storage"
)

// SetupLogger installs a text logger at the given LOG_LEVEL as the slog
// default. Components add their own attribute through applog.Wrap.
func SetupLogger(level string) *slog.Logger {
	logger := applog.New(applog.Config{Level: applog.ParseLevel(level), Output: os.Stdout})
	applog.SetDefault(logger)
	return logger.Logger
}

// LoadEnvFile loads .env from the working directory when present.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration, validates it and applies the
// currency label.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	core.CurrencyLabel = cfg.CurrencyLabel
	return cfg
}

// InitSQLite opens the SQLite repository or exits the process on failure.
func InitSQLite(logger *slog.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received")
	}()
	return ctx, stop
}

// GracefulShutdown runs cleanup once a shutdown signal arrives. The returned
// context is cancelled by the signal; done closes when cleanup finished or
// timeout elapsed, whichever comes first.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, stop := SignalContext(logger)
	done := make(chan struct{})

	go func() {
		defer close(done)
		<-ctx.Done()
		stop()

		finished := make(chan struct{})
		go func() {
			defer close(finished)
			if cleanup != nil {
				cleanup()
			}
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-time.After(timeout):
			logger.Warn("Shutdown timeout reached", "timeout", timeout)
		}
	}()

	return ctx, done
}

// WaitForShutdown blocks until shutdown was signalled and cleanup returned.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
