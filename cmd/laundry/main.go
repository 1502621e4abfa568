package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"laundrytrack/internal/backend"
	"laundrytrack/internal/cli"
	apphttp "laundrytrack/internal/http"
	applog "laundrytrack/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).Create(context.Background(), bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	if cfg.MirrorEnabled() && !res.Mirrored {
		logger.Warn("Mirroring configured but the queue is unreachable; records stay local until restart")
	}

	srv := apphttp.NewServer(":"+cfg.Port, res.Service, apphttp.Options{
		Ready:     res.Ready,
		PageSize:  cfg.PageSize,
		CacheSize: cfg.CacheSize,
		CacheTTL:  cfg.CacheTTL,
		Logger:    applog.Wrap(logger, applog.ComponentHTTP),
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting laundry server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"mirror_enabled", res.Mirrored)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
