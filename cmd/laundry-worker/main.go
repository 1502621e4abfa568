package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"laundrytrack/internal/amqp"
	"laundrytrack/internal/cli"
	applog "laundrytrack/internal/log"
	gsheet "laundrytrack/internal/sheets/google"
	"laundrytrack/internal/services"
	"laundrytrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting laundry-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Worker configuration invalid", "error", err)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	mirror, err := gsheet.NewFromEnv(ctx)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets mirror initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"reports_sheet", cfg.GoogleReportsSheet,
		"transactions_sheet", cfg.GoogleTransactionsSheet)

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	syncWorker := worker.NewSyncWorker(repo, mirror, cfg.SyncBatchSize)

	// Catch up on anything queued while the worker was down.
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Startup sync check failed", "error", err)
	}

	processor := services.NewSyncProcessor(syncWorker, services.SyncProcessorConfig{PollInterval: cfg.SyncInterval})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.ConsumeRecordSync(gctx, func(ctx context.Context, msg *amqp.RecordSyncMessage) error {
			err := syncWorker.HandleSyncMessage(ctx, msg)
			if err != nil {
				// The record stays pending in SQLite; sweep it without waiting a full interval.
				processor.Trigger()
			}
			return err
		})
	})
	g.Go(func() error {
		return processor.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	st := processor.Stats()
	logger.Info("Worker shutdown complete", "passes", st.Passes, "failed_passes", st.Failures)
}
