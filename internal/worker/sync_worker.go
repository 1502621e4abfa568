package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"laundrytrack/internal/amqp"
	"laundrytrack/internal/core"
	"laundrytrack/internal/records"
	"laundrytrack/internal/sheets"
	"laundrytrack/internal/storage"
)

// SyncStore is the slice of the SQLite repository the worker needs.
type SyncStore interface {
	GetReport(ctx context.Context, id string) (core.WeeklyReport, error)
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	SyncVersion(ctx context.Context, kind records.Kind, id string) (int64, error)
	GetPendingSync(ctx context.Context, limit int) ([]storage.PendingSync, error)
	MarkSynced(ctx context.Context, kind records.Kind, id string, version int64) error
	MarkSyncError(ctx context.Context, kind records.Kind, id string) error
	MarkDeletionSynced(ctx context.Context, kind records.Kind, id string) error
}

var _ SyncStore = (*storage.SQLiteRepository)(nil)

// SyncWorker copies records from SQLite to the spreadsheet mirror.
type SyncWorker struct {
	store     SyncStore
	mirror    sheets.Mirror
	batchSize int
}

func NewSyncWorker(store SyncStore, mirror sheets.Mirror, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{store: store, mirror: mirror, batchSize: batchSize}
}

// HandleSyncMessage processes a single record sync message from AMQP.
// The message only names the record; its current state is read from SQLite,
// so replays and out-of-order deliveries converge on the latest data.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.RecordSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"kind", msg.Kind,
		"id", msg.ID,
		"op", msg.Op,
		"version", msg.Version)

	kind := records.Kind(msg.Kind)
	if kind != records.KindReport && kind != records.KindTransaction {
		// Redelivery cannot fix an unknown kind; drop it.
		slog.WarnContext(ctx, "Ignoring sync message for unknown kind", "kind", msg.Kind, "id", msg.ID)
		return nil
	}
	return w.syncRecord(ctx, kind, msg.ID)
}

// syncRecord brings one mirror row in line with SQLite. A record that no
// longer exists is removed from the mirror whatever the requested op was.
func (w *SyncWorker) syncRecord(ctx context.Context, kind records.Kind, id string) error {
	version, err := w.store.SyncVersion(ctx, kind, id)
	if errors.Is(err, core.ErrNotFound) {
		return w.deleteRecord(ctx, kind, id)
	}
	if err != nil {
		return fmt.Errorf("get sync version: %w", err)
	}

	var ref string
	switch kind {
	case records.KindReport:
		r, gerr := w.store.GetReport(ctx, id)
		if errors.Is(gerr, core.ErrNotFound) {
			return w.deleteRecord(ctx, kind, id)
		}
		if gerr != nil {
			return fmt.Errorf("get report from storage: %w", gerr)
		}
		ref, err = w.mirror.UpsertReport(ctx, r)
	case records.KindTransaction:
		t, gerr := w.store.GetTransaction(ctx, id)
		if errors.Is(gerr, core.ErrNotFound) {
			return w.deleteRecord(ctx, kind, id)
		}
		if gerr != nil {
			return fmt.Errorf("get transaction from storage: %w", gerr)
		}
		ref, err = w.mirror.UpsertTransaction(ctx, t)
	}
	if err != nil {
		if markErr := w.store.MarkSyncError(ctx, kind, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "kind", kind, "id", id, "error", markErr)
		}
		return fmt.Errorf("upsert %s to mirror: %w", kind, err)
	}

	if err := w.store.MarkSynced(ctx, kind, id, version); err != nil {
		// The mirror write worked; the next pending pass will redo it harmlessly.
		slog.ErrorContext(ctx, "Failed to mark as synced", "kind", kind, "id", id, "error", err)
	}

	slog.InfoContext(ctx, "Successfully synced record",
		"kind", kind,
		"id", id,
		"version", version,
		"mirror_ref", ref)
	return nil
}

func (w *SyncWorker) deleteRecord(ctx context.Context, kind records.Kind, id string) error {
	if err := w.mirror.Delete(ctx, kind, id); err != nil {
		return fmt.Errorf("delete %s from mirror: %w", kind, err)
	}
	if err := w.store.MarkDeletionSynced(ctx, kind, id); err != nil {
		slog.ErrorContext(ctx, "Failed to clear deletion marker", "kind", kind, "id", id, "error", err)
	}
	slog.InfoContext(ctx, "Successfully deleted record from mirror", "kind", kind, "id", id)
	return nil
}

// ProcessPending syncs records that haven't been mirrored yet.
// This is a backup mechanism in case AMQP messages are lost.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	_, _, err := w.processPending(ctx, w.batchSize)
	return err
}

// StartupSyncCheck drains a larger batch once at worker startup to recover
// from missed messages or worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, failed, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	if synced+failed == 0 {
		slog.InfoContext(ctx, "No pending records found on startup")
		return nil
	}
	slog.InfoContext(ctx, "Startup sync completed",
		"total", synced+failed,
		"synced", synced,
		"errors", failed)
	return nil
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (synced, failed int, err error) {
	pending, err := w.store.GetPendingSync(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending records: %w", err)
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}

	slog.InfoContext(ctx, "Processing pending records", "count", len(pending))

	for _, p := range pending {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		var err error
		if p.Op == storage.SyncDelete {
			err = w.deleteRecord(ctx, p.Kind, p.ID)
		} else {
			err = w.syncRecord(ctx, p.Kind, p.ID)
		}
		if err != nil {
			slog.ErrorContext(ctx, "Failed to sync pending record",
				"kind", p.Kind, "id", p.ID, "op", p.Op, "error", err)
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}
