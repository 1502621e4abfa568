package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"laundrytrack/internal/core"
	"laundrytrack/internal/records"
)

// Sync operations carried by PendingSync.
const (
	SyncUpsert = "upsert"
	SyncDelete = "delete"
)

// PendingSync is the minimal data needed to enqueue a mirror update.
type PendingSync struct {
	Kind      records.Kind
	ID        string
	Op        string
	Version   int64
	UpdatedAt time.Time
}

// GetPendingSync returns up to limit records whose mirror copy is stale,
// oldest first. Rows that previously failed are retried.
func (r *SQLiteRepository) GetPendingSync(ctx context.Context, limit int) ([]PendingSync, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, id, op, version, ts FROM (
			SELECT 'report' AS kind, id, 'upsert' AS op, sync_version AS version, updated_at AS ts
				FROM weekly_reports WHERE sync_status != 'synced'
			UNION ALL
			SELECT 'transaction', id, 'upsert', sync_version, updated_at
				FROM transactions WHERE sync_status != 'synced'
			UNION ALL
			SELECT kind, id, 'delete', 0, deleted_at
				FROM sync_deletions
		)
		ORDER BY ts
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync: %w", err)
	}
	defer rows.Close()

	var out []PendingSync
	for rows.Next() {
		var (
			p        PendingSync
			kind, ts string
		)
		if err := rows.Scan(&kind, &p.ID, &p.Op, &p.Version, &ts); err != nil {
			return nil, fmt.Errorf("scan pending sync: %w", err)
		}
		p.Kind = records.Kind(kind)
		p.UpdatedAt, _ = time.Parse(timeLayout, ts)
		out = append(out, p)
	}
	return out, rows.Err()
}

func syncTable(kind records.Kind) (string, error) {
	switch kind {
	case records.KindReport:
		return "weekly_reports", nil
	case records.KindTransaction:
		return "transactions", nil
	default:
		return "", fmt.Errorf("unknown record kind %q", kind)
	}
}

// MarkSynced marks a record as mirrored. A version older than the row's
// current one is ignored, so a slow worker cannot hide a newer edit.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, kind records.Kind, id string, version int64) error {
	table, err := syncTable(kind)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE `+table+` SET sync_status = 'synced' WHERE id = ? AND sync_version <= ?`, id, version)
	if err != nil {
		return fmt.Errorf("mark %s synced: %w", kind, err)
	}

	slog.InfoContext(ctx, "Record marked as synced", "kind", kind, "id", id, "version", version)
	return nil
}

// MarkSyncError flags a record whose mirror update failed.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, kind records.Kind, id string) error {
	table, err := syncTable(kind)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `UPDATE `+table+` SET sync_status = 'error' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark %s sync error: %w", kind, err)
	}

	slog.WarnContext(ctx, "Record marked with sync error", "kind", kind, "id", id)
	return nil
}

// MarkDeletionSynced drops a tombstone once the mirror row is gone.
func (r *SQLiteRepository) MarkDeletionSynced(ctx context.Context, kind records.Kind, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sync_deletions WHERE kind = ? AND id = ?`, string(kind), id)
	if err != nil {
		return fmt.Errorf("clear deletion %s %s: %w", kind, id, err)
	}
	return nil
}

// SyncVersion returns the current sync version of a record.
func (r *SQLiteRepository) SyncVersion(ctx context.Context, kind records.Kind, id string) (int64, error) {
	table, err := syncTable(kind)
	if err != nil {
		return 0, err
	}
	var v int64
	err = r.db.QueryRowContext(ctx, `SELECT sync_version FROM `+table+` WHERE id = ?`, id).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("get %s sync version: %w", kind, err)
	}
	return v, nil
}
