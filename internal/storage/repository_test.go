package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"laundrytrack/internal/core"
	"laundrytrack/internal/records"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "laundry.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestReportRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	created := time.Date(2024, 3, 14, 21, 30, 0, 0, time.FixedZone("MYT", 8*3600))

	rep, err := repo.CreateReport(ctx, core.WeeklyReport{
		Year: 2024, Month: 2, Week: 2,
		Washer1: core.Money{Cents: 1200}, Dryer2: core.Money{Cents: 300},
		Online: core.Money{Cents: 10000}, Offline: core.Money{Cents: 5000},
		MoneyCollected: core.Money{Cents: 4800},
		Notes:          "coin jam on dryer 2",
		CreatedAt:      created,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetReport(ctx, rep.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TotalSales.Cents != 15000 || got.Notes != rep.Notes || got.Washer1.Cents != 1200 {
		t.Fatalf("unexpected report %+v", got)
	}
	if !got.CreatedAt.Equal(created) || got.CreatedAt.Day() != 14 {
		t.Fatalf("created_at should keep its offset, got %s", got.CreatedAt)
	}

	got.Week = 3
	if _, err := repo.UpdateReport(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := repo.UpdateReport(ctx, core.WeeklyReport{ID: "missing", Year: 2024, Month: 0, Week: 1}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.CreateReport(ctx, core.WeeklyReport{Year: 2024, Month: 0, Week: 9}); !errors.Is(err, core.ErrInvalidWeek) {
		t.Fatalf("expected ErrInvalidWeek, got %v", err)
	}
}

func TestTransactionRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	tx, err := repo.CreateTransaction(ctx, core.Transaction{
		Date: core.NewDate(2024, 3, 10), Kind: core.Refund,
		Amount: core.Money{Cents: 2000}, Description: "double charge",
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := repo.GetTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Amount.Cents != -2000 || got.Kind != core.Refund || got.Date.String() != "2024-03-10" {
		t.Fatalf("unexpected transaction %+v", got)
	}

	if err := repo.DeleteTransaction(ctx, tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteTransaction(ctx, tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSnapshotVersion(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	before, err := repo.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if _, err := repo.CreateReport(ctx, core.WeeklyReport{Year: 2024, Month: 0, Week: 1, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("create: %v", err)
	}
	after, err := repo.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if after.Version <= before.Version || len(after.Reports) != 1 || len(before.Reports) != 0 {
		t.Fatalf("before=%+v after=%+v", before, after)
	}
}

func TestMergeUpserts(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	if _, err := repo.CreateReport(ctx, core.WeeklyReport{ID: "r1", Year: 2024, Month: 0, Week: 1, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("create: %v", err)
	}

	res, err := repo.Merge(ctx, records.Bundle{
		Reports: []core.WeeklyReport{
			{ID: "r1", Year: 2024, Month: 0, Week: 2, Online: core.Money{Cents: 700}, CreatedAt: time.Now()},
			{ID: "r2", Year: 2024, Month: 1, Week: 1, CreatedAt: time.Now()},
		},
		Transactions: []core.Transaction{
			{ID: "t1", Date: core.NewDate(2024, 2, 1), Kind: core.Expense, Amount: core.Money{Cents: 100}, CreatedAt: time.Now()},
		},
	})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	want := records.MergeResult{ReportsAdded: 1, ReportsReplaced: 1, TransactionsAdded: 1}
	if res != want {
		t.Fatalf("got %+v, want %+v", res, want)
	}
	got, _ := repo.GetReport(ctx, "r1")
	if got.Week != 2 || got.TotalSales.Cents != 700 {
		t.Fatalf("report not replaced: %+v", got)
	}

	// A bad row rolls back the whole batch.
	_, err = repo.Merge(ctx, records.Bundle{Reports: []core.WeeklyReport{
		{ID: "r3", Year: 2024, Month: 0, Week: 1, CreatedAt: time.Now()},
		{ID: "r4", Year: 2024, Month: 13, Week: 1, CreatedAt: time.Now()},
	}})
	if !errors.Is(err, core.ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
	if _, err := repo.GetReport(ctx, "r3"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("r3 should have been rolled back, got %v", err)
	}
}

func TestPendingSyncLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	rep, _ := repo.CreateReport(ctx, core.WeeklyReport{Year: 2024, Month: 0, Week: 1, CreatedAt: time.Now()})
	tx, _ := repo.CreateTransaction(ctx, core.Transaction{Date: core.NewDate(2024, 1, 7), Kind: core.Expense, CreatedAt: time.Now()})

	pending, err := repo.GetPendingSync(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %+v", pending)
	}

	if err := repo.MarkSynced(ctx, records.KindReport, rep.ID, 1); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	if err := repo.MarkSyncError(ctx, records.KindTransaction, tx.ID); err != nil {
		t.Fatalf("mark error: %v", err)
	}
	pending, _ = repo.GetPendingSync(ctx, 10)
	if len(pending) != 1 || pending[0].ID != tx.ID {
		t.Fatalf("failed rows should stay pending, got %+v", pending)
	}

	// An edit after sync makes the report pending again; an old ack does not clear it.
	if _, err := repo.UpdateReport(ctx, rep); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := repo.MarkSynced(ctx, records.KindReport, rep.ID, 1); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	if v, _ := repo.SyncVersion(ctx, records.KindReport, rep.ID); v != 2 {
		t.Fatalf("expected sync version 2, got %d", v)
	}
	pending, _ = repo.GetPendingSync(ctx, 10)
	if len(pending) != 2 {
		t.Fatalf("stale ack must not clear a newer edit, got %+v", pending)
	}

	if err := repo.DeleteReport(ctx, rep.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	pending, _ = repo.GetPendingSync(ctx, 10)
	var deletes int
	for _, p := range pending {
		if p.Op == SyncDelete {
			deletes++
			if err := repo.MarkDeletionSynced(ctx, p.Kind, p.ID); err != nil {
				t.Fatalf("clear deletion: %v", err)
			}
		}
	}
	if deletes != 1 {
		t.Fatalf("expected one pending deletion, got %+v", pending)
	}
	pending, _ = repo.GetPendingSync(ctx, 10)
	if len(pending) != 1 {
		t.Fatalf("expected only the failed transaction left, got %+v", pending)
	}
}

func TestMigrations_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "laundry.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if repo.SchemaVersion() != 2 {
		t.Errorf("expected schema version 2, got %d", repo.SchemaVersion())
	}
	repo.Close()

	// A second open finds nothing to apply.
	v, err := RunMigrations(path)
	if err != nil || v != 2 {
		t.Fatalf("rerun migrations = %d, %v", v, err)
	}
}

func TestVersionSeesOtherConnections(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "laundry.db")
	server, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("open server repository: %v", err)
	}
	defer server.Close()
	cli, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("open cli repository: %v", err)
	}
	defer cli.Close()

	before := server.Version()
	if _, err := cli.CreateReport(ctx, core.WeeklyReport{Year: 2024, Month: 0, Week: 1, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("cli create: %v", err)
	}
	afterCreate := server.Version()
	if afterCreate <= before {
		t.Fatalf("version did not move after another connection wrote: before=%d after=%d", before, afterCreate)
	}
	if _, err := cli.Merge(ctx, records.Bundle{Transactions: []core.Transaction{{Date: core.NewDate(2024, 1, 3), Kind: core.Expense}}}); err != nil {
		t.Fatalf("cli merge: %v", err)
	}
	snap, err := server.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Version <= afterCreate || len(snap.Reports) != 1 || len(snap.Transactions) != 1 {
		t.Fatalf("unexpected snapshot version=%d reports=%d transactions=%d", snap.Version, len(snap.Reports), len(snap.Transactions))
	}

	// Mirror bookkeeping does not change any aggregate.
	pending, _ := server.GetPendingSync(ctx, 10)
	v := server.Version()
	for _, p := range pending {
		if err := server.MarkSynced(ctx, p.Kind, p.ID, p.Version); err != nil {
			t.Fatalf("mark synced: %v", err)
		}
	}
	if server.Version() != v {
		t.Fatal("marking records synced should not advance the version")
	}
}
