package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"laundrytrack/internal/amqp"
	"laundrytrack/internal/core"
	"laundrytrack/internal/records"
	memmirror "laundrytrack/internal/sheets/memory"
	"laundrytrack/internal/storage"
)

func setup(t *testing.T) (*storage.SQLiteRepository, *memmirror.Mirror, *SyncWorker) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "worker.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	mirror := memmirror.New()
	return repo, mirror, NewSyncWorker(repo, mirror, 10)
}

func pendingCount(t *testing.T, repo *storage.SQLiteRepository) int {
	t.Helper()
	p, err := repo.GetPendingSync(context.Background(), 100)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	return len(p)
}

func TestHandleSyncMessage_Upsert(t *testing.T) {
	ctx := context.Background()
	repo, mirror, w := setup(t)

	rep, err := repo.CreateReport(ctx, core.WeeklyReport{Year: 2024, Month: 4, Week: 3, Online: core.Money{Cents: 900}, CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	msg := amqp.NewRecordSyncMessage(string(records.KindReport), rep.ID, amqp.OpUpsert, 1)
	if err := w.HandleSyncMessage(ctx, msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	got, ok := mirror.Report(rep.ID)
	if !ok || got.TotalSales.Cents != 900 {
		t.Fatalf("expected mirrored report, got %+v ok=%v", got, ok)
	}
	if n := pendingCount(t, repo); n != 0 {
		t.Fatalf("expected nothing pending, got %d", n)
	}
}

func TestHandleSyncMessage_MissingRecordIsDeleted(t *testing.T) {
	ctx := context.Background()
	repo, mirror, w := setup(t)

	tx, _ := repo.CreateTransaction(ctx, core.Transaction{Date: core.NewDate(2024, 5, 2), Kind: core.Expense, Amount: core.Money{Cents: -100}, CreatedAt: time.Now()})
	if err := w.HandleSyncMessage(ctx, amqp.NewRecordSyncMessage("transaction", tx.ID, amqp.OpUpsert, 1)); err != nil {
		t.Fatalf("handle upsert: %v", err)
	}
	if err := repo.DeleteTransaction(ctx, tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// A late upsert for a deleted record must not resurrect the row.
	if err := w.HandleSyncMessage(ctx, amqp.NewRecordSyncMessage("transaction", tx.ID, amqp.OpUpsert, 2)); err != nil {
		t.Fatalf("handle late upsert: %v", err)
	}
	if _, ok := mirror.Transaction(tx.ID); ok {
		t.Fatal("transaction should be removed from mirror")
	}
	if n := pendingCount(t, repo); n != 0 {
		t.Fatalf("tombstone should be cleared, %d pending", n)
	}
}

func TestHandleSyncMessage_UnknownKind(t *testing.T) {
	_, mirror, w := setup(t)
	if err := w.HandleSyncMessage(context.Background(), amqp.NewRecordSyncMessage("invoice", "x", amqp.OpUpsert, 1)); err != nil {
		t.Fatalf("unknown kinds should be dropped, got %v", err)
	}
	if mirror.Writes() != 0 {
		t.Fatal("mirror should be untouched")
	}
}

func TestHandleSyncMessage_MirrorFailure(t *testing.T) {
	ctx := context.Background()
	repo, mirror, w := setup(t)

	rep, _ := repo.CreateReport(ctx, core.WeeklyReport{Year: 2024, Month: 0, Week: 1, CreatedAt: time.Now()})
	mirror.SetFailing(true)

	if err := w.HandleSyncMessage(ctx, amqp.NewRecordSyncMessage("report", rep.ID, amqp.OpUpsert, 1)); err == nil {
		t.Fatal("expected error so the message is requeued")
	}
	// The failed record stays pending for the next pass.
	if n := pendingCount(t, repo); n != 1 {
		t.Fatalf("expected 1 pending, got %d", n)
	}

	mirror.SetFailing(false)
	if err := w.ProcessPending(ctx); err != nil {
		t.Fatalf("process pending: %v", err)
	}
	if n := pendingCount(t, repo); n != 0 {
		t.Fatalf("expected recovery, %d pending", n)
	}
}

func TestStartupSyncCheck(t *testing.T) {
	ctx := context.Background()
	repo, mirror, w := setup(t)

	var ids []string
	for week := 1; week <= 4; week++ {
		rep, err := repo.CreateReport(ctx, core.WeeklyReport{Year: 2024, Month: 1, Week: week, CreatedAt: time.Now()})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, rep.ID)
	}
	if err := repo.DeleteReport(ctx, ids[0]); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if err := w.StartupSyncCheck(ctx); err != nil {
		t.Fatalf("startup check: %v", err)
	}
	for _, id := range ids[1:] {
		if _, ok := mirror.Report(id); !ok {
			t.Errorf("report %s not mirrored", id)
		}
	}
	if _, ok := mirror.Report(ids[0]); ok {
		t.Error("deleted report should not be mirrored")
	}
	if n := pendingCount(t, repo); n != 0 {
		t.Fatalf("expected nothing pending, got %d", n)
	}

	// Running again with nothing pending is a no-op.
	if err := w.StartupSyncCheck(ctx); err != nil {
		t.Fatalf("second startup check: %v", err)
	}
}
