package memory

import (
	"context"
	"errors"
	"testing"

	"laundrytrack/internal/core"
	"laundrytrack/internal/records"
)

func TestMirror_UpsertAndDelete(t *testing.T) {
	m := New()
	ctx := context.Background()

	r := core.WeeklyReport{ID: "r1", Year: 2024, Month: 2, Week: 1}
	if _, err := m.UpsertReport(ctx, r); err != nil {
		t.Fatalf("upsert report: %v", err)
	}
	r.Notes = "updated"
	if _, err := m.UpsertReport(ctx, r); err != nil {
		t.Fatalf("upsert report again: %v", err)
	}
	got, ok := m.Report("r1")
	if !ok || got.Notes != "updated" {
		t.Fatalf("expected updated report, got %+v ok=%v", got, ok)
	}

	tx := core.Transaction{ID: "t1", Date: core.NewDate(2024, 3, 2), Kind: core.Expense, Amount: core.Money{Cents: -500}}
	if _, err := m.UpsertTransaction(ctx, tx); err != nil {
		t.Fatalf("upsert transaction: %v", err)
	}
	if err := m.Delete(ctx, records.KindTransaction, "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := m.Transaction("t1"); ok {
		t.Fatal("transaction should be gone")
	}
	// Deleting a missing row is fine.
	if err := m.Delete(ctx, records.KindReport, "missing"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	if m.Writes() != 5 {
		t.Fatalf("expected 5 writes, got %d", m.Writes())
	}
}

func TestMirror_Failing(t *testing.T) {
	m := New()
	ctx := context.Background()
	m.SetFailing(true)

	_, err := m.UpsertReport(ctx, core.WeeklyReport{ID: "r1", Year: 2024, Month: 0, Week: 1})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if err := m.Delete(ctx, records.KindReport, "r1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on delete, got %v", err)
	}

	m.SetFailing(false)
	if _, err := m.UpsertReport(ctx, core.WeeklyReport{ID: "r1", Year: 2024, Month: 0, Week: 1}); err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
}

func TestMirror_RejectsInvalid(t *testing.T) {
	m := New()
	if _, err := m.UpsertReport(context.Background(), core.WeeklyReport{Year: 2024, Month: 12, Week: 1}); !errors.Is(err, core.ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
	if err := m.Delete(context.Background(), records.Kind("other"), "x"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
