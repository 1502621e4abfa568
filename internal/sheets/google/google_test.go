package google

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"laundrytrack/internal/core"
	"laundrytrack/internal/records"
)

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")

	_, err := NewFromEnv(context.Background())
	if err == nil {
		t.Fatal("expected error for missing GOOGLE_SPREADSHEET_ID")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewFromEnv_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "test-id")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := NewFromEnv(context.Background())
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected credentials error, got %v", err)
	}
}

func TestNewFromEnv_UnreadableCredentialsFile(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "test-id")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "/nonexistent/credentials.json")

	_, err := NewFromEnv(context.Background())
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestClient_ValidatesBeforeWriting(t *testing.T) {
	c := &Client{spreadsheetID: "test"} // svc is nil

	_, err := c.UpsertReport(context.Background(), core.WeeklyReport{Year: 2024, Month: 1, Week: 7})
	if !errors.Is(err, core.ErrInvalidWeek) {
		t.Fatalf("expected ErrInvalidWeek, got %v", err)
	}

	_, err = c.UpsertTransaction(context.Background(), core.Transaction{Kind: core.Expense})
	if !errors.Is(err, core.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestClient_NilService(t *testing.T) {
	c := &Client{spreadsheetID: "test", reportsSheet: "WeeklyReports", transactionsSheet: "Transactions"}

	_, err := c.UpsertReport(context.Background(), core.WeeklyReport{Year: 2024, Month: 1, Week: 1})
	if err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Fatalf("expected not initialized error, got %v", err)
	}
	if err := c.Delete(context.Background(), records.Kind("invoice"), "x"); err == nil {
		t.Fatal("expected unknown kind error")
	}
}

func TestReportRow(t *testing.T) {
	r := core.WeeklyReport{
		ID: "r1", Year: 2024, Month: 1, Week: 5,
		Online: core.Money{Cents: 10000}, Offline: core.Money{Cents: 5050},
		TotalSales: core.Money{Cents: 15050},
		CreatedAt:  time.Date(2024, 3, 1, 2, 0, 0, 0, time.FixedZone("MYT", 8*3600)),
	}
	row := reportRow(r)
	if len(row) != len(reportHeader) {
		t.Fatalf("row has %d cells, header has %d", len(row), len(reportHeader))
	}
	if row[2] != 2 {
		t.Errorf("month should be written 1-based, got %v", row[2])
	}
	if row[4] != "2024-02-29" || row[5] != "2024-02-29" {
		t.Errorf("unexpected week range %v..%v", row[4], row[5])
	}
	if row[12] != "150.50" {
		t.Errorf("unexpected total %v", row[12])
	}
	if row[15] != "2024-02-29T18:00:00Z" {
		t.Errorf("created_at should be UTC, got %v", row[15])
	}

	// A slot that does not exist leaves the range blank.
	r.Year = 2023
	if row := reportRow(r); row[4] != "" || row[5] != "" {
		t.Errorf("expected blank range for invalid slot, got %v..%v", row[4], row[5])
	}
}

func TestTransactionRow(t *testing.T) {
	tx := core.Transaction{
		ID: "t1", Date: core.NewDate(2024, 3, 10), Kind: core.Refund,
		Amount: core.Money{Cents: -2000}, Description: "coin refund",
	}
	row := transactionRow(tx)
	want := []any{"t1", "2024-03-10", "refund", "-20.00", "coin refund"}
	for i, v := range want {
		if row[i] != v {
			t.Errorf("cell %d = %v, want %v", i, row[i], v)
		}
	}
}

func TestFindRow(t *testing.T) {
	values := [][]any{{"id"}, {"a"}, {}, {" b "}}
	cases := map[string]int{"a": 2, "b": 4, "id": 1, "zzz": 0}
	for id, want := range cases {
		if got := findRow(values, id); got != want {
			t.Errorf("findRow(%q) = %d, want %d", id, got, want)
		}
	}
}

func TestRangeHelpers(t *testing.T) {
	cases := map[int]string{1: "A", 6: "F", 16: "P", 26: "Z", 27: "AA", 52: "AZ"}
	for n, want := range cases {
		if got := columnName(n); got != want {
			t.Errorf("columnName(%d) = %q, want %q", n, got, want)
		}
	}
	if got := rowRange("Transactions", 3, 6); got != "Transactions!A3:F3" {
		t.Errorf("unexpected range %q", got)
	}
	if got := rowRange("Weekly Reports", 2, 16); got != "'Weekly Reports'!A2:P2" {
		t.Errorf("unexpected quoted range %q", got)
	}
}
