package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"laundrytrack/internal/core"
	"laundrytrack/internal/records"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db     *sql.DB
	schema uint
	// seen is the last counter read from store_version. It is served when
	// the database cannot be read.
	seen atomic.Uint64
	now  func() time.Time
}

const versionReadTimeout = 2 * time.Second

var _ records.Store = (*SQLiteRepository)(nil)

// dsn enables WAL and a busy timeout so the API server and the sync
// worker can share one database file.
func dsn(dbPath string) string {
	return "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	schema, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, err
	}

	repo := &SQLiteRepository{db: db, schema: schema, now: time.Now}
	repo.Version()
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SchemaVersion is the migration version the database was opened at.
func (r *SQLiteRepository) SchemaVersion() uint {
	return r.schema
}

// Version reads the change counter that triggers bump on every write to
// the record tables, from this process or any other sharing the file.
func (r *SQLiteRepository) Version() uint64 {
	ctx, cancel := context.WithTimeout(context.Background(), versionReadTimeout)
	defer cancel()
	v, err := readVersion(ctx, r.db)
	if err != nil {
		slog.Warn("Failed to read store version", "error", err)
		return r.seen.Load()
	}
	r.seen.Store(v)
	return v
}

func readVersion(ctx context.Context, q queryer) (uint64, error) {
	var v uint64
	if err := q.QueryRowContext(ctx, `SELECT version FROM store_version WHERE id = 1`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read store version: %w", err)
	}
	return v, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

const reportColumns = `id, year, month, week, washer1_cents, washer2_cents, dryer1_cents, dryer2_cents,
	online_cents, offline_cents, total_sales_cents, money_collected_cents, notes, created_at`

const transactionColumns = `id, date, type, amount_cents, description, created_at`

func scanReport(s scanner) (core.WeeklyReport, error) {
	var (
		rep     core.WeeklyReport
		created string
	)
	err := s.Scan(&rep.ID, &rep.Year, &rep.Month, &rep.Week,
		&rep.Washer1.Cents, &rep.Washer2.Cents, &rep.Dryer1.Cents, &rep.Dryer2.Cents,
		&rep.Online.Cents, &rep.Offline.Cents, &rep.TotalSales.Cents, &rep.MoneyCollected.Cents,
		&rep.Notes, &created)
	if err != nil {
		return core.WeeklyReport{}, err
	}
	if rep.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return core.WeeklyReport{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	// Rows written by hand or by older tools may carry a stale total.
	rep.Normalize()
	return rep, nil
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		tx            core.Transaction
		date, created string
		kind          string
	)
	if err := s.Scan(&tx.ID, &date, &kind, &tx.Amount.Cents, &tx.Description, &created); err != nil {
		return core.Transaction{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Date = d
	tx.Kind = core.TxKind(kind)
	if tx.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return core.Transaction{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	return tx, nil
}

func listReports(ctx context.Context, q queryer) ([]core.WeeklyReport, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+reportColumns+` FROM weekly_reports ORDER BY year, month, week, created_at`)
	if err != nil {
		return nil, fmt.Errorf("query weekly reports: %w", err)
	}
	defer rows.Close()
	var out []core.WeeklyReport
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan weekly report: %w", err)
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

func listTransactions(ctx context.Context, q queryer) ([]core.Transaction, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions ORDER BY date, created_at`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()
	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// Snapshot reads both tables inside one read transaction.
func (r *SQLiteRepository) Snapshot(ctx context.Context) (records.Snapshot, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return records.Snapshot{}, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	version, err := readVersion(ctx, tx)
	if err != nil {
		return records.Snapshot{}, err
	}

	reports, err := listReports(ctx, tx)
	if err != nil {
		return records.Snapshot{}, err
	}
	txs, err := listTransactions(ctx, tx)
	if err != nil {
		return records.Snapshot{}, err
	}
	return records.Snapshot{Version: version, Reports: reports, Transactions: txs}, nil
}

func (r *SQLiteRepository) ListReports(ctx context.Context) ([]core.WeeklyReport, error) {
	return listReports(ctx, r.db)
}

func (r *SQLiteRepository) GetReport(ctx context.Context, id string) (core.WeeklyReport, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM weekly_reports WHERE id = ?`, id)
	rep, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.WeeklyReport{}, fmt.Errorf("report %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.WeeklyReport{}, fmt.Errorf("get report: %w", err)
	}
	return rep, nil
}

func insertReport(ctx context.Context, q queryer, rep core.WeeklyReport, now time.Time) error {
	_, err := q.ExecContext(ctx, `INSERT INTO weekly_reports (`+reportColumns+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.ID, rep.Year, rep.Month, rep.Week,
		rep.Washer1.Cents, rep.Washer2.Cents, rep.Dryer1.Cents, rep.Dryer2.Cents,
		rep.Online.Cents, rep.Offline.Cents, rep.TotalSales.Cents, rep.MoneyCollected.Cents,
		rep.Notes, rep.CreatedAt.Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		return err
	}
	return clearTombstone(ctx, q, records.KindReport, rep.ID)
}

// clearTombstone forgets an earlier deletion when an id is reused, e.g. by
// re-importing an export.
func clearTombstone(ctx context.Context, q queryer, kind records.Kind, id string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM sync_deletions WHERE kind = ? AND id = ?`, string(kind), id)
	return err
}

func updateReport(ctx context.Context, q queryer, rep core.WeeklyReport, now time.Time) (int64, error) {
	res, err := q.ExecContext(ctx, `UPDATE weekly_reports SET
			year = ?, month = ?, week = ?,
			washer1_cents = ?, washer2_cents = ?, dryer1_cents = ?, dryer2_cents = ?,
			online_cents = ?, offline_cents = ?, total_sales_cents = ?, money_collected_cents = ?,
			notes = ?, created_at = ?, updated_at = ?,
			sync_status = 'pending', sync_version = sync_version + 1
		WHERE id = ?`,
		rep.Year, rep.Month, rep.Week,
		rep.Washer1.Cents, rep.Washer2.Cents, rep.Dryer1.Cents, rep.Dryer2.Cents,
		rep.Online.Cents, rep.Offline.Cents, rep.TotalSales.Cents, rep.MoneyCollected.Cents,
		rep.Notes, rep.CreatedAt.Format(timeLayout), now.Format(timeLayout), rep.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) CreateReport(ctx context.Context, rep core.WeeklyReport) (core.WeeklyReport, error) {
	rep.Normalize()
	if err := rep.Validate(); err != nil {
		return core.WeeklyReport{}, err
	}
	if rep.ID == "" {
		rep.ID = uuid.NewString()
	}
	if err := insertReport(ctx, r.db, rep, r.now()); err != nil {
		return core.WeeklyReport{}, fmt.Errorf("create report: %w", err)
	}

	slog.InfoContext(ctx, "Weekly report saved to SQLite",
		"id", rep.ID,
		"year", rep.Year,
		"month", rep.Month,
		"week", rep.Week,
		"total_sales_cents", rep.TotalSales.Cents)
	return rep, nil
}

func (r *SQLiteRepository) UpdateReport(ctx context.Context, rep core.WeeklyReport) (core.WeeklyReport, error) {
	rep.Normalize()
	if err := rep.Validate(); err != nil {
		return core.WeeklyReport{}, err
	}
	n, err := updateReport(ctx, r.db, rep, r.now())
	if err != nil {
		return core.WeeklyReport{}, fmt.Errorf("update report: %w", err)
	}
	if n == 0 {
		return core.WeeklyReport{}, fmt.Errorf("report %s: %w", rep.ID, core.ErrNotFound)
	}
	return rep, nil
}

func (r *SQLiteRepository) DeleteReport(ctx context.Context, id string) error {
	return r.deleteWithTombstone(ctx, records.KindReport, "weekly_reports", id)
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	return listTransactions(ctx, r.db)
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

func insertTransaction(ctx context.Context, q queryer, t core.Transaction, now time.Time) error {
	_, err := q.ExecContext(ctx, `INSERT INTO transactions (`+transactionColumns+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Date.String(), string(t.Kind), t.Amount.Cents, t.Description,
		t.CreatedAt.Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		return err
	}
	return clearTombstone(ctx, q, records.KindTransaction, t.ID)
}

func updateTransaction(ctx context.Context, q queryer, t core.Transaction, now time.Time) (int64, error) {
	res, err := q.ExecContext(ctx, `UPDATE transactions SET
			date = ?, type = ?, amount_cents = ?, description = ?, created_at = ?, updated_at = ?,
			sync_status = 'pending', sync_version = sync_version + 1
		WHERE id = ?`,
		t.Date.String(), string(t.Kind), t.Amount.Cents, t.Description,
		t.CreatedAt.Format(timeLayout), now.Format(timeLayout), t.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t.Normalize()
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if err := insertTransaction(ctx, r.db, t, r.now()); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"type", t.Kind,
		"date", t.Date.String(),
		"amount_cents", t.Amount.Cents)
	return t, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t.Normalize()
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	n, err := updateTransaction(ctx, r.db, t, r.now())
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if n == 0 {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", t.ID, core.ErrNotFound)
	}
	return t, nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	return r.deleteWithTombstone(ctx, records.KindTransaction, "transactions", id)
}

// deleteWithTombstone removes a row and records the deletion for the mirror
// in the same transaction.
func (r *SQLiteRepository) deleteWithTombstone(ctx context.Context, kind records.Kind, table, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO sync_deletions (kind, id, deleted_at) VALUES (?, ?, ?)
		ON CONFLICT (kind, id) DO UPDATE SET deleted_at = excluded.deleted_at`,
		string(kind), id, r.now().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("record deletion: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	slog.InfoContext(ctx, "Record deleted from SQLite", "kind", kind, "id", id)
	return nil
}

// Merge upserts an imported batch in a single transaction.
func (r *SQLiteRepository) Merge(ctx context.Context, b records.Bundle) (records.MergeResult, error) {
	var res records.MergeResult
	now := r.now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin merge: %w", err)
	}
	defer tx.Rollback()

	for _, rep := range b.Reports {
		rep.Normalize()
		if err := rep.Validate(); err != nil {
			return records.MergeResult{}, fmt.Errorf("report %s: %w", rep.ID, err)
		}
		if rep.ID == "" {
			rep.ID = uuid.NewString()
		}
		n, err := updateReport(ctx, tx, rep, now)
		if err != nil {
			return records.MergeResult{}, fmt.Errorf("merge report %s: %w", rep.ID, err)
		}
		if n > 0 {
			res.ReportsReplaced++
			continue
		}
		if err := insertReport(ctx, tx, rep, now); err != nil {
			return records.MergeResult{}, fmt.Errorf("merge report %s: %w", rep.ID, err)
		}
		res.ReportsAdded++
	}

	for _, t := range b.Transactions {
		t.Normalize()
		if err := t.Validate(); err != nil {
			return records.MergeResult{}, fmt.Errorf("transaction %s: %w", t.ID, err)
		}
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		n, err := updateTransaction(ctx, tx, t, now)
		if err != nil {
			return records.MergeResult{}, fmt.Errorf("merge transaction %s: %w", t.ID, err)
		}
		if n > 0 {
			res.TransactionsReplaced++
			continue
		}
		if err := insertTransaction(ctx, tx, t, now); err != nil {
			return records.MergeResult{}, fmt.Errorf("merge transaction %s: %w", t.ID, err)
		}
		res.TransactionsAdded++
	}

	if err := tx.Commit(); err != nil {
		return records.MergeResult{}, fmt.Errorf("commit merge: %w", err)
	}

	slog.InfoContext(ctx, "Import merged into SQLite",
		"reports_added", res.ReportsAdded,
		"reports_replaced", res.ReportsReplaced,
		"transactions_added", res.TransactionsAdded,
		"transactions_replaced", res.TransactionsReplaced)
	return res, nil
}
