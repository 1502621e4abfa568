package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"laundrytrack/internal/amqp"
	"laundrytrack/internal/calendar"
	"laundrytrack/internal/core"
	"laundrytrack/internal/records"
	"laundrytrack/internal/xlsx"
)

// MirrorNotice is returned alongside a successful write whose mirror update
// could not be queued. The record is saved; the worker's pending pass
// retries it later.
const MirrorNotice = "Saved locally, but the spreadsheet mirror could not be updated. It will be retried."

// ErrBadWorkbook marks an import file that could not be read.
var ErrBadWorkbook = errors.New("unreadable workbook")

// Publisher queues mirror updates. *amqp.Client implements it.
type Publisher interface {
	PublishRecordSync(ctx context.Context, kind, id, op string, version int64) error
	Close() error
}

// syncVersioner is implemented by stores that track per-record sync versions.
type syncVersioner interface {
	SyncVersion(ctx context.Context, kind records.Kind, id string) (int64, error)
}

// ReportInput is a weekly report as typed into a form. Amounts are free text
// and coerced here, once.
type ReportInput struct {
	Year           int    `json:"year"`
	Month          int    `json:"month"`
	Week           int    `json:"week"`
	Washer1        string `json:"washer1"`
	Washer2        string `json:"washer2"`
	Dryer1         string `json:"dryer1"`
	Dryer2         string `json:"dryer2"`
	Online         string `json:"online"`
	Offline        string `json:"offline"`
	MoneyCollected string `json:"moneyCollected"`
	Notes          string `json:"notes"`
}

// TransactionInput is an expense or refund as typed into a form. The date
// is the last day of the chosen slot unless Date is given.
type TransactionInput struct {
	Year        int    `json:"year"`
	Month       int    `json:"month"`
	Week        int    `json:"week"`
	Date        string `json:"date,omitempty"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

// Result pairs a saved record with an optional notice for the user.
type Result[T any] struct {
	Record T      `json:"record"`
	Notice string `json:"notice,omitempty"`
}

// RecordService orchestrates record writes across the store and the mirror
// queue. Reads go straight to the store.
type RecordService struct {
	store     records.Store
	publisher Publisher
	now       func() time.Time
}

func NewRecordService(store records.Store, publisher Publisher) *RecordService {
	return &RecordService{store: store, publisher: publisher, now: time.Now}
}

// Store exposes the underlying store for reads.
func (s *RecordService) Store() records.Store {
	return s.store
}

func (in ReportInput) toReport() core.WeeklyReport {
	r := core.WeeklyReport{
		Year:           in.Year,
		Month:          in.Month,
		Week:           in.Week,
		Washer1:        core.ParseAmountOrZero(in.Washer1),
		Washer2:        core.ParseAmountOrZero(in.Washer2),
		Dryer1:         core.ParseAmountOrZero(in.Dryer1),
		Dryer2:         core.ParseAmountOrZero(in.Dryer2),
		Online:         core.ParseAmountOrZero(in.Online),
		Offline:        core.ParseAmountOrZero(in.Offline),
		MoneyCollected: core.ParseAmountOrZero(in.MoneyCollected),
		Notes:          strings.TrimSpace(in.Notes),
	}
	r.Normalize()
	return r
}

func (in TransactionInput) toTransaction() (core.Transaction, error) {
	t := core.Transaction{
		Kind:        core.ParseKind(in.Type),
		Amount:      core.ParseAmountOrZero(in.Amount),
		Description: strings.TrimSpace(in.Description),
	}
	if strings.TrimSpace(in.Date) != "" {
		d, err := core.ParseDate(in.Date)
		if err != nil {
			return core.Transaction{}, err
		}
		t.Date = d
	} else {
		if in.Month < 0 || in.Month > 11 {
			return core.Transaction{}, fmt.Errorf("%w: %d", core.ErrInvalidMonth, in.Month)
		}
		if in.Year < 1 || in.Year > 9999 {
			return core.Transaction{}, fmt.Errorf("%w: %d", core.ErrInvalidYear, in.Year)
		}
		t.Date = calendar.SlotDate(in.Year, in.Month, in.Week)
	}
	t.Normalize()
	return t, nil
}

// CreateReport saves a new report, then queues its mirror update.
func (s *RecordService) CreateReport(ctx context.Context, in ReportInput) (Result[core.WeeklyReport], error) {
	r := in.toReport()
	r.CreatedAt = s.now()
	saved, err := s.store.CreateReport(ctx, r)
	if err != nil {
		return Result[core.WeeklyReport]{}, fmt.Errorf("save report: %w", err)
	}
	return Result[core.WeeklyReport]{
		Record: saved,
		Notice: s.publish(ctx, records.KindReport, saved.ID, amqp.OpUpsert),
	}, nil
}

// UpdateReport replaces the editable fields of a report. CreatedAt is kept.
func (s *RecordService) UpdateReport(ctx context.Context, id string, in ReportInput) (Result[core.WeeklyReport], error) {
	existing, err := s.store.GetReport(ctx, id)
	if err != nil {
		return Result[core.WeeklyReport]{}, err
	}
	r := in.toReport()
	r.ID = id
	r.CreatedAt = existing.CreatedAt
	saved, err := s.store.UpdateReport(ctx, r)
	if err != nil {
		return Result[core.WeeklyReport]{}, fmt.Errorf("update report: %w", err)
	}
	return Result[core.WeeklyReport]{
		Record: saved,
		Notice: s.publish(ctx, records.KindReport, id, amqp.OpUpsert),
	}, nil
}

// DeleteReport removes a report and returns an optional notice.
func (s *RecordService) DeleteReport(ctx context.Context, id string) (string, error) {
	if err := s.store.DeleteReport(ctx, id); err != nil {
		return "", err
	}
	return s.publish(ctx, records.KindReport, id, amqp.OpDelete), nil
}

func (s *RecordService) CreateTransaction(ctx context.Context, in TransactionInput) (Result[core.Transaction], error) {
	t, err := in.toTransaction()
	if err != nil {
		return Result[core.Transaction]{}, err
	}
	t.CreatedAt = s.now()
	saved, err := s.store.CreateTransaction(ctx, t)
	if err != nil {
		return Result[core.Transaction]{}, fmt.Errorf("save transaction: %w", err)
	}
	return Result[core.Transaction]{
		Record: saved,
		Notice: s.publish(ctx, records.KindTransaction, saved.ID, amqp.OpUpsert),
	}, nil
}

func (s *RecordService) UpdateTransaction(ctx context.Context, id string, in TransactionInput) (Result[core.Transaction], error) {
	existing, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return Result[core.Transaction]{}, err
	}
	t, err := in.toTransaction()
	if err != nil {
		return Result[core.Transaction]{}, err
	}
	t.ID = id
	t.CreatedAt = existing.CreatedAt
	saved, err := s.store.UpdateTransaction(ctx, t)
	if err != nil {
		return Result[core.Transaction]{}, fmt.Errorf("update transaction: %w", err)
	}
	return Result[core.Transaction]{
		Record: saved,
		Notice: s.publish(ctx, records.KindTransaction, id, amqp.OpUpsert),
	}, nil
}

func (s *RecordService) DeleteTransaction(ctx context.Context, id string) (string, error) {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return "", err
	}
	return s.publish(ctx, records.KindTransaction, id, amqp.OpDelete), nil
}

// Import merges a workbook into the store by id and queues every merged
// record for mirroring.
func (s *RecordService) Import(ctx context.Context, r io.Reader) (Result[records.MergeResult], error) {
	b, err := xlsx.ImportAt(r, s.now())
	if err != nil {
		return Result[records.MergeResult]{}, fmt.Errorf("%w: %w", ErrBadWorkbook, err)
	}
	res, err := s.store.Merge(ctx, b)
	if err != nil {
		return Result[records.MergeResult]{}, fmt.Errorf("merge import: %w", err)
	}

	slog.InfoContext(ctx, "Workbook imported",
		"reports_added", res.ReportsAdded,
		"reports_replaced", res.ReportsReplaced,
		"transactions_added", res.TransactionsAdded,
		"transactions_replaced", res.TransactionsReplaced)

	var notice string
	for _, rep := range b.Reports {
		if n := s.publish(ctx, records.KindReport, rep.ID, amqp.OpUpsert); n != "" {
			notice = n
		}
	}
	for _, t := range b.Transactions {
		if n := s.publish(ctx, records.KindTransaction, t.ID, amqp.OpUpsert); n != "" {
			notice = n
		}
	}
	return Result[records.MergeResult]{Record: res, Notice: notice}, nil
}

// Export writes the current snapshot as a workbook.
func (s *RecordService) Export(ctx context.Context) ([]byte, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return xlsx.Export(snap.Reports, snap.Transactions)
}

// publish is fire-and-forget: the local write already succeeded, so a
// failure only produces a notice.
func (s *RecordService) publish(ctx context.Context, kind records.Kind, id, op string) string {
	if s.publisher == nil {
		return ""
	}
	version := int64(1)
	if sv, ok := s.store.(syncVersioner); ok && op != amqp.OpDelete {
		if v, err := sv.SyncVersion(ctx, kind, id); err == nil {
			version = v
		}
	}
	if err := s.publisher.PublishRecordSync(ctx, string(kind), id, op, version); err != nil {
		level := slog.LevelError
		if errors.Is(err, amqp.ErrCircuitOpen) {
			level = slog.LevelWarn
		}
		slog.Log(ctx, level, "Failed to publish sync message",
			"kind", kind, "id", id, "op", op, "error", err)
		return MirrorNotice
	}
	return ""
}

// Close closes both the store and the publisher.
func (s *RecordService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	return errors.Join(errs...)
}
