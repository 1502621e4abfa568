// Package memory is an in-process record store. When given a file path it
// seeds itself from a JSON snapshot, rewrites the file after every
// mutation and reloads it when another process has replaced it.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"laundrytrack/internal/core"
	"laundrytrack/internal/records"
)

// SchemaVersion is the snapshot file version written by this package.
//
//	0: transaction amounts could be positive
//	1: amounts are non-positive, totalSales may disagree with online+offline
//	2: totalSales always equals online+offline
const SchemaVersion = 2

type fileState struct {
	Reports      []core.WeeklyReport `json:"reports"`
	Transactions []core.Transaction  `json:"transactions"`
}

type snapshotFile struct {
	State   fileState `json:"state"`
	Version int       `json:"version"`
}

type Store struct {
	mu      sync.Mutex
	path    string
	version uint64
	stamp   fileStamp
	reports []core.WeeklyReport
	txs     []core.Transaction
}

var _ records.Store = (*Store)(nil)

// New returns an empty, non-persistent store.
func New() *Store {
	return &Store{version: 1}
}

// NewFromFile loads path if it exists and persists to it from then on.
// A file written by an older schema is migrated and rewritten. When
// another process replaces the file, the store reloads it before the next
// read or write.
func NewFromFile(path string) (*Store, error) {
	s := &Store{path: path, version: 1}
	f, st, err := readSnapshot(path)
	if err != nil {
		return nil, err
	}
	s.stamp = st
	if f == nil {
		return s, nil
	}
	from := f.Version
	migrate(f)
	s.reports = f.State.Reports
	s.txs = f.State.Transactions
	if from < SchemaVersion {
		slog.Info("Migrated record snapshot", "path", path, "from_version", from, "to_version", SchemaVersion,
			"reports", len(s.reports), "transactions", len(s.txs))
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// fileStamp identifies one version of the snapshot file on disk.
type fileStamp struct {
	modTime time.Time
	size    int64
}

func stampOf(info os.FileInfo) fileStamp {
	return fileStamp{modTime: info.ModTime(), size: info.Size()}
}

// readSnapshot returns a nil file when path is missing or empty.
func readSnapshot(path string) (*snapshotFile, fileStamp, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fileStamp{}, nil
	}
	if err != nil {
		return nil, fileStamp{}, fmt.Errorf("stat snapshot %s: %w", path, err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fileStamp{}, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	if len(b) == 0 {
		return nil, stampOf(info), nil
	}
	var f snapshotFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fileStamp{}, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return &f, stampOf(info), nil
}

// lock takes the store mutex and picks up writes made by other processes.
func (s *Store) lock() {
	s.mu.Lock()
	s.reloadLocked()
}

// reloadLocked replaces the in-memory state when the file on disk no
// longer matches the last one this store read or wrote. A file that
// cannot be read leaves the state as it was.
func (s *Store) reloadLocked() {
	if s.path == "" {
		return
	}
	info, err := os.Stat(s.path)
	if err != nil || stampOf(info) == s.stamp {
		return
	}
	f, st, err := readSnapshot(s.path)
	if err != nil {
		slog.Warn("Snapshot changed on disk but could not be reloaded", "path", s.path, "error", err)
		return
	}
	if f == nil {
		f = &snapshotFile{}
	}
	migrate(f)
	s.reports = f.State.Reports
	s.txs = f.State.Transactions
	s.stamp = st
	s.version++
	slog.Info("Reloaded record snapshot", "path", s.path, "reports", len(s.reports), "transactions", len(s.txs))
}

// migrate brings any older snapshot up to SchemaVersion. Normalizing
// covers both historical changes: amounts become non-positive and
// totalSales is recomputed.
func migrate(f *snapshotFile) {
	for i := range f.State.Reports {
		f.State.Reports[i].Normalize()
		if f.State.Reports[i].ID == "" {
			f.State.Reports[i].ID = uuid.NewString()
		}
	}
	for i := range f.State.Transactions {
		f.State.Transactions[i].Normalize()
		if f.State.Transactions[i].ID == "" {
			f.State.Transactions[i].ID = uuid.NewString()
		}
	}
	f.Version = SchemaVersion
}

func (s *Store) Close() error { return nil }

func (s *Store) Version() uint64 {
	s.lock()
	defer s.mu.Unlock()
	return s.version
}

func (s *Store) Snapshot(_ context.Context) (records.Snapshot, error) {
	s.lock()
	defer s.mu.Unlock()
	return records.Snapshot{
		Version:      s.version,
		Reports:      slices.Clone(s.reports),
		Transactions: slices.Clone(s.txs),
	}, nil
}

func (s *Store) ListReports(_ context.Context) ([]core.WeeklyReport, error) {
	s.lock()
	defer s.mu.Unlock()
	return slices.Clone(s.reports), nil
}

func (s *Store) GetReport(_ context.Context, id string) (core.WeeklyReport, error) {
	s.lock()
	defer s.mu.Unlock()
	i := s.reportIndex(id)
	if i < 0 {
		return core.WeeklyReport{}, fmt.Errorf("report %s: %w", id, core.ErrNotFound)
	}
	return s.reports[i], nil
}

func (s *Store) CreateReport(_ context.Context, r core.WeeklyReport) (core.WeeklyReport, error) {
	r.Normalize()
	if err := r.Validate(); err != nil {
		return core.WeeklyReport{}, err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	s.lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	return r, s.commitLocked()
}

func (s *Store) UpdateReport(_ context.Context, r core.WeeklyReport) (core.WeeklyReport, error) {
	r.Normalize()
	if err := r.Validate(); err != nil {
		return core.WeeklyReport{}, err
	}
	s.lock()
	defer s.mu.Unlock()
	i := s.reportIndex(r.ID)
	if i < 0 {
		return core.WeeklyReport{}, fmt.Errorf("report %s: %w", r.ID, core.ErrNotFound)
	}
	s.reports[i] = r
	return r, s.commitLocked()
}

func (s *Store) DeleteReport(_ context.Context, id string) error {
	s.lock()
	defer s.mu.Unlock()
	i := s.reportIndex(id)
	if i < 0 {
		return fmt.Errorf("report %s: %w", id, core.ErrNotFound)
	}
	s.reports = slices.Delete(s.reports, i, i+1)
	return s.commitLocked()
}

func (s *Store) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	s.lock()
	defer s.mu.Unlock()
	return slices.Clone(s.txs), nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.lock()
	defer s.mu.Unlock()
	i := s.txIndex(id)
	if i < 0 {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return s.txs[i], nil
}

func (s *Store) CreateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	t.Normalize()
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	s.lock()
	defer s.mu.Unlock()
	s.txs = append(s.txs, t)
	return t, s.commitLocked()
}

func (s *Store) UpdateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	t.Normalize()
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.lock()
	defer s.mu.Unlock()
	i := s.txIndex(t.ID)
	if i < 0 {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", t.ID, core.ErrNotFound)
	}
	s.txs[i] = t
	return t, s.commitLocked()
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.lock()
	defer s.mu.Unlock()
	i := s.txIndex(id)
	if i < 0 {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	s.txs = slices.Delete(s.txs, i, i+1)
	return s.commitLocked()
}

// Merge replaces records whose id already exists and appends the rest. The
// batch is validated up front so a bad row leaves the store untouched.
func (s *Store) Merge(_ context.Context, b records.Bundle) (records.MergeResult, error) {
	reports := make([]core.WeeklyReport, 0, len(b.Reports))
	for _, r := range b.Reports {
		r.Normalize()
		if err := r.Validate(); err != nil {
			return records.MergeResult{}, fmt.Errorf("report %s: %w", r.ID, err)
		}
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		reports = append(reports, r)
	}
	txs := make([]core.Transaction, 0, len(b.Transactions))
	for _, t := range b.Transactions {
		t.Normalize()
		if err := t.Validate(); err != nil {
			return records.MergeResult{}, fmt.Errorf("transaction %s: %w", t.ID, err)
		}
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		txs = append(txs, t)
	}

	var res records.MergeResult
	s.lock()
	defer s.mu.Unlock()
	for _, r := range reports {
		if i := s.reportIndex(r.ID); i >= 0 {
			s.reports[i] = r
			res.ReportsReplaced++
			continue
		}
		s.reports = append(s.reports, r)
		res.ReportsAdded++
	}
	for _, t := range txs {
		if i := s.txIndex(t.ID); i >= 0 {
			s.txs[i] = t
			res.TransactionsReplaced++
			continue
		}
		s.txs = append(s.txs, t)
		res.TransactionsAdded++
	}
	return res, s.commitLocked()
}

func (s *Store) reportIndex(id string) int {
	return slices.IndexFunc(s.reports, func(r core.WeeklyReport) bool { return r.ID == id })
}

func (s *Store) txIndex(id string) int {
	return slices.IndexFunc(s.txs, func(t core.Transaction) bool { return t.ID == id })
}

// commitLocked bumps the version and persists. The in-memory change is kept
// even when the write fails.
func (s *Store) commitLocked() error {
	s.version++
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}
	f := snapshotFile{
		State:   fileState{Reports: s.reports, Transactions: s.txs},
		Version: SchemaVersion,
	}
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create snapshot directory: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	if info, err := os.Stat(s.path); err == nil {
		s.stamp = stampOf(info)
	}
	return nil
}
