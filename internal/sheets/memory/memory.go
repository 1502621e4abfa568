package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"laundrytrack/internal/core"
	"laundrytrack/internal/records"
	ports "laundrytrack/internal/sheets"
)

// ErrUnavailable is returned while the mirror is set to fail.
var ErrUnavailable = errors.New("mirror unavailable")

// Mirror keeps mirrored rows in memory. It is used when no spreadsheet is
// configured and in tests, where SetFailing simulates an outage.
type Mirror struct {
	mu           sync.Mutex
	reports      map[string]core.WeeklyReport
	transactions map[string]core.Transaction
	failing      bool
	writes       int
}

var _ ports.Mirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{
		reports:      map[string]core.WeeklyReport{},
		transactions: map[string]core.Transaction{},
	}
}

// SetFailing makes every following call return ErrUnavailable until reset.
func (m *Mirror) SetFailing(failing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing = failing
}

func (m *Mirror) UpsertReport(_ context.Context, r core.WeeklyReport) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return "", ErrUnavailable
	}
	m.reports[r.ID] = r
	m.writes++
	return fmt.Sprintf("mem:report:%s", r.ID), nil
}

func (m *Mirror) UpsertTransaction(_ context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return "", ErrUnavailable
	}
	m.transactions[t.ID] = t
	m.writes++
	return fmt.Sprintf("mem:transaction:%s", t.ID), nil
}

func (m *Mirror) Delete(_ context.Context, kind records.Kind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return ErrUnavailable
	}
	switch kind {
	case records.KindReport:
		delete(m.reports, id)
	case records.KindTransaction:
		delete(m.transactions, id)
	default:
		return fmt.Errorf("unknown record kind %q", kind)
	}
	m.writes++
	return nil
}

// Report returns the mirrored copy of a report.
func (m *Mirror) Report(id string) (core.WeeklyReport, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	return r, ok
}

// Transaction returns the mirrored copy of a transaction.
func (m *Mirror) Transaction(id string) (core.Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transactions[id]
	return t, ok
}

// Writes counts successful calls.
func (m *Mirror) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
