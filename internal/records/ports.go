// Package records defines the ports every record store implements.
package records

import (
	"context"

	"laundrytrack/internal/core"
)

// Kind names the two record collections.
type Kind string

const (
	KindReport      Kind = "report"
	KindTransaction Kind = "transaction"
)

// Snapshot is an immutable copy of both collections taken at Version.
// Callers may keep it; the store never mutates a snapshot it handed out.
type Snapshot struct {
	Version      uint64
	Reports      []core.WeeklyReport
	Transactions []core.Transaction
}

// Bundle is a batch of records, as read from an import file.
type Bundle struct {
	Reports      []core.WeeklyReport
	Transactions []core.Transaction
}

// MergeResult counts what a Merge did.
type MergeResult struct {
	ReportsAdded         int `json:"reportsAdded"`
	ReportsReplaced      int `json:"reportsReplaced"`
	TransactionsAdded    int `json:"transactionsAdded"`
	TransactionsReplaced int `json:"transactionsReplaced"`
}

// Ports for the record stores.
type (
	ReportStore interface {
		ListReports(ctx context.Context) ([]core.WeeklyReport, error)
		GetReport(ctx context.Context, id string) (core.WeeklyReport, error)
		// CreateReport assigns an id when r.ID is empty.
		CreateReport(ctx context.Context, r core.WeeklyReport) (core.WeeklyReport, error)
		UpdateReport(ctx context.Context, r core.WeeklyReport) (core.WeeklyReport, error)
		DeleteReport(ctx context.Context, id string) error
	}

	TransactionStore interface {
		ListTransactions(ctx context.Context) ([]core.Transaction, error)
		GetTransaction(ctx context.Context, id string) (core.Transaction, error)
		CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, id string) error
	}

	// Snapshotter hands out consistent copies. Version increases on every
	// successful mutation, so an unchanged version means cached aggregates
	// are still good.
	Snapshotter interface {
		Snapshot(ctx context.Context) (Snapshot, error)
		Version() uint64
	}

	// Merger upserts a batch by id.
	Merger interface {
		Merge(ctx context.Context, b Bundle) (MergeResult, error)
	}

	Store interface {
		ReportStore
		TransactionStore
		Snapshotter
		Merger
		Close() error
	}
)
