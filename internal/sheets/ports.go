// Package sheets defines the remote mirror ports. The mirror is a
// best-effort copy of the local records; nothing reads from it.
package sheets

import (
	"context"

	"laundrytrack/internal/core"
	"laundrytrack/internal/records"
)

// Ports for outbound adapters.
type (
	ReportWriter interface {
		// UpsertReport writes the report's row, replacing any row with the
		// same id, and returns a reference to it.
		UpsertReport(ctx context.Context, r core.WeeklyReport) (rowRef string, err error)
	}

	TransactionWriter interface {
		UpsertTransaction(ctx context.Context, t core.Transaction) (rowRef string, err error)
	}

	RecordDeleter interface {
		// Delete removes the row for id. A missing row is not an error.
		Delete(ctx context.Context, kind records.Kind, id string) error
	}

	Mirror interface {
		ReportWriter
		TransactionWriter
		RecordDeleter
	}
)
