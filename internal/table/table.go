// Package table flattens reports and transactions into one browsable list.
package table

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
	"time"

	"laundrytrack/internal/calendar"
	"laundrytrack/internal/core"
	"laundrytrack/internal/records"
)

// DefaultPageSize is the number of rows per page when none is configured.
const DefaultPageSize = 10

// Row types as shown to users.
const (
	TypeReport  = "Weekly Report"
	TypeExpense = "Expenses"
	TypeRefund  = "Refund"
)

type Row struct {
	ID          string       `json:"id"`
	Kind        records.Kind `json:"kind"`
	Year        int          `json:"year"`
	Month       int          `json:"month"`
	MonthName   string       `json:"monthName"`
	Type        string       `json:"type"`
	Amount      core.Money   `json:"amount"`
	Display     string       `json:"display"`
	Description string       `json:"description"`
	// Week is set on report rows only.
	Week int `json:"week,omitempty"`
	// Date is the entry day for reports and the transaction date otherwise.
	Date      core.Date `json:"date"`
	CreatedAt time.Time `json:"createdAt"`
}

// Query selects and orders rows. Zero values mean no filter, default order
// and the first page.
type Query struct {
	Search   string
	Sort     string // year | month | amount; empty means year descending
	Desc     bool
	Page     int // 1-based
	PageSize int
}

type Page struct {
	Rows       []Row `json:"rows"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalRows  int   `json:"totalRows"`
	TotalPages int   `json:"totalPages"`
}

// Rows builds one row per record. Reports use their declared period and
// total sales and are dated by when they were entered; transactions use
// their own date.
func Rows(reports []core.WeeklyReport, txs []core.Transaction) []Row {
	out := make([]Row, 0, len(reports)+len(txs))
	for _, r := range reports {
		out = append(out, Row{
			ID:          r.ID,
			Kind:        records.KindReport,
			Year:        r.Year,
			Month:       r.Month,
			MonthName:   calendar.MonthName(r.Month),
			Type:        TypeReport,
			Amount:      r.TotalSales,
			Display:     r.TotalSales.String(),
			Description: r.Notes,
			Week:        r.Week,
			Date:        core.DateOf(r.CreatedAt.UTC()),
			CreatedAt:   r.CreatedAt,
		})
	}
	for _, t := range txs {
		typ := TypeExpense
		if t.Kind == core.Refund {
			typ = TypeRefund
		}
		out = append(out, Row{
			ID:          t.ID,
			Kind:        records.KindTransaction,
			Year:        t.Date.Year(),
			Month:       t.Date.MonthIndex(),
			MonthName:   calendar.MonthName(t.Date.MonthIndex()),
			Type:        typ,
			Amount:      t.Amount,
			Display:     t.Amount.String(),
			Description: t.Description,
			Date:        t.Date,
			CreatedAt:   t.CreatedAt,
		})
	}
	return out
}

// Filter keeps rows whose month name, year, type or description contains
// the search text, ignoring case.
func Filter(rows []Row, search string) []Row {
	needle := strings.ToLower(strings.TrimSpace(search))
	if needle == "" {
		return rows
	}
	var out []Row
	for _, r := range rows {
		hay := strings.ToLower(strings.Join([]string{
			r.MonthName, strconv.Itoa(r.Year), r.Type, r.Description,
		}, "\x00"))
		if strings.Contains(hay, needle) {
			out = append(out, r)
		}
	}
	return out
}

// Sort orders rows in place. Rows are first put newest first, so equal keys
// keep that order. An empty or unknown key sorts by year, newest first.
func Sort(rows []Row, key string, desc bool) {
	slices.SortStableFunc(rows, func(a, b Row) int { return b.at().Compare(a.at()) })

	var by func(a, b Row) int
	switch key {
	case "month":
		by = func(a, b Row) int {
			return cmp.Or(cmp.Compare(a.Year, b.Year), cmp.Compare(a.Month, b.Month))
		}
	case "amount":
		by = func(a, b Row) int { return cmp.Compare(a.Amount.Cents, b.Amount.Cents) }
	case "year":
		by = func(a, b Row) int { return cmp.Compare(a.Year, b.Year) }
	default:
		by, desc = func(a, b Row) int { return cmp.Compare(a.Year, b.Year) }, true
	}
	slices.SortStableFunc(rows, func(a, b Row) int {
		if desc {
			return by(b, a)
		}
		return by(a, b)
	})
}

// at is the instant a row is ordered by before any key applies.
func (r Row) at() time.Time {
	if r.Kind == records.KindReport {
		return r.CreatedAt
	}
	return r.Date.Time
}

// Paginate returns one page. Pages past the end are clamped to the last one.
func Paginate(rows []Row, page, size int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := len(rows)
	pages := max(1, (total+size-1)/size)
	page = min(max(page, 1), pages)

	start := (page - 1) * size
	end := min(start+size, total)
	return Page{
		Rows:       slices.Clone(rows[start:end]),
		Page:       page,
		PageSize:   size,
		TotalRows:  total,
		TotalPages: pages,
	}
}

// Build runs the full pipeline over a snapshot.
func Build(snap records.Snapshot, q Query) Page {
	rows := Filter(Rows(snap.Reports, snap.Transactions), q.Search)
	Sort(rows, q.Sort, q.Desc)
	return Paginate(rows, q.Page, q.PageSize)
}
