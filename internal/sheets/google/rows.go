package google

import (
	"fmt"
	"strings"
	"time"

	"laundrytrack/internal/calendar"
	"laundrytrack/internal/core"
)

var reportHeader = []any{
	"id", "year", "month", "week", "week_start", "week_end",
	"washer1", "washer2", "dryer1", "dryer2", "online", "offline",
	"total_sales", "money_collected", "notes", "created_at",
}

var transactionHeader = []any{"id", "date", "type", "amount", "description", "created_at"}

// reportRow renders a report. Months are written 1-based for people reading
// the sheet; the slot's day range is spelled out.
func reportRow(r core.WeeklyReport) []any {
	var start, end string
	if slot := calendar.WeekRange(r.Year, r.Month, r.Week); slot.Valid {
		start, end = slot.Range.From.String(), slot.Range.To.String()
	}
	return []any{
		r.ID, r.Year, r.Month + 1, r.Week, start, end,
		units(r.Washer1), units(r.Washer2), units(r.Dryer1), units(r.Dryer2),
		units(r.Online), units(r.Offline), units(r.TotalSales), units(r.MoneyCollected),
		r.Notes, r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func transactionRow(t core.Transaction) []any {
	return []any{
		t.ID, t.Date.String(), string(t.Kind), units(t.Amount),
		t.Description, t.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// units keeps exact two-decimal text so USER_ENTERED input parses it as a
// number without float noise.
func units(m core.Money) string {
	return m.Decimal().StringFixed(2)
}

// findRow returns the 1-based sheet row whose first cell equals id, or 0.
func findRow(values [][]any, id string) int {
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i + 1
		}
	}
	return 0
}

// columnName converts a 1-based column index to A1 letters.
func columnName(n int) string {
	var s []byte
	for n > 0 {
		n--
		s = append([]byte{byte('A' + n%26)}, s...)
		n /= 26
	}
	return string(s)
}

func rowRange(sheet string, row, width int) string {
	return fmt.Sprintf("%s!A%d:%s%d", quoteSheet(sheet), row, columnName(width), row)
}

func quoteSheet(name string) string {
	if strings.ContainsAny(name, " '!") {
		return "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	return name
}
