// Package xlsx reads and writes the workbook used to move records between
// installations. A workbook has a WeeklyReports sheet and a Transactions
// sheet; the first row of each names the columns.
package xlsx

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"laundrytrack/internal/core"
	"laundrytrack/internal/records"
)

const (
	ReportsSheet      = "WeeklyReports"
	TransactionsSheet = "Transactions"
)

var reportColumns = []string{
	"id", "year", "month", "week",
	"washer1", "washer2", "dryer1", "dryer2",
	"online", "offline", "totalSales", "moneyCollected",
	"notes", "createdAt",
}

var transactionColumns = []string{"id", "date", "type", "amount", "description", "createdAt"}

// Export writes reports and transactions to a new workbook.
func Export(reports []core.WeeklyReport, txs []core.Transaction) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(ReportsSheet); err != nil {
		return nil, fmt.Errorf("create sheet %s: %w", ReportsSheet, err)
	}
	if _, err := f.NewSheet(TransactionsSheet); err != nil {
		return nil, fmt.Errorf("create sheet %s: %w", TransactionsSheet, err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	rows := make([][]any, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, []any{
			r.ID, r.Year, r.Month, r.Week,
			r.Washer1.Units(), r.Washer2.Units(), r.Dryer1.Units(), r.Dryer2.Units(),
			r.Online.Units(), r.Offline.Units(), r.TotalSales.Units(), r.MoneyCollected.Units(),
			r.Notes, r.CreatedAt.Format(time.RFC3339),
		})
	}
	if err := writeSheet(f, ReportsSheet, reportColumns, rows, style); err != nil {
		return nil, err
	}

	rows = rows[:0]
	for _, t := range txs {
		rows = append(rows, []any{
			t.ID, t.Date.String(), string(t.Kind), t.Amount.Units(),
			t.Description, t.CreatedAt.Format(time.RFC3339),
		})
	}
	if err := writeSheet(f, TransactionsSheet, transactionColumns, rows, style); err != nil {
		return nil, err
	}

	if idx, err := f.GetSheetIndex(ReportsSheet); err == nil {
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]any, style int) error {
	for c, h := range header {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("write %s header: %w", sheet, err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	for i, cells := range rows {
		for c, v := range cells {
			cell, _ := excelize.CoordinatesToCellName(c+1, i+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
			}
		}
	}
	return nil
}

// Import reads a workbook written by Export or edited by hand.
func Import(r io.Reader) (records.Bundle, error) {
	return ImportAt(r, time.Now())
}

// ImportAt is Import with a fixed clock for rows missing createdAt.
//
// Sheets and columns are found by name, ignoring case. Missing or
// unreadable numbers become zero, any type other than "refund" is an
// expense, and rows without an id get a fresh one. Records are normalized,
// so total sales and amount signs always hold.
func ImportAt(r io.Reader, now time.Time) (records.Bundle, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return records.Bundle{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var b records.Bundle

	if sheet, ok := findSheet(f, ReportsSheet); ok {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return records.Bundle{}, fmt.Errorf("read %s: %w", sheet, err)
		}
		for _, rec := range table(rows) {
			b.Reports = append(b.Reports, reportFrom(rec, now))
		}
	}

	if sheet, ok := findSheet(f, TransactionsSheet); ok {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return records.Bundle{}, fmt.Errorf("read %s: %w", sheet, err)
		}
		for i, rec := range table(rows) {
			t, err := transactionFrom(rec, now)
			if err != nil {
				return records.Bundle{}, fmt.Errorf("%s row %d: %w", sheet, i+2, err)
			}
			b.Transactions = append(b.Transactions, t)
		}
	}

	return b, nil
}

// ImportBytes is a convenience for callers holding the whole file.
func ImportBytes(data []byte) (records.Bundle, error) {
	return Import(bytes.NewReader(data))
}

func findSheet(f *excelize.File, name string) (string, bool) {
	for _, s := range f.GetSheetList() {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return s, true
		}
	}
	return "", false
}

// row maps a lowercased column name to its cell text.
type row map[string]string

func (r row) str(key string) string {
	return strings.TrimSpace(r[strings.ToLower(key)])
}

func (r row) num(key string) int {
	s := r.str(key)
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	// Spreadsheet apps like to turn 3 into 3.0.
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

func (r row) money(key string) core.Money {
	return core.ParseAmountOrZero(r.str(key))
}

func (r row) when(key string, def time.Time) time.Time {
	s := r.str(key)
	if s == "" {
		return def
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", core.DateLayout, "1/2/2006", "1/2/06"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t
		}
	}
	return def
}

// table turns raw rows into header-keyed rows, skipping blank lines.
func table(rows [][]string) []row {
	if len(rows) == 0 {
		return nil
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}
	var out []row
	for _, cells := range rows[1:] {
		r := row{}
		blank := true
		for i, v := range cells {
			if i >= len(header) || header[i] == "" {
				continue
			}
			if strings.TrimSpace(v) != "" {
				blank = false
			}
			r[header[i]] = v
		}
		if !blank {
			out = append(out, r)
		}
	}
	return out
}

func reportFrom(r row, now time.Time) core.WeeklyReport {
	rep := core.WeeklyReport{
		ID:             r.str("id"),
		Year:           r.num("year"),
		Month:          r.num("month"),
		Week:           r.num("week"),
		Washer1:        r.money("washer1"),
		Washer2:        r.money("washer2"),
		Dryer1:         r.money("dryer1"),
		Dryer2:         r.money("dryer2"),
		Online:         r.money("online"),
		Offline:        r.money("offline"),
		MoneyCollected: r.money("moneyCollected"),
		Notes:          r.str("notes"),
		CreatedAt:      r.when("createdAt", now),
	}
	if rep.ID == "" {
		rep.ID = uuid.NewString()
	}
	if rep.Year == 0 {
		rep.Year = now.Year()
	}
	if rep.Week == 0 {
		rep.Week = 1
	}
	rep.Normalize()
	return rep
}

func transactionFrom(r row, now time.Time) (core.Transaction, error) {
	t := core.Transaction{
		ID:          r.str("id"),
		Kind:        core.ParseKind(r.str("type")),
		Amount:      r.money("amount"),
		Description: r.str("description"),
		CreatedAt:   r.when("createdAt", now),
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	date := r.when("date", time.Time{})
	if date.IsZero() {
		return core.Transaction{}, fmt.Errorf("unreadable date %q: %w", r.str("date"), core.ErrInvalidDate)
	}
	t.Date = core.DateOf(date)
	t.Normalize()
	return t, nil
}
