package metrics

import (
	"math"
	"testing"
	"time"

	"laundrytrack/internal/calendar"
	"laundrytrack/internal/core"
)

func rm(units float64) core.Money {
	return core.Money{Cents: int64(math.Round(units * 100))}
}

func report(year, month, week int, online, offline float64, created time.Time) core.WeeklyReport {
	r := core.WeeklyReport{
		Year: year, Month: month, Week: week,
		Online: rm(online), Offline: rm(offline),
		CreatedAt: created,
	}
	r.Normalize()
	return r
}

func tx(kind core.TxKind, date core.Date, amount float64) core.Transaction {
	t := core.Transaction{Kind: kind, Date: date, Amount: rm(amount)}
	t.Normalize()
	return t
}

func TestMonthlyStatsScenario(t *testing.T) {
	r := core.WeeklyReport{
		Year: 2024, Month: 2, Week: 2,
		Online: rm(100), Offline: rm(50), TotalSales: rm(1), // stale total is recomputed
		CreatedAt: time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC),
	}
	r.Normalize()
	txs := []core.Transaction{tx(core.Expense, core.NewDate(2024, 3, 10), -20)}

	got := MonthlyStats([]core.WeeklyReport{r}, txs, 2024, 2)
	want := Totals{Sales: rm(150), Expenses: rm(20), Refunds: rm(0), Revenue: rm(130)}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestMonthlyTotals(t *testing.T) {
	created := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	reports := []core.WeeklyReport{
		report(2024, 0, 1, 100, 0, created),
		report(2024, 0, 1, 50, 25, created), // duplicate slot, summed
		report(2024, 11, 5, 10, 0, created),
		report(2023, 0, 1, 999, 0, created), // other year
	}
	txs := []core.Transaction{
		tx(core.Expense, core.NewDate(2024, 1, 15), 30),
		tx(core.Refund, core.NewDate(2024, 1, 20), -5),
		tx(core.Expense, core.NewDate(2024, 7, 1), 40), // month without sales
		tx(core.Expense, core.NewDate(2025, 1, 1), 1000),
	}

	a := MonthlyTotals(reports, txs, 2024)
	if a.Monthly[0] != (Totals{Sales: rm(175), Expenses: rm(30), Refunds: rm(5), Revenue: rm(140)}) {
		t.Fatalf("january: %+v", a.Monthly[0])
	}
	if a.Monthly[6] != (Totals{Expenses: rm(40), Revenue: rm(-40)}) {
		t.Fatalf("july: negative revenue should not be clamped, got %+v", a.Monthly[6])
	}
	if a.Monthly[11].Sales != rm(10) {
		t.Fatalf("december: %+v", a.Monthly[11])
	}

	var sum Totals
	for _, m := range a.Monthly {
		sum = sum.Add(m)
	}
	if sum != a.Totals {
		t.Fatalf("monthly buckets %+v do not add up to totals %+v", sum, a.Totals)
	}
	if a.Totals.Revenue != a.Totals.Sales.Sub(a.Totals.Expenses).Sub(a.Totals.Refunds) {
		t.Fatalf("revenue identity broken: %+v", a.Totals)
	}
}

func TestMonthlyTotalsEmpty(t *testing.T) {
	a := MonthlyTotals(nil, nil, 2024)
	if a.Totals != (Totals{}) {
		t.Fatalf("expected zero totals, got %+v", a.Totals)
	}
	if QuarterlyTotals(a) != [4]core.Money{} {
		t.Fatalf("expected zero quarters")
	}
}

func TestQuarterlyTotals(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var reports []core.WeeklyReport
	for m := 0; m < 12; m++ {
		reports = append(reports, report(2024, m, 1, float64(m+1), 0, created))
	}
	q := QuarterlyTotals(MonthlyTotals(reports, nil, 2024))
	want := [4]core.Money{rm(6), rm(15), rm(24), rm(33)}
	if q != want {
		t.Fatalf("got %v, want %v", q, want)
	}
}

func TestRangeTotalsUsesCreationDay(t *testing.T) {
	march := calendar.MonthRange(2024, 2)
	reports := []core.WeeklyReport{
		report(2024, 2, 1, 100, 0, time.Date(2024, 3, 31, 23, 59, 0, 0, time.UTC)),
		report(2024, 2, 1, 50, 0, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)),
	}
	txs := []core.Transaction{
		tx(core.Refund, core.NewDate(2024, 3, 1), 10),
		tx(core.Expense, core.NewDate(2024, 2, 29), 10),
	}
	got := RangeTotals(reports, txs, march)
	want := Totals{Sales: rm(100), Refunds: rm(10), Revenue: rm(90)}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestRangeTotalsMatchesMonthlyStatsWhenTimestampsAgree(t *testing.T) {
	reports := []core.WeeklyReport{
		report(2024, 4, 1, 80, 20, time.Date(2024, 5, 7, 18, 0, 0, 0, time.UTC)),
		report(2024, 4, 5, 40, 0, time.Date(2024, 5, 31, 8, 0, 0, 0, time.UTC)),
	}
	txs := []core.Transaction{tx(core.Expense, core.NewDate(2024, 5, 14), 15)}

	byRange := RangeTotals(reports, txs, calendar.MonthRange(2024, 4))
	byMonth := MonthlyStats(reports, txs, 2024, 4)
	if byRange != byMonth {
		t.Fatalf("range %+v != month %+v", byRange, byMonth)
	}
}

func TestRangeTotalsDivergesFromDeclaredPeriod(t *testing.T) {
	// A report for January week 4 entered on 2 February.
	late := report(2024, 0, 4, 200, 0, time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC))
	reports := []core.WeeklyReport{late}

	jan := calendar.MonthRange(2024, 0)
	feb := calendar.MonthRange(2024, 1)

	if got := MonthlyStats(reports, nil, 2024, 0).Sales; got != rm(200) {
		t.Fatalf("declared month should hold the sales, got %v", got)
	}
	if got := RangeTotals(reports, nil, jan).Sales; !got.IsZero() {
		t.Fatalf("january range should not see the late report, got %v", got)
	}
	if got := RangeTotals(reports, nil, feb).Sales; got != rm(200) {
		t.Fatalf("february range should see the late report, got %v", got)
	}
	if got := MonthlyStats(reports, nil, 2024, 1).Sales; !got.IsZero() {
		t.Fatalf("february by declared period should be empty, got %v", got)
	}
}
