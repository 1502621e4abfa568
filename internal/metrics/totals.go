// Package metrics turns record snapshots into totals.
//
// Every function here is pure: it reads the slices it is given and never
// retains them. Reports are bucketed by their declared year and month except
// in RangeTotals, which uses the creation timestamp. Transactions are always
// bucketed by their date.
package metrics

import (
	"laundrytrack/internal/calendar"
	"laundrytrack/internal/core"
)

// Totals holds the four headline figures. Expenses and Refunds are positive
// magnitudes and Revenue = Sales - Expenses - Refunds.
type Totals struct {
	Sales    core.Money `json:"sales"`
	Expenses core.Money `json:"expenses"`
	Refunds  core.Money `json:"refunds"`
	Revenue  core.Money `json:"revenue"`
}

// Annual is a year broken into 12 monthly buckets plus their sum.
type Annual struct {
	Year    int        `json:"year"`
	Monthly [12]Totals `json:"monthly"`
	Totals  Totals     `json:"totals"`
}

func (t *Totals) addTransaction(tx core.Transaction) {
	amount := tx.Amount.Abs()
	if tx.Kind == core.Refund {
		t.Refunds = t.Refunds.Add(amount)
		return
	}
	t.Expenses = t.Expenses.Add(amount)
}

func (t *Totals) settle() {
	t.Revenue = t.Sales.Sub(t.Expenses).Sub(t.Refunds)
}

// Add returns the field-wise sum.
func (t Totals) Add(o Totals) Totals {
	return Totals{
		Sales:    t.Sales.Add(o.Sales),
		Expenses: t.Expenses.Add(o.Expenses),
		Refunds:  t.Refunds.Add(o.Refunds),
		Revenue:  t.Revenue.Add(o.Revenue),
	}
}

// MonthlyTotals buckets one year of data by month.
func MonthlyTotals(reports []core.WeeklyReport, txs []core.Transaction, year int) Annual {
	a := Annual{Year: year}
	for _, r := range reports {
		if r.Year != year || r.Month < 0 || r.Month > 11 {
			continue
		}
		a.Monthly[r.Month].Sales = a.Monthly[r.Month].Sales.Add(r.TotalSales)
	}
	for _, tx := range txs {
		y, m := calendar.BucketByMonth(tx.Date.Time)
		if y != year {
			continue
		}
		a.Monthly[m].addTransaction(tx)
	}
	for i := range a.Monthly {
		a.Monthly[i].settle()
		a.Totals = a.Totals.Add(a.Monthly[i])
	}
	return a
}

// MonthlyStats totals a single month.
func MonthlyStats(reports []core.WeeklyReport, txs []core.Transaction, year, month int) Totals {
	var t Totals
	for _, r := range reports {
		if r.Year == year && r.Month == month {
			t.Sales = t.Sales.Add(r.TotalSales)
		}
	}
	for _, tx := range txs {
		y, m := calendar.BucketByMonth(tx.Date.Time)
		if y == year && m == month {
			t.addTransaction(tx)
		}
	}
	t.settle()
	return t
}

// RangeTotals totals an inclusive day range. Reports are selected by
// CreatedAt, not by their declared slot, so a report entered late for an
// earlier week lands in the range it was created in.
func RangeTotals(reports []core.WeeklyReport, txs []core.Transaction, r core.DateRange) Totals {
	var t Totals
	for _, rep := range reports {
		if calendar.DayInRange(r, rep.CreatedAt) {
			t.Sales = t.Sales.Add(rep.TotalSales)
		}
	}
	for _, tx := range txs {
		if calendar.DayInRange(r, tx.Date.Time) {
			t.addTransaction(tx)
		}
	}
	t.settle()
	return t
}

// QuarterlyTotals sums monthly sales into four quarters.
func QuarterlyTotals(a Annual) [4]core.Money {
	var q [4]core.Money
	for m, t := range a.Monthly {
		i := calendar.BucketByQuarter(m)
		q[i] = q[i].Add(t.Sales)
	}
	return q
}
