package metrics

import (
	"slices"
	"time"

	"laundrytrack/internal/calendar"
	"laundrytrack/internal/core"
)

// Gap compares declared offline sales with cash actually collected.
type Gap struct {
	Offline   core.Money `json:"offline"`
	Collected core.Money `json:"collected"`
	Gap       core.Money `json:"gap"`
}

// WeekPoint is one slot of a month's weekly trend.
type WeekPoint struct {
	Week   int            `json:"week"`
	Range  core.DateRange `json:"range"`
	Totals Totals         `json:"totals"`
}

// DayPoint is one day of a month's daily series.
type DayPoint struct {
	Day     int        `json:"day"`
	Sales   core.Money `json:"sales"`
	Revenue core.Money `json:"revenue"`
}

// MachineShare is one machine's load and its pro-rata share of sales.
type MachineShare struct {
	Name  string     `json:"name"`
	Load  core.Money `json:"load"`
	Sales core.Money `json:"sales"`
}

// Usage is the machine breakdown for a range.
type Usage struct {
	TotalLoad core.Money     `json:"totalLoad"`
	Sales     core.Money     `json:"sales"`
	Machines  []MachineShare `json:"machines"`
}

// OfflineGap sums offline sales and collected cash for a declared month.
// A positive gap means cash is missing.
func OfflineGap(reports []core.WeeklyReport, year, month int) Gap {
	var g Gap
	for _, r := range reports {
		if r.Year != year || r.Month != month {
			continue
		}
		g.Offline = g.Offline.Add(r.Offline)
		g.Collected = g.Collected.Add(r.MoneyCollected)
	}
	g.Gap = g.Offline.Sub(g.Collected)
	return g
}

// WeeklyRevenue totals each valid slot of a month. Reports are matched by
// their declared slot, transactions by date within the slot's days.
func WeeklyRevenue(reports []core.WeeklyReport, txs []core.Transaction, year, month int) []WeekPoint {
	var points []WeekPoint
	for _, slot := range calendar.MonthSlots(year, month) {
		if !slot.Valid {
			continue
		}
		p := WeekPoint{Week: slot.Week, Range: slot.Range}
		for _, r := range reports {
			if r.Year == year && r.Month == month && r.Week == slot.Week {
				p.Totals.Sales = p.Totals.Sales.Add(r.TotalSales)
			}
		}
		for _, tx := range txs {
			if calendar.DayInRange(slot.Range, tx.Date.Time) {
				p.Totals.addTransaction(tx)
			}
		}
		p.Totals.settle()
		points = append(points, p)
	}
	return points
}

// DailySeries returns per-day sales and revenue for a month. Reports are
// placed on the day they were created. For the month containing now the
// series stops at today.
func DailySeries(reports []core.WeeklyReport, txs []core.Transaction, year, month int, now time.Time) []DayPoint {
	days := calendar.DaysInMonth(year, month)
	if y, m := calendar.BucketByMonth(now); y == year && m == month {
		days = now.Day()
	}
	points := make([]DayPoint, days)
	outflow := make([]core.Money, days)
	for i := range points {
		points[i].Day = i + 1
	}
	for _, r := range reports {
		y, m := calendar.BucketByMonth(r.CreatedAt)
		if y != year || m != month || r.CreatedAt.Day() > days {
			continue
		}
		d := r.CreatedAt.Day() - 1
		points[d].Sales = points[d].Sales.Add(r.TotalSales)
	}
	for _, tx := range txs {
		y, m := calendar.BucketByMonth(tx.Date.Time)
		if y != year || m != month || tx.Date.Day() > days {
			continue
		}
		d := tx.Date.Day() - 1
		outflow[d] = outflow[d].Add(tx.Amount.Abs())
	}
	for i := range points {
		points[i].Revenue = points[i].Sales.Sub(outflow[i])
	}
	return points
}

// MachineUsage sums machine loads over reports whose slot overlaps r and
// splits sales across machines in proportion to load. When no report in
// range carries sales, fallbackSales is split instead.
func MachineUsage(reports []core.WeeklyReport, r core.DateRange, fallbackSales core.Money) Usage {
	machines := []MachineShare{{Name: "Washer 1"}, {Name: "Washer 2"}, {Name: "Dryer 1"}, {Name: "Dryer 2"}}
	var u Usage
	for _, rep := range reports {
		slot := calendar.WeekRange(rep.Year, rep.Month, rep.Week)
		if !slot.Valid || !calendar.Overlaps(slot.Range, r) {
			continue
		}
		for i, load := range []core.Money{rep.Washer1, rep.Washer2, rep.Dryer1, rep.Dryer2} {
			machines[i].Load = machines[i].Load.Add(load)
		}
		u.Sales = u.Sales.Add(rep.TotalSales)
	}
	for _, m := range machines {
		u.TotalLoad = u.TotalLoad.Add(m.Load)
	}
	pool := u.Sales
	if pool.IsZero() {
		pool = fallbackSales
	}
	if !u.TotalLoad.IsZero() {
		// Shares are rounded to the sen; the last machine with any load takes
		// the rounding remainder so the machines add up to pool exactly.
		total := u.TotalLoad.Decimal()
		last, assigned := -1, core.Money{}
		for i := range machines {
			if machines[i].Load.IsZero() {
				continue
			}
			share := machines[i].Load.Decimal().Div(total).Mul(pool.Decimal())
			machines[i].Sales = core.MoneyFromDecimal(share)
			assigned = assigned.Add(machines[i].Sales)
			last = i
		}
		machines[last].Sales = machines[last].Sales.Add(pool.Sub(assigned))
	}
	u.Machines = machines
	return u
}

// Years lists every year that has data, plus the current one, newest first.
func Years(reports []core.WeeklyReport, txs []core.Transaction, now time.Time) []int {
	seen := map[int]bool{now.Year(): true}
	for _, r := range reports {
		seen[r.Year] = true
	}
	for _, tx := range txs {
		seen[tx.Date.Year()] = true
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	slices.Sort(years)
	slices.Reverse(years)
	return years
}
