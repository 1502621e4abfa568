package metrics

import (
	"slices"
	"testing"
	"time"

	"laundrytrack/internal/core"
)

func TestOfflineGap(t *testing.T) {
	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	a := report(2024, 2, 1, 0, 100, created)
	a.MoneyCollected = rm(80)
	b := report(2024, 2, 2, 0, 50, created)
	b.MoneyCollected = rm(50)
	other := report(2024, 3, 1, 0, 500, created)

	g := OfflineGap([]core.WeeklyReport{a, b, other}, 2024, 2)
	if g.Offline != rm(150) || g.Collected != rm(130) || g.Gap != rm(20) {
		t.Fatalf("unexpected gap %+v", g)
	}
}

func TestWeeklyRevenue(t *testing.T) {
	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	reports := []core.WeeklyReport{
		report(2023, 1, 1, 70, 0, created),
		report(2023, 1, 4, 40, 0, created),
	}
	txs := []core.Transaction{tx(core.Expense, core.NewDate(2023, 2, 7), 10)}

	points := WeeklyRevenue(reports, txs, 2023, 1)
	if len(points) != 4 {
		t.Fatalf("february 2023 has 4 slots, got %d", len(points))
	}
	if points[0].Totals.Revenue != rm(60) || points[3].Totals.Sales != rm(40) {
		t.Fatalf("unexpected points %+v", points)
	}
}

func TestDailySeries(t *testing.T) {
	reports := []core.WeeklyReport{
		report(2024, 2, 1, 100, 0, time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)),
	}
	txs := []core.Transaction{
		tx(core.Expense, core.NewDate(2024, 3, 5), 30),
		tx(core.Refund, core.NewDate(2024, 3, 20), 5),
	}

	past := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	series := DailySeries(reports, txs, 2024, 2, past)
	if len(series) != 31 {
		t.Fatalf("expected 31 days, got %d", len(series))
	}
	if series[4].Sales != rm(100) || series[4].Revenue != rm(70) {
		t.Fatalf("day 5: %+v", series[4])
	}
	if series[19].Revenue != rm(-5) {
		t.Fatalf("day 20: %+v", series[19])
	}

	// Current month stops at today.
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	if got := len(DailySeries(reports, txs, 2024, 2, now)); got != 10 {
		t.Fatalf("expected 10 days up to today, got %d", got)
	}
}

func TestMachineUsage(t *testing.T) {
	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	in := report(2024, 2, 2, 100, 0, created)
	in.Washer1, in.Washer2, in.Dryer1, in.Dryer2 = rm(30), rm(10), rm(10), rm(0)
	out := report(2024, 3, 1, 100, 0, created)
	out.Washer1 = rm(1000)

	// 10..12 March overlaps slot 2 (8..14) only.
	r := core.DateRange{From: core.NewDate(2024, 3, 10), To: core.NewDate(2024, 3, 12)}
	u := MachineUsage([]core.WeeklyReport{in, out}, r, rm(0))
	if u.TotalLoad != rm(50) || u.Sales != rm(100) {
		t.Fatalf("unexpected usage %+v", u)
	}
	if u.Machines[0].Sales != rm(60) || u.Machines[1].Sales != rm(20) || !u.Machines[3].Sales.IsZero() {
		t.Fatalf("unexpected shares %+v", u.Machines)
	}

	// Thirds of RM 100 round to 33.33 each; the remainder lands on the last
	// loaded machine.
	thirds := report(2024, 2, 2, 100, 0, created)
	thirds.Washer1, thirds.Washer2, thirds.Dryer1 = rm(1), rm(1), rm(1)
	u = MachineUsage([]core.WeeklyReport{thirds}, r, rm(0))
	var sum core.Money
	for _, m := range u.Machines {
		sum = sum.Add(m.Sales)
	}
	if sum != u.Sales {
		t.Fatalf("machine shares sum to %s, want %s", sum, u.Sales)
	}
	if u.Machines[0].Sales.Cents != 3333 || u.Machines[2].Sales.Cents != 3334 || !u.Machines[3].Sales.IsZero() {
		t.Fatalf("unexpected rounded shares %+v", u.Machines)
	}

	empty := MachineUsage(nil, r, rm(10))
	if !empty.TotalLoad.IsZero() || len(empty.Machines) != 4 {
		t.Fatalf("unexpected empty usage %+v", empty)
	}
}

func TestYears(t *testing.T) {
	created := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	reports := []core.WeeklyReport{report(2022, 0, 1, 1, 0, created)}
	txs := []core.Transaction{tx(core.Expense, core.NewDate(2023, 5, 5), 1)}
	got := Years(reports, txs, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if !slices.Equal(got, []int{2025, 2023, 2022}) {
		t.Fatalf("got %v", got)
	}
}
