package metrics

import "testing"

func TestPctChange(t *testing.T) {
	cases := []struct {
		cur, prev float64
		want      float64
	}{
		{0, 0, 0},
		{50, 0, 100},
		{-50, 0, 100},
		{150, 100, 50},
		{50, 100, -50},
		{100, 100, 0},
		{-30, -60, -50},
	}
	for _, tc := range cases {
		got := PctChange(rm(tc.cur), rm(tc.prev))
		if got != tc.want {
			t.Fatalf("PctChange(%v, %v) = %v, want %v", tc.cur, tc.prev, got, tc.want)
		}
	}
}

func TestPrevPeriod(t *testing.T) {
	cases := []struct{ y, m, wy, wm int }{
		{2024, 0, 2023, 11},
		{2024, 5, 2024, 4},
		{2024, 11, 2024, 10},
	}
	for _, tc := range cases {
		y, m := PrevPeriod(tc.y, tc.m)
		if y != tc.wy || m != tc.wm {
			t.Fatalf("PrevPeriod(%d, %d) = (%d, %d), want (%d, %d)", tc.y, tc.m, y, m, tc.wy, tc.wm)
		}
	}
}

func TestDeltaFavorable(t *testing.T) {
	cases := []struct {
		d     Delta
		good  bool
		arrow string
	}{
		{Delta{Value: 10}, true, "↑"},
		{Delta{Value: -10}, false, "↓"},
		{Delta{Value: 10, Invert: true}, false, "↑"},
		{Delta{Value: -10, Invert: true}, true, "↓"},
		{Delta{Value: 0, Invert: true}, true, "↑"},
	}
	for i, tc := range cases {
		if tc.d.Favorable() != tc.good || tc.d.Arrow() != tc.arrow {
			t.Fatalf("case %d: favorable=%v arrow=%s", i, tc.d.Favorable(), tc.d.Arrow())
		}
	}
}

func TestMonthDeltas(t *testing.T) {
	cur := Totals{Sales: rm(150), Expenses: rm(20), Revenue: rm(130)}
	prev := Totals{Sales: rm(100), Expenses: rm(40), Revenue: rm(60)}
	d := MonthDeltas(cur, prev)
	if d.Sales.Value != 50 || d.Expenses.Value != -50 || d.Refunds.Value != 0 {
		t.Fatalf("unexpected deltas %+v", d)
	}
	if !d.Expenses.Invert || !d.Refunds.Invert || d.Sales.Invert || d.Revenue.Invert {
		t.Fatalf("invert flags wrong: %+v", d)
	}
	if !d.Expenses.Favorable() {
		t.Fatalf("falling expenses should be favorable")
	}
}
