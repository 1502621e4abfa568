package metrics

import (
	"laundrytrack/internal/core"
)

// Delta is a percentage change. Invert marks figures where a decrease is
// the good outcome; it never changes Value.
type Delta struct {
	Value  float64 `json:"value"`
	Invert bool    `json:"invert"`
}

// Deltas compares a month against the one before it.
type Deltas struct {
	Sales    Delta `json:"sales"`
	Revenue  Delta `json:"revenue"`
	Expenses Delta `json:"expenses"`
	Refunds  Delta `json:"refunds"`
}

// PctChange returns (current-previous)/previous*100. A zero previous yields
// 0 when current is also zero and 100 otherwise.
func PctChange(current, previous core.Money) float64 {
	if previous.Cents == 0 {
		if current.Cents == 0 {
			return 0
		}
		return 100
	}
	return float64(current.Cents-previous.Cents) / float64(previous.Cents) * 100
}

// PrevPeriod returns the month before a 0-based (year, month).
func PrevPeriod(year, month int) (int, int) {
	if month == 0 {
		return year - 1, 11
	}
	return year, month - 1
}

// Favorable reports whether the change should be shown as good news.
func (d Delta) Favorable() bool {
	if d.Invert {
		return d.Value <= 0
	}
	return d.Value >= 0
}

// Arrow is the display direction, which follows the raw value.
func (d Delta) Arrow() string {
	if d.Value >= 0 {
		return "↑"
	}
	return "↓"
}

// MonthDeltas computes the four headline deltas. Expenses and refunds are
// inverted.
func MonthDeltas(current, previous Totals) Deltas {
	return Deltas{
		Sales:    Delta{Value: PctChange(current.Sales, previous.Sales)},
		Revenue:  Delta{Value: PctChange(current.Revenue, previous.Revenue)},
		Expenses: Delta{Value: PctChange(current.Expenses, previous.Expenses), Invert: true},
		Refunds:  Delta{Value: PctChange(current.Refunds, previous.Refunds), Invert: true},
	}
}
