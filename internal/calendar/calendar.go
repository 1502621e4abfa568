// Package calendar maps the operator's (year, month, week-slot) vocabulary
// onto concrete calendar days.
//
// Months are 0-based (0 = January). A month is split into five slots:
// days 1-7, 8-14, 15-21, 22-28 and 29 to the end of the month. The fifth
// slot is truncated and does not exist in a 28-day February.
package calendar

import (
	"time"

	"laundrytrack/internal/core"
)

// WeeksPerMonth is the number of week slots in every month.
const WeeksPerMonth = 5

var monthNames = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// Slot is the day range covered by a week slot. Range is meaningless when
// Valid is false.
type Slot struct {
	Year  int            `json:"year"`
	Month int            `json:"month"`
	Week  int            `json:"week"`
	Valid bool           `json:"valid"`
	Range core.DateRange `json:"range"`
}

// DaysInMonth returns the last day number of the 0-based month.
func DaysInMonth(year, month int) int {
	return time.Date(year, time.Month(month+2), 0, 0, 0, 0, 0, time.UTC).Day()
}

// WeekRange resolves a week slot. Weeks outside 1..5 and slots starting
// past the end of the month are invalid.
func WeekRange(year, month, week int) Slot {
	s := Slot{Year: year, Month: month, Week: week}
	if week < 1 || week > WeeksPerMonth || month < 0 || month > 11 {
		return s
	}
	last := DaysInMonth(year, month)
	start := (week-1)*7 + 1
	if start > last {
		return s
	}
	end := min(start+6, last)
	s.Valid = true
	s.Range = core.DateRange{
		From: core.NewDate(year, month+1, start),
		To:   core.NewDate(year, month+1, end),
	}
	return s
}

// MonthSlots returns all five slots of a month, valid or not.
func MonthSlots(year, month int) []Slot {
	slots := make([]Slot, 0, WeeksPerMonth)
	for w := 1; w <= WeeksPerMonth; w++ {
		slots = append(slots, WeekRange(year, month, w))
	}
	return slots
}

// SlotDate is the date stamped on a transaction entered for a slot: the
// slot's last day, or day 1 of the month when the slot does not exist.
func SlotDate(year, month, week int) core.Date {
	if s := WeekRange(year, month, week); s.Valid {
		return s.Range.To
	}
	return core.NewDate(year, month+1, 1)
}

// WeekOf returns the slot containing a day of the month.
func WeekOf(day int) int {
	if day < 1 {
		return 1
	}
	return min(WeeksPerMonth, (day-1)/7+1)
}

// BucketByMonth returns the calendar year and 0-based month of t in t's own
// location.
func BucketByMonth(t time.Time) (year, month int) {
	return t.Year(), int(t.Month()) - 1
}

// BucketByQuarter maps a 0-based month to its 0-based quarter.
func BucketByQuarter(month int) int {
	return month / 3
}

// DayInRange reports whether t falls on a calendar day within r, bounds
// included. Time of day is ignored.
func DayInRange(r core.DateRange, t time.Time) bool {
	d := core.DateOf(t)
	return !d.Before(r.From.Time) && !d.After(r.To.Time)
}

// Overlaps reports whether two ranges share at least one day.
func Overlaps(a, b core.DateRange) bool {
	return !a.From.After(b.To.Time) && !b.From.After(a.To.Time)
}

// MonthRange covers a whole 0-based month.
func MonthRange(year, month int) core.DateRange {
	return core.DateRange{
		From: core.NewDate(year, month+1, 1),
		To:   core.NewDate(year, month+1, DaysInMonth(year, month)),
	}
}

// MonthName returns the English name of a 0-based month, or "" when out of
// range.
func MonthName(month int) string {
	if month < 0 || month > 11 {
		return ""
	}
	return monthNames[month]
}
