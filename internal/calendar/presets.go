package calendar

import (
	"fmt"
	"time"

	"laundrytrack/internal/core"
)

// Preset names accepted by RangePreset.
const (
	PresetToday     = "today"
	PresetYesterday = "yesterday"
	PresetThisWeek  = "this_week"
	PresetLastWeek  = "last_week"
	PresetThisMonth = "this_month"
	PresetLastMonth = "last_month"
)

// Presets lists the supported preset names in display order.
var Presets = []string{
	PresetToday, PresetYesterday, PresetThisWeek, PresetLastWeek, PresetThisMonth, PresetLastMonth,
}

// RangePreset resolves a named range relative to now. Weeks start on Monday.
func RangePreset(name string, now time.Time) (core.DateRange, error) {
	today := core.DateOf(now)
	switch name {
	case PresetToday:
		return core.DateRange{From: today, To: today}, nil
	case PresetYesterday:
		y := addDays(today, -1)
		return core.DateRange{From: y, To: y}, nil
	case PresetThisWeek:
		start := mondayOf(today)
		return core.DateRange{From: start, To: addDays(start, 6)}, nil
	case PresetLastWeek:
		start := addDays(mondayOf(today), -7)
		return core.DateRange{From: start, To: addDays(start, 6)}, nil
	case PresetThisMonth:
		return MonthRange(today.Year(), today.MonthIndex()), nil
	case PresetLastMonth:
		y, m := today.Year(), today.MonthIndex()-1
		if m < 0 {
			y, m = y-1, 11
		}
		return MonthRange(y, m), nil
	default:
		return core.DateRange{}, fmt.Errorf("unknown range preset %q", name)
	}
}

func addDays(d core.Date, n int) core.Date {
	return core.Date{Time: d.AddDate(0, 0, n)}
}

func mondayOf(d core.Date) core.Date {
	// time.Sunday is 0; shift so Monday is 0.
	offset := (int(d.Weekday()) + 6) % 7
	return addDays(d, -offset)
}
