package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"laundrytrack/internal/calendar"
	"laundrytrack/internal/core"
	applog "laundrytrack/internal/log"
	"laundrytrack/internal/metrics"
)

// AnnualView is the yearly dashboard.
type AnnualView struct {
	metrics.Annual
	Quarterly [4]core.Money `json:"quarterly"`
	Years     []int         `json:"years"`
}

// MonthView is the monthly dashboard: stats against the previous month
// plus the weekly and daily breakdowns.
type MonthView struct {
	Year      int                 `json:"year"`
	Month     int                 `json:"month"`
	MonthName string              `json:"monthName"`
	Stats     metrics.Totals      `json:"stats"`
	Previous  metrics.Totals      `json:"previous"`
	Deltas    metrics.Deltas      `json:"deltas"`
	Gap       metrics.Gap         `json:"offlineGap"`
	Weekly    []metrics.WeekPoint `json:"weekly"`
	Daily     []metrics.DayPoint  `json:"daily"`
}

// RangeView is the ad hoc range dashboard.
type RangeView struct {
	Preset string         `json:"preset,omitempty"`
	Range  core.DateRange `json:"range"`
	Totals metrics.Totals `json:"totals"`
	Usage  metrics.Usage  `json:"usage"`
}

func validMonth(p MonthParams) error {
	if p.Month < 0 || p.Month > 11 {
		return fmt.Errorf("%w: %d", core.ErrInvalidMonth, p.Month)
	}
	if p.Year < 1 || p.Year > 9999 {
		return fmt.Errorf("%w: %d", core.ErrInvalidYear, p.Year)
	}
	return nil
}

func (s *Server) handleWeeks(w http.ResponseWriter, r *http.Request) {
	p, err := ParseMonthParams(r.URL.Query(), s.now())
	if err == nil {
		err = validMonth(p)
	}
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(calendar.MonthSlots(p.Year, p.Month)).Write(w)
}

func (s *Server) handleAnnual(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(r.URL.Query(), "year", s.now().Year())
	if err == nil && (year < 1 || year > 9999) {
		err = fmt.Errorf("%w: %d", core.ErrInvalidYear, year)
	}
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}

	view, err := s.annual.Get(r.Context(), s.store.Version(), fmt.Sprint(year), func(ctx context.Context) (AnnualView, error) {
		snap, err := s.snapshot(ctx)
		if err != nil {
			return AnnualView{}, err
		}
		a := metrics.MonthlyTotals(snap.Reports, snap.Transactions, year)
		return AnnualView{
			Annual:    a,
			Quarterly: metrics.QuarterlyTotals(a),
			Years:     metrics.Years(snap.Reports, snap.Transactions, s.now()),
		}, nil
	})
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(view).Write(w)
}

func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	p, err := ParseMonthParams(r.URL.Query(), s.now())
	if err == nil {
		err = validMonth(p)
	}
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}

	// The daily series stops at today for the current month, so the day is
	// part of the key.
	key := fmt.Sprintf("%d-%d@%s", p.Year, p.Month, core.DateOf(s.now()))
	view, err := s.month.Get(r.Context(), s.store.Version(), key, func(ctx context.Context) (MonthView, error) {
		snap, err := s.snapshot(ctx)
		if err != nil {
			return MonthView{}, err
		}
		py, pm := metrics.PrevPeriod(p.Year, p.Month)
		cur := metrics.MonthlyStats(snap.Reports, snap.Transactions, p.Year, p.Month)
		prev := metrics.MonthlyStats(snap.Reports, snap.Transactions, py, pm)
		return MonthView{
			Year:      p.Year,
			Month:     p.Month,
			MonthName: calendar.MonthName(p.Month),
			Stats:     cur,
			Previous:  prev,
			Deltas:    metrics.MonthDeltas(cur, prev),
			Gap:       metrics.OfflineGap(snap.Reports, p.Year, p.Month),
			Weekly:    metrics.WeeklyRevenue(snap.Reports, snap.Transactions, p.Year, p.Month),
			Daily:     metrics.DailySeries(snap.Reports, snap.Transactions, p.Year, p.Month, s.now()),
		}, nil
	})
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	applog.FromContext(r.Context()).DebugContext(r.Context(), "Month dashboard served",
		applog.FieldYear, p.Year, applog.FieldMonth, p.Month)
	NewJSONResponse().Body(view).Write(w)
}

// parseRange reads either ?preset= or ?from=&to=. Presets are resolved
// against now.
func (s *Server) parseRange(r *http.Request) (string, core.DateRange, error) {
	q := r.URL.Query()
	if preset := strings.TrimSpace(q.Get("preset")); preset != "" {
		rng, err := calendar.RangePreset(preset, s.now())
		if err != nil {
			return "", core.DateRange{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		return preset, rng, nil
	}
	if q.Get("from") == "" && q.Get("to") == "" {
		rng, _ := calendar.RangePreset(calendar.PresetThisMonth, s.now())
		return calendar.PresetThisMonth, rng, nil
	}
	from, err := core.ParseDate(q.Get("from"))
	if err != nil {
		return "", core.DateRange{}, err
	}
	to, err := core.ParseDate(q.Get("to"))
	if err != nil {
		return "", core.DateRange{}, err
	}
	rng := core.DateRange{From: from, To: to}
	return "", rng, rng.Validate()
}

func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	preset, rng, err := s.parseRange(r)
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}

	key := rng.From.String() + ".." + rng.To.String()
	view, err := s.ranges.Get(r.Context(), s.store.Version(), key, func(ctx context.Context) (RangeView, error) {
		snap, err := s.snapshot(ctx)
		if err != nil {
			return RangeView{}, err
		}
		totals := metrics.RangeTotals(snap.Reports, snap.Transactions, rng)
		return RangeView{
			Range:  rng,
			Totals: totals,
			Usage:  metrics.MachineUsage(snap.Reports, rng, totals.Sales),
		}, nil
	})
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	view.Preset = preset
	NewJSONResponse().Body(view).Write(w)
}
