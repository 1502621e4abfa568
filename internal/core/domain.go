package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	Expense TxKind = "expense"
	Refund  TxKind = "refund"
)

// DateLayout is the calendar-day wire format used by every boundary.
const DateLayout = "2006-01-02"

type (
	TxKind string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// WeeklyReport is one operator entry for a (year, month, week) slot.
	// Month is 0-based. TotalSales is derived and never taken from input.
	WeeklyReport struct {
		ID             string    `json:"id"`
		Year           int       `json:"year"`
		Month          int       `json:"month"`
		Week           int       `json:"week"`
		Washer1        Money     `json:"washer1"`
		Washer2        Money     `json:"washer2"`
		Dryer1         Money     `json:"dryer1"`
		Dryer2         Money     `json:"dryer2"`
		Online         Money     `json:"online"`
		Offline        Money     `json:"offline"`
		TotalSales     Money     `json:"totalSales"`
		MoneyCollected Money     `json:"moneyCollected"`
		Notes          string    `json:"notes,omitempty"`
		CreatedAt      time.Time `json:"createdAt"`
	}

	// Transaction is an outflow. Amount is never positive; its magnitude is
	// the real-world amount.
	Transaction struct {
		ID          string    `json:"id"`
		Date        Date      `json:"date"`
		Kind        TxKind    `json:"type"`
		Amount      Money     `json:"amount"`
		Description string    `json:"description,omitempty"`
		CreatedAt   time.Time `json:"createdAt"`
	}

	// DateRange is an inclusive pair of calendar days.
	DateRange struct {
		From Date `json:"from"`
		To   Date `json:"to"`
	}
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidYear        = errors.New("invalid year")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidWeek        = errors.New("invalid week")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrNegativeAmount     = errors.New("amount cannot be negative")
	ErrInvalidKind        = errors.New("invalid transaction type")
	ErrInvalidRange       = errors.New("range start is after range end")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
)

// IsValidation reports whether err is one of the input validation errors.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidDate, ErrInvalidYear, ErrInvalidMonth, ErrInvalidWeek,
		ErrInvalidAmount, ErrNegativeAmount, ErrInvalidKind, ErrInvalidRange,
		ErrDescriptionTooLong,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// NewDate creates a new Date from year, calendar month (1-12) and day.
// Out-of-range values normalize the way time.Date does.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

// MonthIndex returns the 0-based month used throughout the domain.
func (d Date) MonthIndex() int {
	return int(d.Time.Month()) - 1
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		*d = Date{}
		return nil
	}
	// Accept full timestamps too; only the calendar day is kept.
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		*d = DateOf(t)
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON writes the calendar day. time.Time's own method would be
// promoted otherwise and emit a full timestamp.
func (d Date) MarshalJSON() ([]byte, error) {
	return strconv.AppendQuote(nil, d.String()), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, b)
	}
	return d.UnmarshalText([]byte(s))
}

func (k TxKind) Valid() bool {
	return k == Expense || k == Refund
}

// ParseKind maps free text to a kind. Anything other than "refund" is an
// expense.
func ParseKind(s string) TxKind {
	if strings.EqualFold(strings.TrimSpace(s), string(Refund)) {
		return Refund
	}
	return Expense
}

// Normalize recomputes the derived total.
func (r *WeeklyReport) Normalize() {
	r.TotalSales = r.Online.Add(r.Offline)
}

func (r WeeklyReport) Validate() error {
	if r.Year < 1 || r.Year > 9999 {
		return fmt.Errorf("%w: %d", ErrInvalidYear, r.Year)
	}
	if r.Month < 0 || r.Month > 11 {
		return fmt.Errorf("%w: %d", ErrInvalidMonth, r.Month)
	}
	if r.Week < 1 || r.Week > 5 {
		return fmt.Errorf("%w: %d", ErrInvalidWeek, r.Week)
	}
	fields := []struct {
		name string
		v    Money
	}{
		{"washer1", r.Washer1},
		{"washer2", r.Washer2},
		{"dryer1", r.Dryer1},
		{"dryer2", r.Dryer2},
		{"online", r.Online},
		{"offline", r.Offline},
	}
	for _, f := range fields {
		if f.v.Cents < 0 {
			return fmt.Errorf("%w: %s", ErrNegativeAmount, f.name)
		}
	}
	return nil
}

// Normalize forces the amount to be non-positive and defaults the kind.
func (t *Transaction) Normalize() {
	t.Amount = t.Amount.Abs().Neg()
	if !t.Kind.Valid() {
		t.Kind = ParseKind(string(t.Kind))
	}
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if !t.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, t.Kind)
	}
	if len(t.Description) > 200 {
		return ErrDescriptionTooLong
	}
	return nil
}

func (r DateRange) Validate() error {
	if err := r.From.Validate(); err != nil {
		return err
	}
	if err := r.To.Validate(); err != nil {
		return err
	}
	if r.From.After(r.To.Time) {
		return ErrInvalidRange
	}
	return nil
}
