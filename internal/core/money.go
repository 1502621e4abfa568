// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer sen (1/100 RM). Parsing goes through
// shopspring/decimal so that rounding is exact and half-up.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencyLabel prefixes formatted amounts.
var CurrencyLabel = "RM"

// ParseAmount converts a decimal string to sen with half-up rounding.
//
// A leading currency label and thousands separators are ignored. Negative
// values are accepted; callers decide what the sign means.
//
//	ParseAmount("12.34")      -> 1234, nil
//	ParseAmount("RM 1,200.5") -> 120050, nil
//	ParseAmount("12.345")     -> 1235, nil
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimPrefix(s, CurrencyLabel))
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return MoneyFromDecimal(d), nil
}

// ParseAmountOrZero is the single coercion point for free-form numeric
// input: anything unparseable becomes zero.
func ParseAmountOrZero(s string) Money {
	m, err := ParseAmount(s)
	if err != nil {
		return Money{}
	}
	return m
}

// MoneyFromDecimal rounds d half away from zero to whole sen.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Round(2).Shift(2).IntPart()}
}

// Decimal returns the amount in ringgit as an exact decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Units returns the ringgit value as a float64 for display purposes.
// Use Cents for calculations.
func (m Money) Units() float64 {
	return m.Decimal().InexactFloat64()
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }
func (m Money) Neg() Money        { return Money{Cents: -m.Cents} }
func (m Money) IsZero() bool      { return m.Cents == 0 }

func (m Money) Abs() Money {
	if m.Cents < 0 {
		return m.Neg()
	}
	return m
}

// String formats as "RM 1,234.56", with a leading minus for negatives.
func (m Money) String() string {
	sign := ""
	cents := m.Cents
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := groupThousands(cents / 100)
	return fmt.Sprintf("%s%s %s.%02d", sign, CurrencyLabel, whole, cents%100)
}

func groupThousands(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// MarshalJSON encodes the amount as a plain JSON number in ringgit.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().StringFixed(2)), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string. Anything else,
// including null, decodes to zero.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	*m = ParseAmountOrZero(s)
	return nil
}
