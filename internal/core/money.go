// Package core provides money parsing and handling utilities.
//
// Amounts are carried as decimals so repeated summation never drifts the
// way float accumulation does.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a non-currency-aware decimal amount with two fractional digits.
type Money struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{}

// NewMoney rounds d to cents.
func NewMoney(d decimal.Decimal) Money {
	return Money{d: d.Round(2)}
}

// MoneyFromCents builds an amount from an integer number of cents.
func MoneyFromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -2)}
}

// MustMoney parses s and panics on failure. Intended for tests and constants.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// ParseMoney converts a decimal string into Money.
//
// It accepts a dot (12.34) or a comma (12,34) as the decimal separator and
// rounds half away from zero to cents. A comma is only a decimal separator
// when it is the sole separator with at most two digits after it; grouped
// forms such as "1,000" are rejected rather than read as 1.00. Negative and
// non-numeric values are rejected; zero is accepted (budgets use it to mean
// "not set").
//
// Examples:
//
//	ParseMoney("12.345") -> 12.35
//	ParseMoney("12,34")  -> 12.34
//	ParseMoney("1,000")  -> ErrInvalidAmount
//	ParseMoney("-1")     -> ErrInvalidAmount
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	if strings.Contains(s, ",") {
		i := strings.IndexByte(s, ',')
		if strings.Count(s, ",") > 1 || strings.Contains(s, ".") || len(s)-i-1 > 2 {
			return Money{}, fmt.Errorf("%w: ambiguous separator in %q", ErrInvalidAmount, s)
		}
		s = s[:i] + "." + s[i+1:]
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return Money{}, fmt.Errorf("%w: negative %q", ErrInvalidAmount, s)
	}
	return NewMoney(d), nil
}

// ParseAmount is ParseMoney restricted to strictly positive values.
func ParseAmount(s string) (Money, error) {
	m, err := ParseMoney(s)
	if err != nil {
		return Money{}, err
	}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// Validate requires a strictly positive amount.
func (m Money) Validate() error {
	if !m.d.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }

func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }

func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }

func (m Money) GreaterThan(o Money) bool { return m.d.GreaterThan(o.d) }

func (m Money) LessThan(o Money) bool { return m.d.LessThan(o.d) }

func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

func (m Money) IsZero() bool { return m.d.IsZero() }

func (m Money) IsPositive() bool { return m.d.IsPositive() }

func (m Money) IsNegative() bool { return m.d.IsNegative() }

// Decimal exposes the underlying value for arithmetic the Money API does not cover.
func (m Money) Decimal() decimal.Decimal { return m.d }

// Cents returns the amount as an integer number of cents.
func (m Money) Cents() int64 {
	return m.d.Shift(2).Round(0).IntPart()
}

// String formats the amount with exactly two decimals, e.g. "1200.50".
func (m Money) String() string {
	return m.d.StringFixed(2)
}
