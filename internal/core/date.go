package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

type (
	// Date is a calendar date normalized to midnight UTC.
	Date struct {
		time.Time
	}

	YearMonth struct {
		Year  int
		Month time.Month
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t as observed in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }

func (d Date) After(o Date) bool { return d.Time.After(o.Time) }

func (d Date) Equal(o Date) bool { return d.Time.Equal(o.Time) }

// AddDays returns the date n calendar days later (earlier for negative n).
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time.AddDate(0, 0, n))
}

// DaysUntil returns the number of calendar days from d to o.
func (d Date) DaysUntil(o Date) int {
	return int(o.Time.Sub(d.Time).Hours() / 24)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MonthOf returns the year-month containing d.
func MonthOf(d Date) YearMonth {
	return YearMonth{Year: d.Year(), Month: d.Month()}
}

// ParseYearMonth parses a month string in YYYY-MM format.
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse(MonthLayout, strings.TrimSpace(s))
	if err != nil {
		return YearMonth{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

func (ym YearMonth) Validate() error {
	if ym.Year < 1 || ym.Month < time.January || ym.Month > time.December {
		return fmt.Errorf("%w: %04d-%02d", ErrInvalidMonth, ym.Year, int(ym.Month))
	}
	return nil
}

// Start returns the first day of the month.
func (ym YearMonth) Start() Date {
	return NewDate(ym.Year, ym.Month, 1)
}

// End returns the last day of the month.
func (ym YearMonth) End() Date {
	return NewDate(ym.Year, ym.Month+1, 0)
}

func (ym YearMonth) Contains(d Date) bool {
	return d.Year() == ym.Year && d.Month() == ym.Month
}

func (ym YearMonth) AddMonths(n int) YearMonth {
	return MonthOf(DateOf(time.Date(ym.Year, ym.Month+time.Month(n), 1, 0, 0, 0, 0, time.UTC)))
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}
