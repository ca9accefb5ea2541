// Package aggregate reduces transaction sets into reporting views: time
// buckets for trend charts and per-category totals.
package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"pocketwise/internal/core"
)

const (
	Day   Granularity = "day"
	Month Granularity = "month"
	Year  Granularity = "year"
)

// Granularity selects how dates are truncated into periods.
type Granularity string

var ErrInvalidGranularity = fmt.Errorf("%w: invalid granularity", core.ErrInvalidInput)

func (g Granularity) Valid() bool {
	switch g {
	case Day, Month, Year:
		return true
	default:
		return false
	}
}

func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(strings.ToLower(strings.TrimSpace(s)))
	if !g.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidGranularity, s)
	}
	return g, nil
}

// Period is the sortable key of a bucket: a granularity plus the first day
// of the period.
type Period struct {
	Granularity Granularity
	Start       core.Date
}

// PeriodOf truncates d to the period of granularity g that contains it.
func PeriodOf(d core.Date, g Granularity) Period {
	switch g {
	case Year:
		return Period{Granularity: g, Start: core.NewDate(d.Year(), 1, 1)}
	case Month:
		return Period{Granularity: g, Start: core.NewDate(d.Year(), d.Month(), 1)}
	default:
		return Period{Granularity: g, Start: core.DateOf(d.Time)}
	}
}

// Prev returns the period immediately before p.
func (p Period) Prev() Period {
	switch p.Granularity {
	case Year:
		return Period{Granularity: p.Granularity, Start: core.DateOf(p.Start.AddDate(-1, 0, 0))}
	case Month:
		return Period{Granularity: p.Granularity, Start: core.DateOf(p.Start.AddDate(0, -1, 0))}
	default:
		return Period{Granularity: p.Granularity, Start: p.Start.AddDays(-1)}
	}
}

// Label renders the period for display. It is not part of the bucket's identity.
func (p Period) Label() string {
	switch p.Granularity {
	case Year:
		return p.Start.Format("2006")
	case Month:
		return p.Start.Format("Jan 2006")
	default:
		return p.Start.Format("02 Jan 2006")
	}
}

// Window is an explicit reporting range: Periods consecutive periods ending
// with the one that contains End.
type Window struct {
	End     core.Date
	Periods int
}

// LastMonths is the window used by trend charts, e.g. LastMonths(now, 6).
func LastMonths(end core.Date, n int) *Window {
	return &Window{End: end, Periods: n}
}

type Bucket struct {
	Period  Period
	Income  core.Money
	Expense core.Money
	Net     core.Money
}

func (b Bucket) Label() string { return b.Period.Label() }

func (b *Bucket) add(tx core.Transaction) {
	switch tx.Type {
	case core.Income:
		b.Income = b.Income.Add(tx.Amount)
	case core.Expense:
		b.Expense = b.Expense.Add(tx.Amount)
	}
	b.Net = b.Income.Sub(b.Expense)
}

// Rejected names a transaction that was excluded from aggregation.
type Rejected struct {
	ID  string
	Err error
}

// ByPeriod groups transactions into buckets of granularity g, most recent first.
//
// With a window, every period of the window is present even when empty, and
// transactions outside it are ignored. Without one, only periods holding at
// least one transaction appear. Transactions with an unusable date or type are
// left out and reported in the rejected slice; one bad record never blanks
// the whole series.
func ByPeriod(txs []core.Transaction, g Granularity, w *Window) ([]Bucket, []Rejected) {
	var rejected []Rejected
	if !g.Valid() {
		for _, tx := range txs {
			rejected = append(rejected, Rejected{ID: tx.ID, Err: fmt.Errorf("%w: %q", ErrInvalidGranularity, g)})
		}
		return nil, rejected
	}

	var (
		buckets []Bucket
		index   = make(map[core.Date]int)
	)
	if w != nil {
		p := PeriodOf(w.End, g)
		for i := 0; i < w.Periods; i++ {
			index[p.Start] = len(buckets)
			buckets = append(buckets, Bucket{Period: p})
			p = p.Prev()
		}
	}

	for _, tx := range txs {
		if err := checkAggregatable(tx); err != nil {
			rejected = append(rejected, Rejected{ID: tx.ID, Err: err})
			continue
		}
		p := PeriodOf(tx.Date, g)
		i, ok := index[p.Start]
		if !ok {
			if w != nil {
				continue
			}
			i = len(buckets)
			index[p.Start] = i
			buckets = append(buckets, Bucket{Period: p})
		}
		buckets[i].add(tx)
	}

	if w == nil {
		sort.Slice(buckets, func(i, j int) bool {
			return buckets[i].Period.Start.After(buckets[j].Period.Start)
		})
	}
	return buckets, rejected
}

func checkAggregatable(tx core.Transaction) error {
	if err := tx.Date.Validate(); err != nil {
		return err
	}
	if !tx.Type.Valid() {
		return fmt.Errorf("%w: %q", core.ErrInvalidType, tx.Type)
	}
	if tx.Amount.IsNegative() {
		return core.ErrInvalidAmount
	}
	return nil
}
