// Package budget compares monthly spend against a stored limit.
package budget

import (
	"time"

	"pocketwise/internal/aggregate"
	"pocketwise/internal/core"
)

// Alert reports a month whose spend exceeds its limit.
type Alert struct {
	UserID string
	Month  core.YearMonth
	Spend  core.Money
	Limit  core.Money
	OverBy core.Money
}

// Evaluate returns an alert when b is set and spend strictly exceeds it.
// A nil or zero budget never alerts.
func Evaluate(spend core.Money, b *core.Budget) *Alert {
	if !b.IsSet() || !spend.GreaterThan(b.Amount) {
		return nil
	}
	return &Alert{
		UserID: b.UserID,
		Month:  b.Month,
		Spend:  spend,
		Limit:  b.Amount,
		OverBy: spend.Sub(b.Amount),
	}
}

// Remaining is limit minus spend, negative once over budget. Zero when no
// budget is set.
func Remaining(spend core.Money, b *core.Budget) core.Money {
	if !b.IsSet() {
		return core.Zero
	}
	return b.Amount.Sub(spend)
}

// MonthSpend sums the expense side of the single bucket for the month that
// contains now. Malformed records are dropped and returned for logging.
func MonthSpend(txs []core.Transaction, now time.Time) (core.Money, []aggregate.Rejected) {
	buckets, rejected := aggregate.ByPeriod(txs, aggregate.Month, aggregate.LastMonths(core.DateOf(now), 1))
	if len(buckets) == 0 {
		return core.Zero, rejected
	}
	return buckets[0].Expense, rejected
}
