package aggregate

import (
	"sort"
	"strings"

	"pocketwise/internal/core"
)

// KeyFunc maps a category label to its grouping key.
type KeyFunc func(category string) string

// ExactKey groups by exact string equality: "Food" and "food" stay apart.
func ExactKey(category string) string { return category }

// FoldedKey groups case-insensitively, ignoring surrounding whitespace.
func FoldedKey(category string) string { return strings.ToLower(strings.TrimSpace(category)) }

type CategoryTotal struct {
	Name   string
	Amount core.Money
}

type categoryConfig struct {
	key KeyFunc
}

type CategoryOption func(*categoryConfig)

// WithKey swaps the grouping strategy.
func WithKey(k KeyFunc) CategoryOption {
	return func(c *categoryConfig) {
		if k != nil {
			c.key = k
		}
	}
}

// ByCategory sums amounts per category. Callers filter the input first
// (typically ExpensesIn). The first label seen for a key names its group;
// groups come out in first-seen order.
func ByCategory(txs []core.Transaction, opts ...CategoryOption) []CategoryTotal {
	cfg := categoryConfig{key: ExactKey}
	for _, opt := range opts {
		opt(&cfg)
	}

	var totals []CategoryTotal
	index := make(map[string]int)
	for _, tx := range txs {
		k := cfg.key(tx.Category)
		i, ok := index[k]
		if !ok {
			i = len(totals)
			index[k] = i
			totals = append(totals, CategoryTotal{Name: tx.Category})
		}
		totals[i].Amount = totals[i].Amount.Add(tx.Amount)
	}
	return totals
}

// ExpensesIn keeps the expense transactions dated within ym.
func ExpensesIn(txs []core.Transaction, ym core.YearMonth) []core.Transaction {
	var out []core.Transaction
	for _, tx := range txs {
		if tx.Type == core.Expense && ym.Contains(tx.Date) {
			out = append(out, tx)
		}
	}
	return out
}

// SortByAmount orders totals largest first, breaking ties by name.
func SortByAmount(totals []CategoryTotal) {
	sort.SliceStable(totals, func(i, j int) bool {
		if c := totals[i].Amount.Cmp(totals[j].Amount); c != 0 {
			return c > 0
		}
		return totals[i].Name < totals[j].Name
	})
}
