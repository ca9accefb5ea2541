package aggregate

import (
	"github.com/shopspring/decimal"

	"pocketwise/internal/core"
)

// Summary holds the headline metrics shown above a trend chart.
type Summary struct {
	TotalIncome    core.Money
	TotalExpense   core.Money
	AverageExpense core.Money      // mean expense per bucket
	SavingsRate    decimal.Decimal // percent of income kept, 0 without income
}

func Summarize(buckets []Bucket) Summary {
	var s Summary
	for _, b := range buckets {
		s.TotalIncome = s.TotalIncome.Add(b.Income)
		s.TotalExpense = s.TotalExpense.Add(b.Expense)
	}
	if n := len(buckets); n > 0 {
		s.AverageExpense = core.NewMoney(s.TotalExpense.Decimal().Div(decimal.NewFromInt(int64(n))))
	}
	if s.TotalIncome.IsPositive() {
		kept := s.TotalIncome.Sub(s.TotalExpense).Decimal()
		s.SavingsRate = kept.Div(s.TotalIncome.Decimal()).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return s
}

// Wallet is the lifetime balance card: everything earned, everything spent.
type Wallet struct {
	Balance   core.Money
	Spend     core.Money
	Remaining core.Money
}

func WalletOf(txs []core.Transaction) Wallet {
	var w Wallet
	for _, tx := range txs {
		switch tx.Type {
		case core.Income:
			w.Balance = w.Balance.Add(tx.Amount)
		case core.Expense:
			w.Spend = w.Spend.Add(tx.Amount)
		}
	}
	w.Remaining = w.Balance.Sub(w.Spend)
	return w
}
