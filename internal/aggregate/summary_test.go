package aggregate

import (
	"testing"
	"time"

	"pocketwise/internal/core"
)

func TestSummarize(t *testing.T) {
	end := core.NewDate(2025, time.June, 15)
	txs := []core.Transaction{
		tx("1", core.NewDate(2025, time.June, 1), core.Income, "3000"),
		tx("2", core.NewDate(2025, time.June, 2), core.Expense, "1000"),
		tx("3", core.NewDate(2025, time.May, 2), core.Expense, "500"),
	}
	buckets, _ := ByPeriod(txs, Month, LastMonths(end, 6))
	s := Summarize(buckets)

	if s.TotalIncome.String() != "3000.00" || s.TotalExpense.String() != "1500.00" {
		t.Fatalf("totals = %+v", s)
	}
	if s.AverageExpense.String() != "250.00" {
		t.Fatalf("average = %s", s.AverageExpense)
	}
	if s.SavingsRate.String() != "50" {
		t.Fatalf("savings rate = %s", s.SavingsRate)
	}
}

func TestSummarize_NoIncome(t *testing.T) {
	s := Summarize([]Bucket{{Expense: core.MustMoney("10")}})
	if !s.SavingsRate.IsZero() {
		t.Fatalf("savings rate without income = %s", s.SavingsRate)
	}
	if s := Summarize(nil); !s.AverageExpense.IsZero() {
		t.Fatalf("empty average = %s", s.AverageExpense)
	}
}

func TestWalletOf(t *testing.T) {
	w := WalletOf([]core.Transaction{
		tx("1", core.NewDate(2024, 1, 1), core.Income, "500"),
		tx("2", core.NewDate(2025, 1, 1), core.Income, "250.50"),
		tx("3", core.NewDate(2025, 2, 1), core.Expense, "800"),
	})
	if w.Balance.String() != "750.50" || w.Spend.String() != "800.00" || w.Remaining.String() != "-49.50" {
		t.Fatalf("wallet = %+v", w)
	}
}
