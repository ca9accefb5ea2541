package aggregate

import (
	"errors"
	"testing"
	"time"

	"pocketwise/internal/core"
)

func tx(id string, d core.Date, typ core.TransactionType, amount string) core.Transaction {
	return core.Transaction{
		ID:       id,
		UserID:   "u1",
		Date:     d,
		Category: "General",
		Amount:   core.MustMoney(amount),
		Type:     typ,
	}
}

func TestByPeriod_FixedWindowScenario(t *testing.T) {
	// Six months ending in October 2025, activity only in August.
	end := core.NewDate(2025, time.October, 14)
	txs := []core.Transaction{
		tx("a", core.NewDate(2025, time.August, 3), core.Income, "1000"),
		tx("b", core.NewDate(2025, time.August, 20), core.Expense, "400"),
	}

	buckets, rejected := ByPeriod(txs, Month, LastMonths(end, 6))
	if len(rejected) != 0 {
		t.Fatalf("unexpected rejects: %v", rejected)
	}
	if len(buckets) != 6 {
		t.Fatalf("got %d buckets, want 6", len(buckets))
	}

	wantStarts := []string{"2025-10-01", "2025-09-01", "2025-08-01", "2025-07-01", "2025-06-01", "2025-05-01"}
	for i, b := range buckets {
		if got := b.Period.Start.String(); got != wantStarts[i] {
			t.Errorf("bucket %d start = %s, want %s", i, got, wantStarts[i])
		}
		if i == 2 {
			if b.Income.String() != "1000.00" || b.Expense.String() != "400.00" || b.Net.String() != "600.00" {
				t.Errorf("M-2 bucket = %+v", b)
			}
			continue
		}
		if !b.Income.IsZero() || !b.Expense.IsZero() || !b.Net.IsZero() {
			t.Errorf("bucket %d should be empty, got %+v", i, b)
		}
	}
}

func TestByPeriod_WindowCompleteness(t *testing.T) {
	end := core.NewDate(2024, time.March, 1)
	tests := []struct {
		name string
		g    Granularity
		n    int
	}{
		{"days", Day, 10},
		{"months across year boundary", Month, 14},
		{"years", Year, 3},
		{"empty window", Month, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buckets, _ := ByPeriod(nil, tt.g, &Window{End: end, Periods: tt.n})
			if len(buckets) != tt.n {
				t.Fatalf("got %d buckets, want %d", len(buckets), tt.n)
			}
			for i := 1; i < len(buckets); i++ {
				if !buckets[i-1].Period.Start.After(buckets[i].Period.Start) {
					t.Fatalf("buckets not most-recent-first at %d", i)
				}
			}
		})
	}
}

func TestByPeriod_WindowIgnoresOutsideTransactions(t *testing.T) {
	end := core.NewDate(2025, time.June, 30)
	txs := []core.Transaction{
		tx("in", core.NewDate(2025, time.June, 1), core.Expense, "10"),
		tx("old", core.NewDate(2024, time.June, 1), core.Expense, "99"),
		tx("future", core.NewDate(2025, time.July, 1), core.Expense, "99"),
	}
	buckets, rejected := ByPeriod(txs, Month, LastMonths(end, 1))
	if len(rejected) != 0 {
		t.Fatalf("out-of-window rows are not malformed: %v", rejected)
	}
	if len(buckets) != 1 || buckets[0].Expense.String() != "10.00" {
		t.Fatalf("got %+v", buckets)
	}
}

func TestByPeriod_AdHocGrouping(t *testing.T) {
	txs := []core.Transaction{
		tx("1", core.NewDate(2023, time.May, 5), core.Expense, "5"),
		tx("2", core.NewDate(2025, time.January, 2), core.Income, "50"),
		tx("3", core.NewDate(2023, time.December, 31), core.Expense, "7.25"),
		tx("4", core.NewDate(2025, time.February, 2), core.Expense, "1"),
	}

	buckets, _ := ByPeriod(txs, Year, nil)
	if len(buckets) != 2 {
		t.Fatalf("got %d year buckets, want 2", len(buckets))
	}
	if buckets[0].Label() != "2025" || buckets[1].Label() != "2023" {
		t.Fatalf("labels = %s, %s", buckets[0].Label(), buckets[1].Label())
	}
	if buckets[1].Expense.String() != "12.25" || buckets[0].Net.String() != "49.00" {
		t.Fatalf("totals = %+v", buckets)
	}

	days, _ := ByPeriod(txs, Day, nil)
	if len(days) != 4 || days[0].Label() != "02 Feb 2025" {
		t.Fatalf("day grouping = %+v", days)
	}
}

func TestByPeriod_OrderIndependentOfInput(t *testing.T) {
	a := []core.Transaction{
		tx("1", core.NewDate(2025, time.March, 1), core.Expense, "1"),
		tx("2", core.NewDate(2025, time.January, 1), core.Expense, "2"),
		tx("3", core.NewDate(2025, time.February, 1), core.Income, "3"),
	}
	b := []core.Transaction{a[2], a[0], a[1]}

	ba, _ := ByPeriod(a, Month, nil)
	bb, _ := ByPeriod(b, Month, nil)
	if len(ba) != len(bb) {
		t.Fatalf("length mismatch")
	}
	for i := range ba {
		if !ba[i].Period.Start.Equal(bb[i].Period.Start) || !ba[i].Net.Equal(bb[i].Net) {
			t.Fatalf("bucket %d differs: %+v vs %+v", i, ba[i], bb[i])
		}
	}
}

func TestByPeriod_Conservation(t *testing.T) {
	var txs []core.Transaction
	income, expense := core.Zero, core.Zero
	start := core.NewDate(2024, time.January, 1)
	for i := 0; i < 400; i++ {
		typ := core.Expense
		amt := core.MustMoney("0.10")
		if i%3 == 0 {
			typ = core.Income
			amt = core.MustMoney("1.35")
		}
		if typ == core.Income {
			income = income.Add(amt)
		} else {
			expense = expense.Add(amt)
		}
		txs = append(txs, core.Transaction{ID: "x", Date: start.AddDays(i), Type: typ, Amount: amt})
	}

	for _, g := range []Granularity{Day, Month, Year} {
		buckets, _ := ByPeriod(txs, g, nil)
		gotIn, gotEx := core.Zero, core.Zero
		for _, b := range buckets {
			gotIn = gotIn.Add(b.Income)
			gotEx = gotEx.Add(b.Expense)
		}
		if !gotIn.Equal(income) || !gotEx.Equal(expense) {
			t.Fatalf("%s: income %s/%s expense %s/%s", g, gotIn, income, gotEx, expense)
		}
	}
}

func TestByPeriod_RejectsMalformedRecords(t *testing.T) {
	txs := []core.Transaction{
		tx("good", core.NewDate(2025, time.May, 1), core.Expense, "10"),
		{ID: "no-date", Type: core.Expense, Amount: core.MustMoney("5")},
		{ID: "bad-type", Date: core.NewDate(2025, time.May, 2), Type: "refund", Amount: core.MustMoney("5")},
	}
	buckets, rejected := ByPeriod(txs, Month, nil)
	if len(buckets) != 1 || buckets[0].Expense.String() != "10.00" {
		t.Fatalf("good record should still aggregate: %+v", buckets)
	}
	if len(rejected) != 2 {
		t.Fatalf("got %d rejects, want 2", len(rejected))
	}
	for _, r := range rejected {
		if !errors.Is(r.Err, core.ErrInvalidInput) {
			t.Errorf("reject %s: %v does not wrap ErrInvalidInput", r.ID, r.Err)
		}
	}
}

func TestByPeriod_UnknownGranularity(t *testing.T) {
	buckets, rejected := ByPeriod([]core.Transaction{tx("a", core.NewDate(2025, 1, 1), core.Income, "1")}, "week", nil)
	if buckets != nil || len(rejected) != 1 || !errors.Is(rejected[0].Err, ErrInvalidGranularity) {
		t.Fatalf("buckets=%v rejected=%v", buckets, rejected)
	}
}

func TestParseGranularity(t *testing.T) {
	if g, err := ParseGranularity(" Month "); err != nil || g != Month {
		t.Fatalf("ParseGranularity = %q, %v", g, err)
	}
	if _, err := ParseGranularity("week"); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
