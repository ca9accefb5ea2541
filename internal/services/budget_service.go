package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"pocketwise/internal/budget"
	"pocketwise/internal/core"
	"pocketwise/internal/ports"
)

type BudgetStore interface {
	ports.BudgetStore
	ports.TransactionStore
}

// BudgetStatus is the budget card for one month.
type BudgetStatus struct {
	Month     core.YearMonth
	Limit     core.Money // zero when no budget is set
	Spend     core.Money
	Remaining core.Money
	Alert     *budget.Alert
}

type BudgetService struct {
	store    BudgetStore
	notifier ports.Notifier
}

func NewBudgetService(store BudgetStore, notifier ports.Notifier) *BudgetService {
	if notifier == nil {
		notifier = ports.NopNotifier{}
	}
	return &BudgetService{store: store, notifier: notifier}
}

// Status evaluates the current month of now. The alert is published on every
// evaluation that finds the month over budget.
func (s *BudgetService) Status(ctx context.Context, userID string, now time.Time) (BudgetStatus, error) {
	month := core.MonthOf(core.DateOf(now))

	var (
		b   *core.Budget
		txs []core.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if b, err = s.store.GetBudget(gctx, userID, month); err != nil {
			return fmt.Errorf("get budget: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if txs, err = s.store.ListTransactions(gctx, userID, ports.TransactionFilter{Type: core.Expense}.Month(month)); err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return BudgetStatus{}, err
	}

	spend, rejected := budget.MonthSpend(txs, now)
	logRejected(ctx, userID, rejected)

	st := BudgetStatus{
		Month:     month,
		Spend:     spend,
		Remaining: budget.Remaining(spend, b),
		Alert:     budget.Evaluate(spend, b),
	}
	if b != nil {
		st.Limit = b.Amount
	}

	if st.Alert != nil {
		slog.WarnContext(ctx, "Monthly budget exceeded",
			"user_id", userID,
			"month", month.String(),
			"spend", spend.String(),
			"limit", st.Limit.String())
		if err := s.notifier.NotifyBudget(ctx, *st.Alert); err != nil {
			slog.ErrorContext(ctx, "Failed to publish budget alert", "user_id", userID, "error", err)
		}
	}
	return st, nil
}

// Set stores amount as the limit for month, replacing any previous value.
// Zero clears the budget.
func (s *BudgetService) Set(ctx context.Context, userID string, month core.YearMonth, amount core.Money) error {
	b := core.Budget{UserID: userID, Month: month, Amount: amount}
	if err := b.Validate(); err != nil {
		return err
	}
	if err := s.store.UpsertBudget(ctx, userID, month, amount); err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}
	slog.InfoContext(ctx, "Budget set", "user_id", userID, "month", month.String(), "amount", amount.String())
	return nil
}
