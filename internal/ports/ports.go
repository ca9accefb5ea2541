// Package ports declares the collaborators the services depend on.
package ports

import (
	"context"

	"pocketwise/internal/budget"
	"pocketwise/internal/core"
	"pocketwise/internal/lifecycle"
)

// TransactionFilter narrows ListTransactions. Zero fields do not filter.
// From and To are inclusive. Results are newest first by creation time.
type TransactionFilter struct {
	From  core.Date
	To    core.Date
	Type  core.TransactionType
	Limit int
}

// Month restricts the filter to the calendar month ym.
func (f TransactionFilter) Month(ym core.YearMonth) TransactionFilter {
	f.From, f.To = ym.Start(), ym.End()
	return f
}

// Matches reports whether tx passes every set field of f, ignoring Limit.
func (f TransactionFilter) Matches(tx core.Transaction) bool {
	if !f.From.IsZero() && tx.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && tx.Date.After(f.To) {
		return false
	}
	if f.Type != "" && tx.Type != f.Type {
		return false
	}
	return true
}

type (
	TransactionStore interface {
		ListTransactions(ctx context.Context, userID string, f TransactionFilter) ([]core.Transaction, error)
		InsertTransaction(ctx context.Context, tx core.Transaction) (string, error)
		DeleteTransaction(ctx context.Context, userID, id string) error
	}

	SubscriptionStore interface {
		ListSubscriptions(ctx context.Context, userID string) ([]core.Subscription, error)
		GetSubscription(ctx context.Context, userID, id string) (core.Subscription, error)
		UpsertSubscription(ctx context.Context, sub core.Subscription) (string, error)
		// SetSubscriptionActive is a plain last-write-wins update.
		SetSubscriptionActive(ctx context.Context, userID, id string, active bool) error
		DeleteSubscription(ctx context.Context, userID, id string) error
	}

	BudgetStore interface {
		// GetBudget returns nil, nil when no budget row exists.
		GetBudget(ctx context.Context, userID string, month core.YearMonth) (*core.Budget, error)
		UpsertBudget(ctx context.Context, userID string, month core.YearMonth, amount core.Money) error
	}

	// Store is everything a backend provides.
	Store interface {
		TransactionStore
		SubscriptionStore
		BudgetStore
		Ping(ctx context.Context) error
		Close() error
	}
)

// Notifier delivers alerts. Callers treat failures as non-fatal.
type Notifier interface {
	NotifySubscription(ctx context.Context, a lifecycle.Alert) error
	NotifyBudget(ctx context.Context, a budget.Alert) error
}

// ReportRow is one line of an exported trend report.
type ReportRow struct {
	Period  string
	Income  core.Money
	Expense core.Money
	Net     core.Money
}

// ReportExporter publishes a trend report to an external destination.
type ReportExporter interface {
	ExportTrend(ctx context.Context, userID string, rows []ReportRow) (location string, err error)
}

// Email is a rendered notification.
type Email struct {
	To      string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, e Email) error
}

// NopNotifier discards every alert.
type NopNotifier struct{}

func (NopNotifier) NotifySubscription(context.Context, lifecycle.Alert) error { return nil }
func (NopNotifier) NotifyBudget(context.Context, budget.Alert) error          { return nil }
