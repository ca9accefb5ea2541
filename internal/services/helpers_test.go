package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"pocketwise/internal/budget"
	"pocketwise/internal/core"
	"pocketwise/internal/lifecycle"
	"pocketwise/internal/ports"
)

var now = time.Date(2025, time.October, 14, 10, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu            sync.Mutex
	subscriptions []lifecycle.Alert
	budgets       []budget.Alert
	err           error
}

func (n *recordingNotifier) NotifySubscription(_ context.Context, a lifecycle.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subscriptions = append(n.subscriptions, a)
	return n.err
}

func (n *recordingNotifier) NotifyBudget(_ context.Context, a budget.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.budgets = append(n.budgets, a)
	return n.err
}

var errChannelDown = errors.New("channel down")

type fakeExporter struct {
	userID string
	rows   []ports.ReportRow
}

func (e *fakeExporter) ExportTrend(_ context.Context, userID string, rows []ports.ReportRow) (string, error) {
	e.userID, e.rows = userID, rows
	return "sheet://trend", nil
}

func expense(userID string, d core.Date, category, amount string) core.Transaction {
	return core.Transaction{
		UserID:   userID,
		Date:     d,
		Category: category,
		Amount:   core.MustMoney(amount),
		Type:     core.Expense,
	}
}

func income(userID string, d core.Date, amount string) core.Transaction {
	return core.Transaction{
		UserID:   userID,
		Date:     d,
		Category: "Salary",
		Amount:   core.MustMoney(amount),
		Type:     core.Income,
	}
}
