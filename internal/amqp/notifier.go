package amqp

import (
	"context"

	"pocketwise/internal/budget"
	"pocketwise/internal/lifecycle"
	"pocketwise/internal/ports"
)

// Publisher is the publishing half of Client.
type Publisher interface {
	Publish(ctx context.Context, msg *AlertMessage) error
}

// Notifier turns core alerts into AlertMessages.
type Notifier struct {
	pub Publisher
}

var _ ports.Notifier = (*Notifier)(nil)

func NewNotifier(pub Publisher) *Notifier {
	return &Notifier{pub: pub}
}

func (n *Notifier) NotifySubscription(ctx context.Context, a lifecycle.Alert) error {
	return n.pub.Publish(ctx, NewSubscriptionAlertMessage(a))
}

func (n *Notifier) NotifyBudget(ctx context.Context, a budget.Alert) error {
	return n.pub.Publish(ctx, NewBudgetAlertMessage(a))
}
