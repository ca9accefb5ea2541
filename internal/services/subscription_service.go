package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"pocketwise/internal/cache"
	"pocketwise/internal/core"
	"pocketwise/internal/lifecycle"
	"pocketwise/internal/ports"
)

// SubscriptionStore is what SubscriptionService needs: subscriptions plus
// the transaction side for linked expenses.
type SubscriptionStore interface {
	ports.SubscriptionStore
	ports.TransactionStore
}

// Sweep is the result of listing a user's subscriptions.
type Sweep struct {
	Subscriptions []core.Subscription
	Alerts        []lifecycle.Alert
}

// SubscriptionService applies lifecycle evaluation to the store.
type SubscriptionService struct {
	store    SubscriptionStore
	notifier ports.Notifier
	views    cache.Cache[Trend]
	opts     lifecycle.Options
	sweeps   singleflight.Group
}

func NewSubscriptionService(store SubscriptionStore, notifier ports.Notifier, views cache.Cache[Trend], opts lifecycle.Options) *SubscriptionService {
	if notifier == nil {
		notifier = ports.NopNotifier{}
	}
	return &SubscriptionService{store: store, notifier: notifier, views: views, opts: opts}
}

// List fetches every subscription of userID and sweeps them as of now.
// Expired subscriptions are persisted as inactive before alerts go out, and
// a failed alert never undoes that. Overlapping sweeps for one user share
// a single evaluation, which outlives the cancellation of whichever caller
// started it.
func (s *SubscriptionService) List(ctx context.Context, userID string, now time.Time) (Sweep, error) {
	key := userID + "|" + core.DateOf(now).String()
	shareCtx := context.WithoutCancel(ctx)
	v, err, shared := s.sweeps.Do(key, func() (any, error) {
		return s.sweep(shareCtx, userID, now)
	})
	if err != nil {
		return Sweep{}, err
	}
	if shared {
		slog.DebugContext(ctx, "Joined in-flight subscription sweep", "user_id", userID)
	}
	return v.(Sweep), nil
}

func (s *SubscriptionService) sweep(ctx context.Context, userID string, now time.Time) (Sweep, error) {
	subs, err := s.store.ListSubscriptions(ctx, userID)
	if err != nil {
		return Sweep{}, fmt.Errorf("list subscriptions: %w", err)
	}

	ev := lifecycle.Evaluate(subs, now, s.opts)
	var errs []error
	failed := make(map[string]bool)
	for _, ch := range ev.Changes {
		if err := s.store.SetSubscriptionActive(ctx, userID, ch.SubscriptionID, ch.Active); err != nil {
			slog.ErrorContext(ctx, "Failed to apply lifecycle change",
				"id", ch.SubscriptionID,
				"user_id", userID,
				"error", err)
			failed[ch.SubscriptionID] = true
			errs = append(errs, fmt.Errorf("apply lifecycle change to %s: %w", ch.SubscriptionID, err))
			continue
		}
		slog.InfoContext(ctx, "Subscription expired",
			"id", ch.SubscriptionID,
			"user_id", userID)
	}

	// Expired alerts go out only for changes that persisted.
	alerts := make([]lifecycle.Alert, 0, len(ev.Alerts))
	for _, a := range ev.Alerts {
		if a.Kind == lifecycle.Expired && failed[a.SubscriptionID] {
			continue
		}
		alerts = append(alerts, a)
		if err := s.notifier.NotifySubscription(ctx, a); err != nil {
			slog.ErrorContext(ctx, "Failed to publish subscription alert",
				"id", a.SubscriptionID,
				"kind", a.Kind,
				"error", err)
			// Don't fail the request - the state change is already persisted
		}
	}

	if len(errs) > 0 {
		return Sweep{}, errors.Join(errs...)
	}
	return Sweep{Subscriptions: ev.Subscriptions, Alerts: alerts}, nil
}

// Create records sub and exactly one linked expense for its amount, dated now.
func (s *SubscriptionService) Create(ctx context.Context, sub core.Subscription, now time.Time) (core.Subscription, core.Transaction, error) {
	if err := sub.Validate(); err != nil {
		return core.Subscription{}, core.Transaction{}, err
	}
	sub.ID = uuid.NewString()
	sub.CreatedAt = now

	id, err := s.store.UpsertSubscription(ctx, sub)
	if err != nil {
		return core.Subscription{}, core.Transaction{}, fmt.Errorf("save subscription: %w", err)
	}
	sub.ID = id

	tx := lifecycle.LinkedTransaction(sub, now)
	tx.ID = uuid.NewString()
	if tx.ID, err = s.store.InsertTransaction(ctx, tx); err != nil {
		// A subscription never persists without its linked expense.
		if derr := s.store.DeleteSubscription(ctx, sub.UserID, sub.ID); derr != nil {
			slog.ErrorContext(ctx, "Failed to remove subscription without linked expense",
				"id", sub.ID,
				"user_id", sub.UserID,
				"error", derr)
			return core.Subscription{}, core.Transaction{}, errors.Join(
				fmt.Errorf("insert linked transaction for %s: %w", sub.ID, err),
				fmt.Errorf("roll back subscription %s: %w", sub.ID, derr))
		}
		return core.Subscription{}, core.Transaction{}, fmt.Errorf("insert linked transaction for %s: %w", sub.ID, err)
	}
	invalidateViews(ctx, s.views, sub.UserID)

	slog.InfoContext(ctx, "Subscription created",
		"id", sub.ID,
		"user_id", sub.UserID,
		"cycle", sub.BillingCycle,
		"amount", sub.Amount.String(),
		"linked_transaction", tx.ID)
	return sub, tx, nil
}

// Update replaces an existing subscription. It never creates a transaction.
func (s *SubscriptionService) Update(ctx context.Context, sub core.Subscription) (core.Subscription, error) {
	if err := sub.Validate(); err != nil {
		return core.Subscription{}, err
	}
	prev, err := s.store.GetSubscription(ctx, sub.UserID, sub.ID)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("get subscription: %w", err)
	}
	sub.CreatedAt = prev.CreatedAt

	if _, err := s.store.UpsertSubscription(ctx, sub); err != nil {
		return core.Subscription{}, fmt.Errorf("save subscription: %w", err)
	}
	slog.InfoContext(ctx, "Subscription updated", "id", sub.ID, "user_id", sub.UserID)
	return sub, nil
}

// SetActive is the manual toggle. It is always permitted and raises no alert.
func (s *SubscriptionService) SetActive(ctx context.Context, userID, id string, active bool) error {
	if err := s.store.SetSubscriptionActive(ctx, userID, id, active); err != nil {
		return fmt.Errorf("set subscription active: %w", err)
	}
	slog.InfoContext(ctx, "Subscription toggled", "id", id, "user_id", userID, "active", active)
	return nil
}

// Delete removes the subscription. Linked transactions are kept.
func (s *SubscriptionService) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteSubscription(ctx, userID, id); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	slog.InfoContext(ctx, "Subscription deleted", "id", id, "user_id", userID)
	return nil
}
