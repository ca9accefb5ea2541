// Package lifecycle evaluates subscription state against a point in time.
//
// Evaluation is pure: it reports the state changes a caller must persist and
// the alerts it should deliver, and never touches a store itself.
package lifecycle

import (
	"fmt"
	"time"

	"pocketwise/internal/core"
)

// DefaultWarnWithin is how many days before its end date an active
// subscription starts raising expiring-soon alerts.
const DefaultWarnWithin = 3

const (
	Expired      AlertKind = "expired"
	ExpiringSoon AlertKind = "expiring_soon"
)

type AlertKind string

// Alert is raised for an automatic transition or a near-expiry warning.
type Alert struct {
	SubscriptionID string
	UserID         string
	ExternalID     string
	Category       string
	Kind           AlertKind
	DaysLeft       int // meaningful for ExpiringSoon only
	EndDate        core.Date
}

// StateChange is a persisted isActive update produced by evaluation.
type StateChange struct {
	SubscriptionID string
	Active         bool
}

type Evaluation struct {
	// Subscriptions mirrors the input with changes applied, in input order.
	Subscriptions []core.Subscription
	Changes       []StateChange
	Alerts        []Alert
}

type Options struct {
	WarnWithin int
}

func DefaultOptions() Options {
	return Options{WarnWithin: DefaultWarnWithin}
}

// Evaluate sweeps subs as of now.
//
// An active subscription whose end date is strictly before today is demoted
// and yields an Expired alert. An active subscription ending between today
// and today+WarnWithin inclusive yields an ExpiringSoon alert and stays
// active. The two are exclusive. Inactive subscriptions are left alone, so a
// second pass with the same now is silent.
func Evaluate(subs []core.Subscription, now time.Time, opts Options) Evaluation {
	if opts.WarnWithin < 0 {
		opts.WarnWithin = 0
	}
	today := core.DateOf(now)
	horizon := today.AddDays(opts.WarnWithin)

	ev := Evaluation{Subscriptions: make([]core.Subscription, len(subs))}
	for i, sub := range subs {
		ev.Subscriptions[i] = sub
		if !sub.IsActive || sub.EndDate.IsZero() {
			continue
		}

		switch {
		case sub.EndDate.Before(today):
			ev.Subscriptions[i].IsActive = false
			ev.Changes = append(ev.Changes, StateChange{SubscriptionID: sub.ID, Active: false})
			ev.Alerts = append(ev.Alerts, newAlert(sub, Expired, 0))
		case !sub.EndDate.After(horizon):
			ev.Alerts = append(ev.Alerts, newAlert(sub, ExpiringSoon, today.DaysUntil(sub.EndDate)))
		}
	}
	return ev
}

func newAlert(sub core.Subscription, kind AlertKind, daysLeft int) Alert {
	return Alert{
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		ExternalID:     sub.ExternalID,
		Category:       sub.Category,
		Kind:           kind,
		DaysLeft:       daysLeft,
		EndDate:        sub.EndDate,
	}
}

// Message is the user-facing text for an alert.
func (a Alert) Message() string {
	switch a.Kind {
	case Expired:
		return fmt.Sprintf("Your subscription %s (%s) has expired", a.ExternalID, a.Category)
	case ExpiringSoon:
		if a.DaysLeft == 0 {
			return fmt.Sprintf("Your subscription %s (%s) expires today", a.ExternalID, a.Category)
		}
		return fmt.Sprintf("Your subscription %s (%s) expires in %d day(s)", a.ExternalID, a.Category, a.DaysLeft)
	default:
		return string(a.Kind)
	}
}

// LinkedSubcategory labels expenses materialized from subscriptions.
const LinkedSubcategory = "Subscription"

// LinkedTransaction builds the expense recorded when sub is created at now.
// The caller assigns the transaction id.
func LinkedTransaction(sub core.Subscription, now time.Time) core.Transaction {
	return core.Transaction{
		UserID:          sub.UserID,
		Date:            core.DateOf(now),
		Category:        sub.Category,
		Subcategory:     LinkedSubcategory,
		Amount:          sub.Amount,
		Type:            core.Expense,
		Description:     fmt.Sprintf("%s subscription %s", sub.BillingCycle, sub.ExternalID),
		SubscriptionRef: sub.ID,
		CreatedAt:       now,
	}
}
