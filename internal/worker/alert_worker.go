// Package worker consumes alert messages and turns them into emails.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"pocketwise/internal/amqp"
	"pocketwise/internal/ports"
)

// ErrNoRecipient marks an alert for a user without a known address. Such
// alerts are dropped rather than requeued.
var ErrNoRecipient = errors.New("no recipient for user")

// Directory resolves the email address of a user.
type Directory interface {
	EmailFor(ctx context.Context, userID string) (string, error)
}

// StaticDirectory maps user ids to addresses, with an optional fallback.
type StaticDirectory struct {
	Emails   map[string]string
	Fallback string
}

// ParseDirectory reads "user=address" pairs separated by commas.
func ParseDirectory(pairs, fallback string) (StaticDirectory, error) {
	d := StaticDirectory{Emails: make(map[string]string), Fallback: strings.TrimSpace(fallback)}
	for _, pair := range strings.Split(pairs, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		user, addr, ok := strings.Cut(pair, "=")
		user, addr = strings.TrimSpace(user), strings.TrimSpace(addr)
		if !ok || user == "" || !strings.Contains(addr, "@") {
			return StaticDirectory{}, fmt.Errorf("invalid recipient entry %q", pair)
		}
		d.Emails[user] = addr
	}
	return d, nil
}

func (d StaticDirectory) EmailFor(_ context.Context, userID string) (string, error) {
	if addr, ok := d.Emails[userID]; ok {
		return addr, nil
	}
	if d.Fallback != "" {
		return d.Fallback, nil
	}
	return "", fmt.Errorf("%w %s", ErrNoRecipient, userID)
}

// AlertWorker renders alert messages and hands them to a mailer.
type AlertWorker struct {
	mailer    ports.Mailer
	directory Directory
}

func NewAlertWorker(mailer ports.Mailer, directory Directory) *AlertWorker {
	return &AlertWorker{mailer: mailer, directory: directory}
}

// HandleAlert processes a single alert message from AMQP. A returned error
// requeues the message, so unresolvable recipients are logged and acked.
func (w *AlertWorker) HandleAlert(ctx context.Context, msg *amqp.AlertMessage) error {
	slog.InfoContext(ctx, "Processing alert message", "kind", msg.Kind, "user_id", msg.UserID)

	to, err := w.directory.EmailFor(ctx, msg.UserID)
	if errors.Is(err, ErrNoRecipient) {
		slog.WarnContext(ctx, "Dropping alert without recipient", "kind", msg.Kind, "user_id", msg.UserID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve recipient: %w", err)
	}

	email, err := Render(msg)
	if err != nil {
		slog.ErrorContext(ctx, "Dropping unrenderable alert", "kind", msg.Kind, "error", err)
		return nil
	}
	email.To = to

	if err := w.mailer.Send(ctx, email); err != nil {
		return fmt.Errorf("send alert email: %w", err)
	}

	slog.InfoContext(ctx, "Alert email sent", "kind", msg.Kind, "user_id", msg.UserID, "to", to)
	return nil
}

// Render builds the subject and body of an alert email.
func Render(msg *amqp.AlertMessage) (ports.Email, error) {
	switch msg.Kind {
	case amqp.KindSubscriptionExpired:
		return ports.Email{
			Subject: fmt.Sprintf("Subscription %s has expired", msg.ExternalID),
			Body: fmt.Sprintf("Your %s subscription %s ended on %s and has been marked inactive.\n",
				msg.Category, msg.ExternalID, msg.EndDate),
		}, nil
	case amqp.KindSubscriptionExpiringSoon:
		when := fmt.Sprintf("in %d day(s)", msg.DaysLeft)
		if msg.DaysLeft == 0 {
			when = "today"
		}
		return ports.Email{
			Subject: fmt.Sprintf("Subscription %s expires %s", msg.ExternalID, when),
			Body: fmt.Sprintf("Your %s subscription %s ends on %s. Renew it or let it lapse.\n",
				msg.Category, msg.ExternalID, msg.EndDate),
		}, nil
	case amqp.KindBudgetExceeded:
		return ports.Email{
			Subject: fmt.Sprintf("Budget exceeded for %s", msg.Month),
			Body: fmt.Sprintf("You have spent %s against a monthly budget of %s, which is %s over the limit.\n",
				msg.Spend, msg.Limit, msg.OverBy),
		}, nil
	default:
		return ports.Email{}, fmt.Errorf("unknown alert kind %q", msg.Kind)
	}
}
