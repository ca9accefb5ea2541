package worker

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/wneessen/go-mail"

	"pocketwise/internal/ports"
)

// LogMailer writes emails to the log instead of delivering them.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, e ports.Email) error {
	slog.InfoContext(ctx, "Email (log only)", "to", e.To, "subject", headerValue(e.Subject), "body", e.Body)
	return nil
}

// SMTPMailer delivers through an SMTP relay, with PLAIN auth when a
// username is set and STARTTLS when the relay offers it.
type SMTPMailer struct {
	Addr     string // host:port
	From     string
	Username string
	Password string
}

func (m SMTPMailer) Send(ctx context.Context, e ports.Email) error {
	msg, err := newMessage(m.From, e)
	if err != nil {
		return err
	}
	client, err := m.client()
	if err != nil {
		return err
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (m SMTPMailer) client() (*mail.Client, error) {
	host, portStr, err := net.SplitHostPort(m.Addr)
	if err != nil {
		return nil, fmt.Errorf("smtp addr %q: %w", m.Addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("smtp port %q: %w", portStr, err)
	}
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.Username),
			mail.WithPassword(m.Password))
	}
	client, err := mail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return client, nil
}

// newMessage builds a plain-text message. Header values never carry line
// breaks.
func newMessage(from string, e ports.Email) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("from address %q: %w", from, err)
	}
	if err := msg.To(e.To); err != nil {
		return nil, fmt.Errorf("to address %q: %w", e.To, err)
	}
	msg.Subject(headerValue(e.Subject))
	msg.SetBodyString(mail.TypeTextPlain, e.Body)
	return msg, nil
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

func headerValue(s string) string {
	return strings.TrimSpace(lineBreaks.Replace(s))
}

var (
	_ ports.Mailer = LogMailer{}
	_ ports.Mailer = SMTPMailer{}
)
