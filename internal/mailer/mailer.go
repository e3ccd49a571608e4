// Package mailer delivers applicant and operator email.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"buspass/internal/config"
	"buspass/internal/observability"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const sendGridHost = "https://api.sendgrid.com"

// Message is one outbound email.
type Message struct {
	ToEmail   string
	ToName    string
	Subject   string
	PlainText string
	HTML      string
	// Kind labels the delivery metric, e.g. "decision" or "digest".
	Kind string
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns a SendGrid mailer when an API key is configured, otherwise a
// mailer that only logs.
func New(cfg *config.Config) Mailer {
	if cfg == nil || strings.TrimSpace(cfg.SendGridAPIKey) == "" {
		return LogMailer{}
	}
	return NewSendGridMailer(cfg.SendGridAPIKey, cfg.MailFrom, cfg.MailFromName, sendGridHost)
}

// SendGridMailer sends through the SendGrid v3 mail API.
type SendGridMailer struct {
	apiKey string
	host   string
	from   *mail.Email
}

// NewSendGridMailer builds a mailer posting to host.
func NewSendGridMailer(apiKey, fromEmail, fromName, host string) *SendGridMailer {
	return &SendGridMailer{
		apiKey: apiKey,
		host:   host,
		from:   mail.NewEmail(fromName, fromEmail),
	}
}

func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.ToEmail) == "" {
		return fmt.Errorf("mailer: recipient is required")
	}
	body := mail.NewSingleEmail(m.from, msg.Subject, mail.NewEmail(msg.ToName, msg.ToEmail), msg.PlainText, msg.HTML)

	request := sendgrid.GetRequest(m.apiKey, "/v3/mail/send", m.host)
	request.Method = "POST"
	request.Body = mail.GetRequestBody(body)

	resp, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		observability.MailDeliveries.WithLabelValues(kindOf(msg), "error").Inc()
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		observability.MailDeliveries.WithLabelValues(kindOf(msg), "rejected").Inc()
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	observability.MailDeliveries.WithLabelValues(kindOf(msg), "sent").Inc()
	return nil
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, msg Message) error {
	observability.GlobalLogger.InfoContext(ctx, "mail not sent, no provider configured",
		slog.String("to", msg.ToEmail),
		slog.String("subject", msg.Subject),
		slog.String("kind", kindOf(msg)),
	)
	observability.MailDeliveries.WithLabelValues(kindOf(msg), "logged").Inc()
	return nil
}

func kindOf(msg Message) string {
	if msg.Kind == "" {
		return "other"
	}
	return msg.Kind
}
