package mailer

import (
	"context"
	"log/slog"
	"strings"

	"buspass/internal/featureflags"
	"buspass/internal/notifications"
	"buspass/internal/observability"
	"buspass/internal/repository"
)

// DecisionMailer emails applicants when an operator decides their application.
type DecisionMailer struct {
	repo   repository.ApplicationRepository
	mailer Mailer
	flags  *featureflags.Manager
}

// NewDecisionMailer wires the mailer to the application store.
func NewDecisionMailer(repo repository.ApplicationRepository, m Mailer, flags *featureflags.Manager) *DecisionMailer {
	return &DecisionMailer{repo: repo, mailer: m, flags: flags}
}

// Start subscribes to review events published through n.
func (d *DecisionMailer) Start(ctx context.Context, n *notifications.Notifier) error {
	return n.StartReviewSubscriber(ctx, func(ev notifications.ReviewEvent) {
		if err := d.HandleEvent(ctx, ev); err != nil {
			observability.LogBackgroundError(ctx, "decision_mail", err, slog.String("application_no", ev.ApplicationNo))
		}
	})
}

// HandleEvent sends the decision email for ev. Submissions and disabled
// subjects are ignored.
func (d *DecisionMailer) HandleEvent(ctx context.Context, ev notifications.ReviewEvent) error {
	if ev.Type != notifications.EventApplicationApproved && ev.Type != notifications.EventApplicationRejected {
		return nil
	}
	if !d.flags.Enabled(featureflags.DecisionEmails, ev.ApplicationNo) {
		return nil
	}

	rec, err := d.repo.GetByApplicationNo(ctx, ev.ApplicationNo)
	if err != nil {
		return err
	}
	if strings.TrimSpace(rec.PersonalEmail) == "" {
		observability.GlobalLogger.InfoContext(ctx, "no applicant email on file",
			slog.String("application_no", rec.ApplicationNo))
		return nil
	}
	msg, ok := DecisionMessage(rec)
	if !ok {
		return nil
	}
	return d.mailer.Send(ctx, msg)
}
