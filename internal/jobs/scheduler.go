// Package jobs runs the periodic maintenance tasks of the review office.
package jobs

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"buspass/internal/featureflags"
	"buspass/internal/mailer"
	"buspass/internal/models"
	"buspass/internal/observability"
	"buspass/internal/repository"

	"github.com/robfig/cron/v3"
)

// Cron specs for the built-in jobs.
const (
	GaugeRefreshSpec  = "* * * * *"
	BacklogDigestSpec = "0 8 * * *"
)

// Scheduler owns the cron runner and the jobs registered on it.
type Scheduler struct {
	repo        repository.ApplicationRepository
	mailer      mailer.Mailer
	flags       *featureflags.Manager
	digestEmail string
	cron        *cron.Cron
}

// NewScheduler builds a scheduler. m and flags may be nil, in which case the
// digest is only logged.
func NewScheduler(repo repository.ApplicationRepository, m mailer.Mailer, flags *featureflags.Manager, digestEmail string) *Scheduler {
	return &Scheduler{
		repo:        repo,
		mailer:      m,
		flags:       flags,
		digestEmail: strings.TrimSpace(digestEmail),
		cron:        cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
	}
}

// Start registers the jobs and starts the runner. Jobs stop when ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(GaugeRefreshSpec, func() { s.run(ctx, "status_gauge", s.RefreshStatusGauge) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(BacklogDigestSpec, func() { s.run(ctx, "backlog_digest", s.SendBacklogDigest) }); err != nil {
		return err
	}
	s.cron.Start()
	observability.GlobalLogger.InfoContext(ctx, "scheduler started",
		slog.Int("jobs", len(s.cron.Entries())))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	// Populate the gauge immediately instead of waiting for the first tick.
	s.run(ctx, "status_gauge", s.RefreshStatusGauge)
	return nil
}

// Stop halts the runner and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) run(ctx context.Context, name string, job func(context.Context) error) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := job(ctx); err != nil {
		observability.LogBackgroundError(ctx, "job_"+name, err)
		return
	}
	observability.GlobalLogger.DebugContext(ctx, "job finished",
		slog.String("job", name), slog.Duration("took", time.Since(start)))
}

// RefreshStatusGauge sets buspass_applications{status} from the store.
func (s *Scheduler) RefreshStatusGauge(ctx context.Context) error {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return err
	}
	for _, status := range []models.ApplicationStatus{models.StatusPending, models.StatusApproved, models.StatusRejected} {
		observability.ApplicationsByStatus.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
	return nil
}

// SendBacklogDigest reports the pending backlog. It is mailed when a digest
// address is configured and the backlog_digest flag is on for it.
func (s *Scheduler) SendBacklogDigest(ctx context.Context) error {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return err
	}
	pending := counts[models.StatusPending]
	observability.GlobalLogger.InfoContext(ctx, "pending backlog",
		slog.Int64("pending", pending),
		slog.Int64("approved", counts[models.StatusApproved]),
		slog.Int64("rejected", counts[models.StatusRejected]),
	)

	if pending == 0 || s.digestEmail == "" || s.mailer == nil {
		return nil
	}
	if s.flags == nil || !s.flags.Enabled(featureflags.BacklogDigest, s.digestEmail) {
		return nil
	}
	return s.mailer.Send(ctx, mailer.BacklogDigestMessage(s.digestEmail, counts))
}
