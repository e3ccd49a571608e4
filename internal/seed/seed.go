package seed

import (
	"context"
	"fmt"
	"log/slog"

	"buspass/internal/models"
	"buspass/internal/observability"
	"buspass/internal/repository"
	"buspass/internal/storage"

	"gorm.io/gorm"
)

// Options configure a seeding run.
type Options struct {
	NumApplications int
	// Share of applications left Pending, approved and rejected, in percent.
	Distribution Distribution
	MaxDays      int
	Prefix       string
	RandomSeed   int64
	DryRun       bool
	ShouldClean  bool

	SealKey      string
	SignatureKey string
	// OperatorID is recorded as the reviewer of seeded decisions.
	OperatorID uint
}

// Distribution splits seeded applications across statuses, in percent.
type Distribution struct {
	Pending  int
	Approved int
	Rejected int
}

var defaultDistribution = Distribution{Pending: 50, Approved: 30, Rejected: 20}

// Summary reports what a seeding run created.
type Summary struct {
	Applications map[models.ApplicationStatus]int
	Assets       int
}

// computeCounts splits n by d. Rounding leftovers go to Pending.
func computeCounts(n int, d Distribution) (pending, approved, rejected int) {
	total := d.Pending + d.Approved + d.Rejected
	if n <= 0 {
		return 0, 0, 0
	}
	if total <= 0 {
		return n, 0, 0
	}
	approved = n * d.Approved / total
	rejected = n * d.Rejected / total
	pending = n - approved - rejected
	return pending, approved, rejected
}

// Seed fills the database and document store with demo applications and makes
// sure the card seal and signature exist.
func Seed(ctx context.Context, db *gorm.DB, store storage.Store, opts Options) (*Summary, error) {
	if opts.Distribution == (Distribution{}) {
		opts.Distribution = defaultDistribution
	}
	logger := observability.GlobalLogger
	logger.InfoContext(ctx, "seeding demo data",
		slog.Int("applications", opts.NumApplications),
		slog.Bool("dry_run", opts.DryRun))

	if opts.ShouldClean && !opts.DryRun {
		if err := clearData(db); err != nil {
			logger.WarnContext(ctx, "could not clear existing applications", slog.String("error", err.Error()))
		}
	}

	if !opts.DryRun && (db == nil || store == nil) {
		return nil, fmt.Errorf("seeding needs a database and a document store")
	}

	summary := &Summary{Applications: make(map[models.ApplicationStatus]int)}
	if !opts.DryRun {
		n, err := EnsureCardAssets(ctx, store, opts.SealKey, opts.SignatureKey)
		if err != nil {
			return nil, fmt.Errorf("card assets: %w", err)
		}
		summary.Assets = n
	}

	var repo repository.ApplicationRepository
	if db != nil {
		repo = repository.NewApplicationRepository(db)
	}
	f := NewFactory(repo, store, opts)

	pending, approved, rejected := computeCounts(opts.NumApplications, opts.Distribution)
	plan := []struct {
		status models.ApplicationStatus
		count  int
	}{
		{models.StatusPending, pending},
		{models.StatusApproved, approved},
		{models.StatusRejected, rejected},
	}
	for _, step := range plan {
		for i := 0; i < step.count; i++ {
			rec, err := f.CreateApplication(ctx)
			if err != nil {
				return summary, fmt.Errorf("create application: %w", err)
			}
			if step.status != models.StatusPending {
				if _, err := f.Decide(ctx, rec, step.status, opts.OperatorID); err != nil {
					return summary, fmt.Errorf("decide %s: %w", rec.ApplicationNo, err)
				}
			}
			summary.Applications[step.status]++
		}
	}

	logger.InfoContext(ctx, "seeding complete",
		slog.Int("pending", summary.Applications[models.StatusPending]),
		slog.Int("approved", summary.Applications[models.StatusApproved]),
		slog.Int("rejected", summary.Applications[models.StatusRejected]),
		slog.Int("assets", summary.Assets))
	return summary, nil
}

// clearData removes every application. Stored documents are left in place.
func clearData(db *gorm.DB) error {
	return db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.ApplicationRecord{}).Error
}
