package service

import (
	"context"
	"log/slog"
	"time"

	"buspass/internal/cache"
	"buspass/internal/models"
	"buspass/internal/notifications"
	"buspass/internal/observability"
	"buspass/internal/repository"
)

// ReviewPublisher receives every successful lifecycle transition.
type ReviewPublisher interface {
	PublishReviewEvent(ctx context.Context, ev notifications.ReviewEvent) error
}

// LifecycleService moves applications from Pending to a terminal status.
type LifecycleService struct {
	repo      repository.ApplicationRepository
	publisher ReviewPublisher
	now       func() time.Time
}

type ApproveInput struct {
	ApplicationNo string
	OperatorID    uint
}

type RejectInput struct {
	ApplicationNo string
	OperatorID    uint
	// Reason must be a member of the rejection catalog.
	Reason string
}

// NewLifecycleService builds the service. publisher may be nil.
func NewLifecycleService(repo repository.ApplicationRepository, publisher ReviewPublisher) *LifecycleService {
	return &LifecycleService{
		repo:      repo,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Approve moves a Pending application with all documents on file to Approved
// and clears any rejection reason.
func (s *LifecycleService) Approve(ctx context.Context, in ApproveInput) (*models.ApplicationRecord, error) {
	if in.ApplicationNo == "" {
		return nil, models.NewValidationError("Application number is required")
	}
	ctx, span := observability.StartServiceSpan(ctx, "lifecycle.approve", in.ApplicationNo)
	defer span.End()

	rec, err := s.repo.Update(ctx, in.ApplicationNo, models.StatusPending, func(r *models.ApplicationRecord) error {
		if r.Status == models.StatusPending {
			if missing := r.MissingDocuments(); len(missing) > 0 {
				return models.NewDocumentsIncompleteError(missing)
			}
		}
		s.stamp(r, models.StatusApproved, "", in.OperatorID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.afterTransition(ctx, rec, in.OperatorID)
	return rec, nil
}

// Reject moves a Pending application to Rejected with a catalog reason.
func (s *LifecycleService) Reject(ctx context.Context, in RejectInput) (*models.ApplicationRecord, error) {
	if in.ApplicationNo == "" {
		return nil, models.NewValidationError("Application number is required")
	}
	reason, ok := models.ParseRejectionReason(in.Reason)
	if !ok {
		return nil, models.NewValidationError("Rejection reason must be one of the listed reasons")
	}
	ctx, span := observability.StartServiceSpan(ctx, "lifecycle.reject", in.ApplicationNo)
	defer span.End()

	rec, err := s.repo.Update(ctx, in.ApplicationNo, models.StatusPending, func(r *models.ApplicationRecord) error {
		s.stamp(r, models.StatusRejected, reason, in.OperatorID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.afterTransition(ctx, rec, in.OperatorID)
	return rec, nil
}

// Lookup returns the current record.
func (s *LifecycleService) Lookup(ctx context.Context, applicationNo string) (*models.ApplicationRecord, error) {
	return s.repo.GetByApplicationNo(ctx, applicationNo)
}

// ListAll returns every application, newest first.
func (s *LifecycleService) ListAll(ctx context.Context) ([]models.ApplicationRecord, error) {
	return s.repo.ListAll(ctx)
}

// List returns one filtered page, newest first, with the total match count.
func (s *LifecycleService) List(ctx context.Context, filter repository.ApplicationFilter) ([]models.ApplicationRecord, int64, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, models.NewValidationError("Unknown status filter")
	}
	return s.repo.List(ctx, filter)
}

// Summary returns the number of applications in each status.
func (s *LifecycleService) Summary(ctx context.Context) (map[models.ApplicationStatus]int64, error) {
	return s.repo.CountByStatus(ctx)
}

func (s *LifecycleService) stamp(r *models.ApplicationRecord, status models.ApplicationStatus, reason models.RejectionReason, operatorID uint) {
	now := s.now()
	r.Status = status
	r.RejectionReason = reason
	r.ReviewedAt = &now
	if operatorID != 0 {
		id := operatorID
		r.ReviewedByOperatorID = &id
	}
}

func (s *LifecycleService) afterTransition(ctx context.Context, rec *models.ApplicationRecord, operatorID uint) {
	// Overwrite rather than delete: a status check that read the record before
	// this commit may still be about to fill the key.
	cache.Put(ctx, cache.StatusKey(rec.ApplicationNo), statusViewOf(rec), cache.StatusTTL)
	observability.ReviewDecisions.WithLabelValues(string(rec.Status)).Inc()

	observability.GlobalLogger.InfoContext(ctx, "application reviewed",
		slog.String("application_no", rec.ApplicationNo),
		slog.String("status", string(rec.Status)),
		slog.String("reason", string(rec.RejectionReason)),
		slog.Uint64("operator_id", uint64(operatorID)),
	)

	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishReviewEvent(ctx, notifications.EventForRecord(rec, operatorID)); err != nil {
		observability.LogBackgroundError(ctx, "publish_review_event", err, slog.String("application_no", rec.ApplicationNo))
	}
}
