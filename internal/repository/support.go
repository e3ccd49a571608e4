package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"buspass/internal/models"
	"buspass/internal/observability"

	"gorm.io/gorm"
)

// SupportFilter narrows the operator support queue.
type SupportFilter struct {
	Category models.SupportCategory
	Resolved *bool
	Limit    int
	Offset   int
}

// SupportRepository stores helpdesk, grievance and feedback messages.
type SupportRepository interface {
	Create(ctx context.Context, q *models.SupportQuery) error
	List(ctx context.Context, filter SupportFilter) ([]models.SupportQuery, int64, error)
	Resolve(ctx context.Context, id uint) (*models.SupportQuery, error)
}

type supportRepository struct {
	db     *gorm.DB
	logger *observability.RepoLogger
}

// NewSupportRepository returns a SupportRepository backed by db.
func NewSupportRepository(db *gorm.DB) SupportRepository {
	return &supportRepository{db: db, logger: observability.NewRepoLogger("support_queries")}
}

func (r *supportRepository) Create(ctx context.Context, q *models.SupportQuery) error {
	if err := r.db.WithContext(ctx).Create(q).Error; err != nil {
		r.logger.Failed(ctx, "create", err)
		return models.NewInternalError(err)
	}
	r.logger.Wrote(ctx, "create", slog.Uint64("support_query_id", uint64(q.ID)), slog.String("category", string(q.Category)))
	return nil
}

func (r *supportRepository) List(ctx context.Context, filter SupportFilter) ([]models.SupportQuery, int64, error) {
	query := readDB(r.db).WithContext(ctx).Model(&models.SupportQuery{})
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Resolved != nil {
		query = query.Where("resolved = ?", *filter.Resolved)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	limit, offset := clampPage(filter.Limit, filter.Offset)
	var out []models.SupportQuery
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&out).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return out, total, nil
}

// Resolve marks a query resolved. Resolving twice is a no-op.
func (r *supportRepository) Resolve(ctx context.Context, id uint) (*models.SupportQuery, error) {
	var q models.SupportQuery
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&q, id).Error; err != nil {
			return err
		}
		if q.Resolved {
			return nil
		}
		now := time.Now().UTC()
		q.Resolved = true
		q.ResolvedAt = &now
		return tx.Model(&q).Updates(map[string]interface{}{"resolved": true, "resolved_at": now}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Support query", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &q, nil
}
