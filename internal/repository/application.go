package repository

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"buspass/internal/models"
	"buspass/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ApplicationFilter narrows List. Zero values mean "no filter".
type ApplicationFilter struct {
	Status models.ApplicationStatus
	// Query matches the student name or application number, case-insensitively.
	Query  string
	Limit  int
	Offset int
}

// ApplicationRepository stores bus-pass applications. After creation the only
// write path is Update, which is a compare-and-set on the current status.
type ApplicationRepository interface {
	Create(ctx context.Context, rec *models.ApplicationRecord) error
	GetByApplicationNo(ctx context.Context, applicationNo string) (*models.ApplicationRecord, error)
	Update(ctx context.Context, applicationNo string, expected models.ApplicationStatus, mutate func(*models.ApplicationRecord) error) (*models.ApplicationRecord, error)
	List(ctx context.Context, filter ApplicationFilter) ([]models.ApplicationRecord, int64, error)
	ListAll(ctx context.Context) ([]models.ApplicationRecord, error)
	CountByStatus(ctx context.Context) (map[models.ApplicationStatus]int64, error)
}

type applicationRepository struct {
	db     *gorm.DB
	logger *observability.RepoLogger
}

// NewApplicationRepository returns an ApplicationRepository backed by db.
func NewApplicationRepository(db *gorm.DB) ApplicationRepository {
	return &applicationRepository{
		db:     db,
		logger: observability.NewRepoLogger("applications"),
	}
}

func (r *applicationRepository) Create(ctx context.Context, rec *models.ApplicationRecord) error {
	ctx, span := observability.StartStoreSpan(ctx, "applications", "create")
	defer span.End()

	if rec.Status == "" {
		rec.Status = models.StatusPending
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return models.NewDuplicateKeyError("Application", rec.ApplicationNo)
		}
		r.logger.Failed(ctx, "create", err)
		span.RecordError(err)
		return models.NewInternalError(err)
	}

	r.logger.Wrote(ctx, "create", slog.String("application_no", rec.ApplicationNo))
	return nil
}

func (r *applicationRepository) GetByApplicationNo(ctx context.Context, applicationNo string) (*models.ApplicationRecord, error) {
	ctx, span := observability.StartStoreSpan(ctx, "applications", "get")
	defer span.End()

	var rec models.ApplicationRecord
	if err := r.db.WithContext(ctx).Where("application_no = ?", applicationNo).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Application", applicationNo)
		}
		r.logger.Failed(ctx, "get", err)
		return nil, models.NewInternalError(err)
	}
	return &rec, nil
}

// Update locks the row, checks that its status is still expected, applies
// mutate and writes the result with a conditional UPDATE. A record whose
// status moved underneath us yields INVALID_TRANSITION, never a lost update.
func (r *applicationRepository) Update(
	ctx context.Context,
	applicationNo string,
	expected models.ApplicationStatus,
	mutate func(*models.ApplicationRecord) error,
) (*models.ApplicationRecord, error) {
	ctx, span := observability.StartStoreSpan(ctx, "applications", "update")
	defer span.End()

	var updated models.ApplicationRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx
		if tx.Dialector.Name() == "postgres" {
			query = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var current models.ApplicationRecord
		if err := query.Where("application_no = ?", applicationNo).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Application", applicationNo)
			}
			return models.NewInternalError(err)
		}

		next := current
		if err := mutate(&next); err != nil {
			return err
		}
		if current.Status != expected {
			return models.NewInvalidTransitionError(applicationNo, current.Status, next.Status)
		}
		next.UpdatedAt = time.Now().UTC()

		res := tx.Model(&models.ApplicationRecord{}).
			Where("application_no = ? AND status = ?", applicationNo, expected).
			Select("*").
			Omit("id", "application_no", "created_at").
			Updates(&next)
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected == 0 {
			return models.NewInvalidTransitionError(applicationNo, expected, next.Status)
		}

		updated = next
		return nil
	})
	if err != nil {
		if !models.IsCode(err, models.CodeInvalidTransition) && !models.IsCode(err, models.CodeNotFound) {
			r.logger.Failed(ctx, "update", err)
			span.RecordError(err)
		}
		return nil, err
	}

	r.logger.Wrote(ctx, "update",
		slog.String("application_no", applicationNo),
		slog.String("from", string(expected)),
		slog.String("to", string(updated.Status)))
	return &updated, nil
}

func (r *applicationRepository) List(ctx context.Context, filter ApplicationFilter) ([]models.ApplicationRecord, int64, error) {
	ctx, span := observability.StartStoreSpan(ctx, "applications", "list")
	defer span.End()

	query := readDB(r.db).WithContext(ctx).Model(&models.ApplicationRecord{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(student_name) LIKE ? OR LOWER(application_no) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	limit, offset := clampPage(filter.Limit, filter.Offset)
	var records []models.ApplicationRecord
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&records).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return records, total, nil
}

func (r *applicationRepository) ListAll(ctx context.Context) ([]models.ApplicationRecord, error) {
	ctx, span := observability.StartStoreSpan(ctx, "applications", "list_all")
	defer span.End()

	var records []models.ApplicationRecord
	if err := readDB(r.db).WithContext(ctx).Order("created_at DESC, id DESC").Find(&records).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return records, nil
}

func (r *applicationRepository) CountByStatus(ctx context.Context) (map[models.ApplicationStatus]int64, error) {
	var rows []struct {
		Status models.ApplicationStatus
		Count  int64
	}
	if err := readDB(r.db).WithContext(ctx).
		Model(&models.ApplicationRecord{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	counts := map[models.ApplicationStatus]int64{
		models.StatusPending:  0,
		models.StatusApproved: 0,
		models.StatusRejected: 0,
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
