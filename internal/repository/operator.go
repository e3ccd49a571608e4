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

// OperatorRepository defines the data access methods for operators.
type OperatorRepository interface {
	Create(ctx context.Context, op *models.Operator) error
	GetByID(ctx context.Context, id uint) (*models.Operator, error)
	GetByUsername(ctx context.Context, username string) (*models.Operator, error)
	List(ctx context.Context) ([]models.Operator, error)
	SetActive(ctx context.Context, username string, active bool) error
	TouchLogin(ctx context.Context, id uint) error
}

type operatorRepository struct {
	db     *gorm.DB
	logger *observability.RepoLogger
}

// NewOperatorRepository returns a new OperatorRepository implementation.
func NewOperatorRepository(db *gorm.DB) OperatorRepository {
	return &operatorRepository{db: db, logger: observability.NewRepoLogger("operators")}
}

func (r *operatorRepository) Create(ctx context.Context, op *models.Operator) error {
	if err := r.db.WithContext(ctx).Create(op).Error; err != nil {
		if isUniqueViolation(err) {
			return models.NewDuplicateKeyError("Operator", op.Username)
		}
		r.logger.Failed(ctx, "create", err)
		return models.NewInternalError(err)
	}
	r.logger.Wrote(ctx, "create", slog.Uint64("operator_id", uint64(op.ID)), slog.String("username", op.Username))
	return nil
}

func (r *operatorRepository) GetByID(ctx context.Context, id uint) (*models.Operator, error) {
	var op models.Operator
	if err := r.db.WithContext(ctx).First(&op, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Operator", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &op, nil
}

func (r *operatorRepository) GetByUsername(ctx context.Context, username string) (*models.Operator, error) {
	var op models.Operator
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&op).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Operator", username)
		}
		return nil, models.NewInternalError(err)
	}
	return &op, nil
}

func (r *operatorRepository) List(ctx context.Context) ([]models.Operator, error) {
	var ops []models.Operator
	if err := readDB(r.db).WithContext(ctx).Order("username ASC").Find(&ops).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ops, nil
}

func (r *operatorRepository) SetActive(ctx context.Context, username string, active bool) error {
	res := r.db.WithContext(ctx).Model(&models.Operator{}).
		Where("username = ?", username).
		Update("is_active", active)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Operator", username)
	}
	r.logger.Wrote(ctx, "set_active", slog.String("username", username), slog.Bool("is_active", active))
	return nil
}

func (r *operatorRepository) TouchLogin(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.Operator{}).
		Where("id = ?", id).
		Update("last_login_at", time.Now().UTC()).Error
}
