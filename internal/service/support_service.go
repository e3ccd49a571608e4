package service

import (
	"context"
	"strings"

	"buspass/internal/models"
	"buspass/internal/repository"
	"buspass/internal/validation"
)

type SupportInput struct {
	Name          string `validate:"required,max=120"`
	Email         string `validate:"required,email,max=255"`
	ApplicationNo string `validate:"omitempty,appno"`
	Category      string `validate:"required"`
	Message       string `validate:"required,max=4000"`
}

// SupportService takes helpdesk, grievance and feedback messages.
type SupportService struct {
	repo repository.SupportRepository
}

func NewSupportService(repo repository.SupportRepository) *SupportService {
	return &SupportService{repo: repo}
}

func (s *SupportService) Submit(ctx context.Context, in SupportInput) (*models.SupportQuery, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.ApplicationNo = strings.ToUpper(strings.TrimSpace(in.ApplicationNo))
	in.Message = strings.TrimSpace(in.Message)
	if err := validation.Struct(in); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	category, ok := models.ParseSupportCategory(in.Category)
	if !ok {
		return nil, models.NewValidationError("Category must be Helpdesk, Grievances or Feedback")
	}

	q := &models.SupportQuery{
		Name:          in.Name,
		Email:         in.Email,
		ApplicationNo: in.ApplicationNo,
		Category:      category,
		Message:       in.Message,
	}
	if err := s.repo.Create(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *SupportService) List(ctx context.Context, filter repository.SupportFilter) ([]models.SupportQuery, int64, error) {
	return s.repo.List(ctx, filter)
}

func (s *SupportService) Resolve(ctx context.Context, id uint) (*models.SupportQuery, error) {
	if id == 0 {
		return nil, models.NewValidationError("Invalid support query ID")
	}
	return s.repo.Resolve(ctx, id)
}
