package service

import (
	"context"
	"strings"
	"time"

	"buspass/internal/auth"
	"buspass/internal/cache"
	"buspass/internal/models"
	"buspass/internal/repository"
)

// StatusView is what an anonymous applicant sees when checking status.
type StatusView struct {
	ApplicationNo   string                   `json:"application_no"`
	StudentName     string                   `json:"student_name"`
	Status          models.ApplicationStatus `json:"status"`
	RejectionReason models.RejectionReason   `json:"rejection_reason,omitempty"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

func statusViewOf(rec *models.ApplicationRecord) StatusView {
	return StatusView{
		ApplicationNo:   rec.ApplicationNo,
		StudentName:     rec.StudentName,
		Status:          rec.Status,
		RejectionReason: rec.RejectionReason,
		UpdatedAt:       rec.UpdatedAt,
	}
}

// ListResult is one page of applications plus the total match count.
type ListResult struct {
	Items []models.ApplicationRecord `json:"items"`
	Total int64                      `json:"total"`
}

// ReviewGateway is the access-controlled entry point to review operations.
// Every operator operation takes the caller's Principal explicitly.
type ReviewGateway struct {
	lifecycle   *LifecycleService
	credentials *CredentialService
	documents   *DocumentService
	operators   repository.OperatorRepository
}

// NewReviewGateway builds the gateway. When operators is nil a non-nil
// Principal is trusted as already verified.
func NewReviewGateway(lifecycle *LifecycleService, credentials *CredentialService, documents *DocumentService, operators repository.OperatorRepository) *ReviewGateway {
	return &ReviewGateway{lifecycle: lifecycle, credentials: credentials, documents: documents, operators: operators}
}

// CheckStatus is open to anyone who knows the application number.
func (g *ReviewGateway) CheckStatus(ctx context.Context, applicationNo string) (*StatusView, error) {
	applicationNo = strings.ToUpper(strings.TrimSpace(applicationNo))
	if applicationNo == "" {
		return nil, models.NewValidationError("Application number is required")
	}

	var view StatusView
	err := cache.Aside(ctx, cache.StatusKey(applicationNo), &view, cache.StatusTTL, func() error {
		rec, err := g.lifecycle.Lookup(ctx, applicationNo)
		if err != nil {
			return err
		}
		view = statusViewOf(rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (g *ReviewGateway) Approve(ctx context.Context, p *auth.Principal, applicationNo string) (*models.ApplicationRecord, error) {
	if err := g.authorize(ctx, p); err != nil {
		return nil, err
	}
	return g.lifecycle.Approve(ctx, ApproveInput{ApplicationNo: applicationNo, OperatorID: p.OperatorID})
}

func (g *ReviewGateway) Reject(ctx context.Context, p *auth.Principal, applicationNo, reason string) (*models.ApplicationRecord, error) {
	if err := g.authorize(ctx, p); err != nil {
		return nil, err
	}
	return g.lifecycle.Reject(ctx, RejectInput{ApplicationNo: applicationNo, OperatorID: p.OperatorID, Reason: reason})
}

// ListAll returns every application newest first when filter is empty, and
// a filtered page otherwise.
func (g *ReviewGateway) ListAll(ctx context.Context, p *auth.Principal, filter repository.ApplicationFilter) (*ListResult, error) {
	if err := g.authorize(ctx, p); err != nil {
		return nil, err
	}
	if filter == (repository.ApplicationFilter{}) {
		items, err := g.lifecycle.ListAll(ctx)
		if err != nil {
			return nil, err
		}
		return &ListResult{Items: items, Total: int64(len(items))}, nil
	}
	items, total, err := g.lifecycle.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ListResult{Items: items, Total: total}, nil
}

func (g *ReviewGateway) Lookup(ctx context.Context, p *auth.Principal, applicationNo string) (*models.ApplicationRecord, error) {
	if err := g.authorize(ctx, p); err != nil {
		return nil, err
	}
	return g.lifecycle.Lookup(ctx, applicationNo)
}

func (g *ReviewGateway) Summary(ctx context.Context, p *auth.Principal) (map[models.ApplicationStatus]int64, error) {
	if err := g.authorize(ctx, p); err != nil {
		return nil, err
	}
	return g.lifecycle.Summary(ctx)
}

func (g *ReviewGateway) GenerateCredential(ctx context.Context, p *auth.Principal, applicationNo string) (*Credential, error) {
	if err := g.authorize(ctx, p); err != nil {
		return nil, err
	}
	return g.credentials.Generate(ctx, applicationNo)
}

func (g *ReviewGateway) Document(ctx context.Context, p *auth.Principal, applicationNo string, kind models.DocumentKind, preview bool) (*Document, error) {
	if err := g.authorize(ctx, p); err != nil {
		return nil, err
	}
	return g.documents.Fetch(ctx, applicationNo, kind, preview)
}

func (g *ReviewGateway) authorize(ctx context.Context, p *auth.Principal) error {
	if p == nil || p.OperatorID == 0 {
		return models.NewUnauthorizedError("Operator authentication required")
	}
	if g.operators == nil {
		return nil
	}
	op, err := g.operators.GetByID(ctx, p.OperatorID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return models.NewUnauthorizedError("Operator account not found")
		}
		return err
	}
	if !op.IsActive {
		return models.NewUnauthorizedError("Operator account is disabled")
	}
	return nil
}
