package service

import (
	"context"
	"log/slog"
	"strings"

	"buspass/internal/auth"
	"buspass/internal/models"
	"buspass/internal/observability"
	"buspass/internal/repository"
	"buspass/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash keeps login timing similar for unknown usernames.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("buspass-timing-equalizer"), bcrypt.DefaultCost)

// OperatorService manages operator accounts and sessions.
type OperatorService struct {
	repo   repository.OperatorRepository
	tokens *auth.TokenManager
}

type CreateOperatorInput struct {
	Username    string
	Password    string
	DisplayName string
	Email       string
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string           `json:"token"`
	Operator  *models.Operator `json:"operator"`
	Principal *auth.Principal  `json:"-"`
}

func NewOperatorService(repo repository.OperatorRepository, tokens *auth.TokenManager) *OperatorService {
	return &OperatorService{repo: repo, tokens: tokens}
}

// Create adds an operator after checking the username and password policy.
func (s *OperatorService) Create(ctx context.Context, in CreateOperatorInput) (*models.Operator, error) {
	username := strings.ToLower(strings.TrimSpace(in.Username))
	if err := validation.ValidateUsername(username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email != "" {
		if err := validation.ValidateEmail(email); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	op := &models.Operator{
		Username:     username,
		PasswordHash: string(hash),
		DisplayName:  strings.TrimSpace(in.DisplayName),
		Email:        email,
		IsActive:     true,
	}
	if op.DisplayName == "" {
		op.DisplayName = username
	}
	if err := s.repo.Create(ctx, op); err != nil {
		return nil, err
	}
	return op, nil
}

// Login checks credentials and issues a session token. Unknown usernames,
// wrong passwords and disabled accounts are indistinguishable to the caller.
func (s *OperatorService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || password == "" {
		return nil, models.NewValidationError("Username and password are required")
	}

	op, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if !models.IsCode(err, models.CodeNotFound) {
			return nil, err
		}
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, models.NewUnauthorizedError("Invalid username or password")
	}
	if bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)) != nil || !op.IsActive {
		observability.GlobalLogger.WarnContext(ctx, "operator login failed", slog.String("username", username))
		return nil, models.NewUnauthorizedError("Invalid username or password")
	}

	token, principal, err := s.tokens.Issue(op.ID, op.Username)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := s.repo.TouchLogin(ctx, op.ID); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "failed to record login time",
			slog.Uint64("operator_id", uint64(op.ID)), slog.String("error", err.Error()))
	}
	return &LoginResult{Token: token, Operator: op, Principal: principal}, nil
}

// Authenticate resolves a bearer token into the Principal of an active operator.
func (s *OperatorService) Authenticate(ctx context.Context, token string) (*auth.Principal, error) {
	p, err := s.tokens.Parse(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := s.requireActive(ctx, p.OperatorID); err != nil {
		return nil, err
	}
	return p, nil
}

// PrincipalFor builds a Principal for an operator authenticated another way,
// such as a redeemed websocket ticket.
func (s *OperatorService) PrincipalFor(ctx context.Context, operatorID uint) (*auth.Principal, error) {
	if err := s.requireActive(ctx, operatorID); err != nil {
		return nil, err
	}
	op, err := s.repo.GetByID(ctx, operatorID)
	if err != nil {
		return nil, err
	}
	return &auth.Principal{OperatorID: op.ID, Username: op.Username}, nil
}

func (s *OperatorService) requireActive(ctx context.Context, operatorID uint) error {
	op, err := s.repo.GetByID(ctx, operatorID)
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

// Logout revokes the caller's token.
func (s *OperatorService) Logout(ctx context.Context, p *auth.Principal) error {
	if p == nil {
		return models.NewUnauthorizedError("Operator authentication required")
	}
	if err := s.tokens.Revoke(ctx, p); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Me returns the caller's operator account.
func (s *OperatorService) Me(ctx context.Context, p *auth.Principal) (*models.Operator, error) {
	if p == nil {
		return nil, models.NewUnauthorizedError("Operator authentication required")
	}
	return s.repo.GetByID(ctx, p.OperatorID)
}

func (s *OperatorService) Deactivate(ctx context.Context, username string) error {
	return s.repo.SetActive(ctx, strings.ToLower(strings.TrimSpace(username)), false)
}

func (s *OperatorService) List(ctx context.Context) ([]models.Operator, error) {
	return s.repo.List(ctx)
}
