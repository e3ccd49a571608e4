// Package models defines the persisted domain types and the API error contract.
package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeNotFound            = "NOT_FOUND"
	CodeDuplicateKey        = "DUPLICATE_KEY"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeNotEligible         = "NOT_ELIGIBLE"
	CodeAssetMissing        = "ASSET_MISSING"
	CodeDocumentsIncomplete = "DOCUMENTS_INCOMPLETE"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeValidation          = "VALIDATION_ERROR"
	CodeInternal            = "INTERNAL_ERROR"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewNotFoundError reports a missing resource.
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %v not found", resource, id),
	}
}

// NewDuplicateKeyError reports a unique key collision.
func NewDuplicateKeyError(resource string, key interface{}) *AppError {
	return &AppError{
		Code:    CodeDuplicateKey,
		Message: fmt.Sprintf("%s %v already exists", resource, key),
	}
}

// NewInvalidTransitionError reports a lifecycle transition attempted from the wrong state.
func NewInvalidTransitionError(applicationNo string, from ApplicationStatus, to ApplicationStatus) *AppError {
	return &AppError{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("application %s cannot move from %s to %s", applicationNo, from, to),
	}
}

func NewNotEligibleError(applicationNo string, status ApplicationStatus) *AppError {
	return &AppError{
		Code:    CodeNotEligible,
		Message: fmt.Sprintf("application %s is %s; only approved applications receive a bus pass", applicationNo, status),
	}
}

func NewAssetMissingError(asset string, err error) *AppError {
	return &AppError{
		Code:    CodeAssetMissing,
		Message: fmt.Sprintf("%s could not be loaded", asset),
		Err:     err,
	}
}

func NewDocumentsIncompleteError(missing []string) *AppError {
	return &AppError{
		Code:    CodeDocumentsIncomplete,
		Message: fmt.Sprintf("missing documents: %v", missing),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// IsCode reports whether err wraps an AppError with the given code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		if appErr.Err != nil && appErr.Code != CodeInternal {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}
