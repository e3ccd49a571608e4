package server

import (
	"errors"
	"strings"

	"buspass/internal/auth"
	"buspass/internal/middleware"
	"buspass/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const (
	maxPaginationLimit = 100
)

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{
		Limit:  limit,
		Offset: offset,
	}
}

// statusForError maps an AppError code to its HTTP status. Errors without a
// code are internal.
func statusForError(err error) int {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeDuplicateKey, models.CodeInvalidTransition:
		return fiber.StatusConflict
	case models.CodeNotEligible, models.CodeDocumentsIncomplete:
		return fiber.StatusUnprocessableEntity
	case models.CodeAssetMissing:
		return fiber.StatusFailedDependency
	case models.CodeUnauthorized:
		return fiber.StatusUnauthorized
	case models.CodeValidation:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes err with the status statusForError picks. Uncoded
// errors are wrapped so their text never reaches the client.
func respondError(c *fiber.Ctx, err error) error {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		err = models.NewInternalError(err)
	}
	return models.RespondWithError(c, statusForError(err), err)
}

// applicationNoParam returns the normalized :applicationNo route parameter.
func applicationNoParam(c *fiber.Ctx) string {
	return strings.ToUpper(strings.TrimSpace(c.Params("applicationNo")))
}

// AuthRequired resolves the caller into a Principal and rejects anonymous
// requests with 401. The review feed authenticates with a single-use ticket,
// every other route with a bearer token.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		isWSPath := strings.HasPrefix(c.Path(), "/api/admin/ws/reviews")

		if isWSPath {
			operatorID, err := auth.RedeemTicket(c.UserContext(), s.redis, c.Query("ticket"))
			if err != nil {
				return respondError(c, err)
			}
			p, err := s.operators.PrincipalFor(c.UserContext(), operatorID)
			if err != nil {
				return respondError(c, err)
			}
			middleware.SetPrincipal(c, p)
			return c.Next()
		}

		token, ok := middleware.BearerToken(c)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}
		p, err := s.operators.Authenticate(c.UserContext(), token)
		if err != nil {
			return respondError(c, err)
		}
		middleware.SetPrincipal(c, p)
		return c.Next()
	}
}
