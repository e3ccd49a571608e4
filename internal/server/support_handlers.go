package server

import (
	"strings"

	"buspass/internal/models"
	"buspass/internal/repository"
	"buspass/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SubmitSupportQuery handles POST /api/support
// @Summary Contact the helpdesk
// @Tags support
// @Accept json
// @Produce json
// @Param request body object{name=string,email=string,application_no=string,category=string,message=string} true "Support query"
// @Success 201 {object} models.SupportQuery
// @Failure 400 {object} models.ErrorResponse
// @Router /support [post]
func (s *Server) SubmitSupportQuery(c *fiber.Ctx) error {
	var req struct {
		Name          string `json:"name"`
		Email         string `json:"email"`
		ApplicationNo string `json:"application_no"`
		Category      string `json:"category"`
		Message       string `json:"message"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	q, err := s.support.Submit(c.UserContext(), service.SupportInput{
		Name:          req.Name,
		Email:         req.Email,
		ApplicationNo: req.ApplicationNo,
		Category:      req.Category,
		Message:       req.Message,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(q)
}

// ListSupportQueries handles GET /api/admin/support
// @Summary List support queries
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param category query string false "Helpdesk, Grievances or Feedback"
// @Param resolved query bool false "Filter by resolution"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} object{items=[]models.SupportQuery,total=int}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /admin/support [get]
func (s *Server) ListSupportQueries(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	filter := repository.SupportFilter{Limit: page.Limit, Offset: page.Offset}

	if raw := strings.TrimSpace(c.Query("category")); raw != "" {
		category, ok := models.ParseSupportCategory(raw)
		if !ok {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Category must be Helpdesk, Grievances or Feedback"))
		}
		filter.Category = category
	}
	if raw := c.Query("resolved"); raw != "" {
		resolved := c.QueryBool("resolved")
		filter.Resolved = &resolved
	}

	items, total, err := s.support.List(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"items": items, "total": total})
}

// ResolveSupportQuery handles POST /api/admin/support/:id/resolve
// @Summary Mark a support query resolved
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Support query ID"
// @Success 200 {object} models.SupportQuery
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/support/{id}/resolve [post]
func (s *Server) ResolveSupportQuery(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid ID"))
	}

	q, err := s.support.Resolve(c.UserContext(), uint(id))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(q)
}
