package server

import (
	"buspass/internal/auth"
	"buspass/internal/middleware"
	"buspass/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Login handles POST /api/auth/login
// @Summary Operator login
// @Description Exchange operator credentials for a bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{username=string,password=string} true "Login request"
// @Success 200 {object} object{token=string,operator=models.Operator}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	result, err := s.operators.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// Logout handles POST /api/auth/logout
// @Summary Operator logout
// @Description Revokes the current bearer token
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{message=string}
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	if err := s.operators.Logout(c.UserContext(), middleware.PrincipalFrom(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// Me handles GET /api/auth/me
// @Summary Current operator
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Operator
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/me [get]
func (s *Server) Me(c *fiber.Ctx) error {
	op, err := s.operators.Me(c.UserContext(), middleware.PrincipalFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(op)
}

// IssueWSTicket handles POST /api/admin/ws/ticket
// @Summary Issue a review feed ticket
// @Description Returns a single-use ticket valid for 30 seconds. Pass it as ?ticket= when opening /admin/ws/reviews.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{ticket=string,expires_in=int}
// @Failure 401 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /admin/ws/ticket [post]
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	p := middleware.PrincipalFrom(c)
	if p == nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Operator authentication required"))
	}
	ticket, err := auth.IssueTicket(c.UserContext(), s.redis, p.OperatorID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(auth.TicketTTL.Seconds()),
	})
}
