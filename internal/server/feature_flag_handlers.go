package server

import (
	"buspass/internal/featureflags"
	"buspass/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type featureFlagsResponse struct {
	Flags []featureflags.State `json:"flags"`
}

// GetFeatureFlags lists every flag as it evaluates for the calling operator.
// @Summary Feature flags for the caller
// @Description Configured and known flags with their setting, rollout percentage and result for the signed-in operator
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} featureFlagsResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /admin/feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	subject := ""
	if p := middleware.PrincipalFrom(c); p != nil {
		subject = p.Username
	}
	return c.JSON(featureFlagsResponse{Flags: s.featureFlags.States(subject)})
}
