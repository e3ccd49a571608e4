// Package middleware provides request-scoped logging, authentication, rate limiting and metrics middleware.
package middleware

import (
	"strings"

	"buspass/internal/auth"
	"buspass/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// Fiber locals written by the authentication layer.
const (
	LocalPrincipal  = "principal"
	LocalOperatorID = "operatorID"
)

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *fiber.Ctx) (string, bool) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// SetPrincipal records p in Fiber locals and in the user context so that both
// handlers and the context-aware logger see the operator.
func SetPrincipal(c *fiber.Ctx, p *auth.Principal) {
	c.Locals(LocalPrincipal, p)
	c.Locals(LocalOperatorID, p.OperatorID)
	ctx := auth.WithPrincipal(c.UserContext(), p)
	ctx = observability.WithOperatorID(ctx, p.OperatorID)
	c.SetUserContext(ctx)
}

// PrincipalFrom returns the Principal set by SetPrincipal, or nil for anonymous requests.
func PrincipalFrom(c *fiber.Ctx) *auth.Principal {
	p, _ := c.Locals(LocalPrincipal).(*auth.Principal)
	return p
}
