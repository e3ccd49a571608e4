package middleware

import (
	"log/slog"
	"strings"
	"time"

	"buspass/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// ContextMiddleware copies the request id and trace id from Fiber locals into
// the user context so that service and repository logs carry them. The
// operator id is added later by SetPrincipal.
func ContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			ctx = observability.WithRequestID(ctx, rid)
		}
		if tid, ok := c.Locals(LocalTraceID).(string); ok && tid != "" {
			ctx = observability.WithTraceID(ctx, tid)
		}
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// quietPaths are polled by health checkers and scrapers and only logged on failure.
var quietPaths = []string{"/health", "/metrics"}

// StructuredLogger writes one record per request: info for success, warn for
// client errors, error for server errors.
func StructuredLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		if status < fiber.StatusBadRequest && isQuiet(c.Path()) {
			return err
		}

		attrs := []slog.Attr{
			slog.Int("status", status),
			slog.String("method", c.Method()),
			slog.String("route", c.Route().Path),
			slog.String("path", c.Path()),
			slog.String("ip", c.IP()),
			slog.Duration("latency", time.Since(start)),
		}
		if no := c.Params("applicationNo"); no != "" {
			attrs = append(attrs, slog.String("application_no", strings.ToUpper(no)))
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}

		level := slog.LevelInfo
		switch {
		case status >= fiber.StatusInternalServerError:
			level = slog.LevelError
		case status >= fiber.StatusBadRequest:
			level = slog.LevelWarn
		}
		observability.GlobalLogger.LogAttrs(c.UserContext(), level, "request", attrs...)
		return err
	}
}

func isQuiet(path string) bool {
	for _, p := range quietPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
