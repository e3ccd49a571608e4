package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

const readinessTimeout = 3 * time.Second

// Check results reported by /health/ready.
const (
	checkOK       = "ok"
	checkDown     = "down"
	checkDisabled = "disabled"
	checkMissing  = "missing"
)

// LivenessCheck answers as long as the process serves HTTP.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": checkOK, "time": time.Now().UTC()})
}

// ReadinessCheck reports whether applications can be taken and reviewed.
// The database is required. Redis is optional, but a configured Redis that
// stops answering fails the check. Missing card assets only affect ID cards
// and are reported without failing.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	checks := fiber.Map{
		"database":    s.databaseCheck(ctx),
		"redis":       s.redisCheck(ctx),
		"card_assets": s.cardAssetsCheck(ctx),
	}

	status := fiber.StatusOK
	overall := checkOK
	if checks["database"] != checkOK || checks["redis"] == checkDown {
		status = fiber.StatusServiceUnavailable
		overall = checkDown
	}
	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": checks,
		"time":   time.Now().UTC(),
	})
}

func (s *Server) databaseCheck(ctx context.Context) string {
	sqlDB, err := s.db.DB()
	if err != nil || sqlDB.PingContext(ctx) != nil {
		return checkDown
	}
	return checkOK
}

func (s *Server) redisCheck(ctx context.Context) string {
	if s.redis == nil {
		return checkDisabled
	}
	if s.redis.Ping(ctx).Err() != nil {
		return checkDown
	}
	return checkOK
}

func (s *Server) cardAssetsCheck(ctx context.Context) string {
	if s.credentials == nil || s.credentials.CheckAssets(ctx) != nil {
		return checkMissing
	}
	return checkOK
}
