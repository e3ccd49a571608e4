package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"buspass/internal/models"
	"buspass/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Rule is a fixed-window limit on one route family.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
	// FailClosed answers 503 when Redis cannot be reached instead of letting
	// the request through.
	FailClosed bool
}

// Route limits for the public and operator API.
var (
	SubmitRule  = Rule{Name: "submit_application", Limit: 5, Window: 10 * time.Minute}
	StatusRule  = Rule{Name: "check_status", Limit: 30, Window: time.Minute}
	SupportRule = Rule{Name: "support", Limit: 5, Window: 10 * time.Minute}
	LoginRule   = Rule{Name: "login", Limit: 10, Window: 5 * time.Minute, FailClosed: true}
	IDCardRule  = Rule{Name: "id_card", Limit: 30, Window: time.Minute}
)

var errNoRedis = errors.New("rate limit store not configured")

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

// RateLimiter counts requests per rule and subject in Redis.
type RateLimiter struct {
	rdb     *redis.Client
	enabled bool
}

// NewRateLimiter returns a limiter backed by rdb. Limits are not enforced in
// development, test and stress environments.
func NewRateLimiter(rdb *redis.Client, env string) *RateLimiter {
	switch env {
	case "", "development", "test", "stress":
		return &RateLimiter{rdb: rdb}
	}
	return &RateLimiter{rdb: rdb, enabled: true}
}

func rateKey(rule Rule, subject string) string {
	return "rl:" + rule.Name + ":" + subject
}

// Allow counts one request by subject against rule.
func (l *RateLimiter) Allow(ctx context.Context, rule Rule, subject string) (Decision, error) {
	if !l.enabled {
		return Decision{Allowed: true, Remaining: rule.Limit}, nil
	}
	if l.rdb == nil {
		return Decision{}, errNoRedis
	}

	key := rateKey(rule, subject)
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := l.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		ttl = p.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return Decision{}, err
	}

	count := incr.Val()
	reset := ttl.Val()
	if count == 1 || reset < 0 {
		if err := l.rdb.PExpire(ctx, key, rule.Window).Err(); err != nil {
			return Decision{}, err
		}
		reset = rule.Window
	}

	remaining := rule.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: count <= int64(rule.Limit), Remaining: remaining, ResetIn: reset}, nil
}

// rateSubject is the signed-in operator when there is one, the client IP otherwise.
func rateSubject(c *fiber.Ctx) string {
	if id := c.Locals(LocalOperatorID); id != nil {
		return fmt.Sprintf("operator:%v", id)
	}
	return "ip:" + c.IP()
}

// Limit enforces rule on a route.
func (l *RateLimiter) Limit(rule Rule) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		d, err := l.Allow(ctx, rule, rateSubject(c))
		if err != nil {
			if !rule.FailClosed {
				return c.Next()
			}
			observability.GlobalLogger.WarnContext(ctx, "rate limit store unavailable, refusing request",
				slog.String("rule", rule.Name), slog.String("error", err.Error()))
			return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
				Error: "rate limit unavailable",
				Code:  "RATE_LIMIT_UNAVAILABLE",
			})
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int((d.ResetIn+time.Second-1)/time.Second)))
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "too many requests, try again later",
				Code:  "RATE_LIMITED",
			})
		}
		return c.Next()
	}
}
