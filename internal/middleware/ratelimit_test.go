package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRateLimiter_DisabledOutsideProduction(t *testing.T) {
	for _, env := range []string{"", "development", "test", "stress"} {
		l := NewRateLimiter(nil, env)
		d, err := l.Allow(context.Background(), StatusRule, "ip:1.2.3.4")
		require.NoError(t, err, env)
		assert.True(t, d.Allowed, env)
	}
}

func TestRateLimiter_NoRedisInProduction(t *testing.T) {
	_, err := NewRateLimiter(nil, "production").Allow(context.Background(), StatusRule, "ip:1.2.3.4")
	assert.ErrorIs(t, err, errNoRedis)
}

func TestRateLimiter_CountsWithinWindow(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	l := NewRateLimiter(rdb, "production")
	rule := Rule{Name: "check_status", Limit: 3, Window: time.Minute}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, rule, "ip:1.2.3.4")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i+1)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d, err := l.Allow(ctx, rule, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Zero(t, d.Remaining)
	assert.Greater(t, d.ResetIn, time.Duration(0))
	assert.Greater(t, mr.TTL("rl:check_status:ip:1.2.3.4"), time.Duration(0))

	// other subjects have their own window
	d, err = l.Allow(ctx, rule, "ip:5.6.7.8")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	mr.FastForward(time.Minute + time.Second)
	d, err = l.Allow(ctx, rule, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestLimit_KeysByOperatorAndSetsHeaders(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	l := NewRateLimiter(rdb, "production")

	app := fiber.New()
	app.Get("/ops", func(c *fiber.Ctx) error {
		c.Locals(LocalOperatorID, uint(4))
		return c.Next()
	}, l.Limit(Rule{Name: "id_card", Limit: 1, Window: time.Minute}), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ops", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))
	_ = resp.Body.Close()

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/ops", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderRetryAfter))
	_ = resp.Body.Close()

	assert.True(t, mr.Exists("rl:id_card:operator:4"))
}

func TestLimit_StoreFailurePolicy(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		want int
	}{
		{"fail open", StatusRule, http.StatusOK},
		{"fail closed", LoginRule, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewRateLimiter(nil, "production")
			app := fiber.New()
			app.Get("/x", l.Limit(tt.rule), func(c *fiber.Ctx) error {
				return c.SendStatus(fiber.StatusOK)
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/x", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
			_ = resp.Body.Close()
		})
	}
}
