// Package cache holds the shared Redis client and the cache-aside helper used
// for public status lookups.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"buspass/internal/observability"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

var client *redis.Client

// errorCounter feeds buspass_redis_error_rate_total. redis.Nil is a miss, not an error.
type errorCounter struct{}

func (errorCounter) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			observability.RedisErrorRate.WithLabelValues("dial").Inc()
		}
		return conn, err
	}
}

func (errorCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		countError(cmd.Name(), err)
		return err
	}
}

func (errorCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		countError("pipeline", err)
		return err
	}
}

func countError(op string, err error) {
	if err != nil && !errors.Is(err, redis.Nil) {
		observability.RedisErrorRate.WithLabelValues(op).Inc()
	}
}

func options(addr string) (*redis.Options, error) {
	if !strings.Contains(addr, "://") {
		return &redis.Options{Addr: addr}, nil
	}
	opts, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	return opts, nil
}

// Connect dials Redis at addr, either host:port or a redis:// URL, and
// checks it answers PING.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	opts, err := options(addr)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opts)
	c.AddHook(errorCounter{})

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return c, nil
}

// Open connects and installs the shared client. When Redis is unreachable it
// logs and returns nil: status caching, rate limits and the review feed are
// then off while the rest of the API keeps working.
func Open(ctx context.Context, addr string) *redis.Client {
	c, err := Connect(ctx, addr)
	if err != nil {
		observability.GlobalLogger.WarnContext(ctx, "redis unavailable, continuing without it",
			slog.String("error", err.Error()))
		client = nil
		return nil
	}
	observability.GlobalLogger.InfoContext(ctx, "redis connected", slog.String("addr", c.Options().Addr))
	client = c
	return c
}

// GetClient returns the shared client, nil when Redis is not in use.
func GetClient() *redis.Client {
	return client
}

// SetClient installs an already connected client, e.g. a miniredis one in tests.
func SetClient(c *redis.Client) {
	if c != nil {
		c.AddHook(errorCounter{})
	}
	client = c
}
