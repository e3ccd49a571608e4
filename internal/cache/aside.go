package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"buspass/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	StatusKeyPrefix = "status:%s"
)

const (
	StatusTTL = 2 * time.Minute
)

// StatusKey is the cache key of the public status view of an application.
func StatusKey(applicationNo string) string {
	return fmt.Sprintf(StatusKeyPrefix, applicationNo)
}

// Aside implements cache-aside for JSON-serializable values: on a hit dest is
// filled from Redis, on a miss load fills dest and the result is stored for ttl.
// Without a Redis client load is called directly. Errors from load are never cached.
//
// The miss path writes with SETNX so that a value loaded before a concurrent
// Put never replaces what Put wrote.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, load func() error) error {
	if client == nil {
		return load()
	}

	ctx, span := observability.StartCacheSpan(ctx, "aside", key)
	defer span.End()

	raw, err := client.Get(ctx, key).Bytes()
	if err == nil {
		if jerr := json.Unmarshal(raw, dest); jerr == nil {
			observability.CacheLookups.WithLabelValues("hit").Inc()
			return nil
		}
		// Corrupt entry; drop it and fall through to the loader.
		client.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		observability.GlobalLogger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}

	observability.CacheLookups.WithLabelValues("miss").Inc()
	if err := load(); err != nil {
		return err
	}

	encoded, err := json.Marshal(dest)
	if err != nil {
		return nil
	}
	if err := client.SetNX(ctx, key, encoded, ttl).Err(); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return nil
}

// Put replaces the cached value at key. Writers that know the value changed
// use it so a concurrent Aside cannot restore the old value. If the write fails the key is dropped.
func Put(ctx context.Context, key string, value any, ttl time.Duration) {
	if client == nil {
		return
	}
	encoded, err := json.Marshal(value)
	if err == nil {
		err = client.Set(ctx, key, encoded, ttl).Err()
	}
	if err != nil {
		observability.GlobalLogger.WarnContext(ctx, "cache refresh failed, dropping key", slog.String("key", key), slog.String("error", err.Error()))
		client.Del(ctx, key)
	}
}
