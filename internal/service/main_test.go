package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"buspass/internal/cache"
	"buspass/internal/database"
	"buspass/internal/notifications"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

// setupRedis points the shared cache client at a fresh miniredis for the test.
func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(rdb)
	t.Cleanup(func() {
		cache.SetClient(nil)
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notifications.ReviewEvent
	err    error
}

func (p *recordingPublisher) PublishReviewEvent(_ context.Context, ev notifications.ReviewEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Events() []notifications.ReviewEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notifications.ReviewEvent(nil), p.events...)
}
