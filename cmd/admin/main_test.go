package main

import (
	"context"
	"testing"

	"buspass/internal/database"
	"buspass/internal/repository"
	"buspass/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const operatorsYAML = `
operators:
  - username: principal
    password: Correct-Horse-42
    display_name: Principal
  - username: Clerk
    password: Another-Strong-7
    email: clerk@college.example
`

func TestParseOperatorFile(t *testing.T) {
	entries, err := parseOperatorFile([]byte(operatorsYAML))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Principal", entries[0].DisplayName)
	assert.Equal(t, "clerk@college.example", entries[1].Email)

	_, err = parseOperatorFile([]byte("operators:\n  - username: nopass\n"))
	assert.Error(t, err)

	_, err = parseOperatorFile([]byte("operators: [unterminated"))
	assert.Error(t, err)
}

func TestSeedOperatorsIsIdempotent(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:admin_seed?mode=memory&cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))

	entries, err := parseOperatorFile([]byte(operatorsYAML))
	require.NoError(t, err)

	ctx := context.Background()
	repo := repository.NewOperatorRepository(db)
	operators := service.NewOperatorService(repo, nil)

	created, skipped, err := seedOperators(ctx, repo, operators, entries)
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	assert.Equal(t, 0, skipped)

	created, skipped, err = seedOperators(ctx, repo, operators, entries)
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Equal(t, 2, skipped)

	clerk, err := repo.GetByUsername(ctx, "clerk")
	require.NoError(t, err)
	assert.True(t, clerk.IsActive)
}
