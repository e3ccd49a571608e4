package bootstrap

import (
	"context"
	"testing"

	"buspass/internal/config"
	"buspass/internal/database"
	"buspass/internal/models"
	"buspass/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func operatorRepo(t *testing.T) repository.OperatorRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:bootstrap_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return repository.NewOperatorRepository(db)
}

func TestParseOperatorPairs(t *testing.T) {
	creds, err := parseOperatorPairs(" principal:Str0ng-Passw0rd!, clerk:a:b ,")
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, "principal", creds[0].username)
	assert.Equal(t, "a:b", creds[1].password)

	_, err = parseOperatorPairs("nopassword")
	assert.Error(t, err)
	_, err = parseOperatorPairs(":secret")
	assert.Error(t, err)
}

func TestEnsureDevOperators(t *testing.T) {
	repo := operatorRepo(t)
	ctx := context.Background()
	cfg := &config.Config{Env: "development", DevBootstrapOperators: "Principal:Str0ng-Passw0rd!"}

	require.NoError(t, EnsureDevOperators(ctx, cfg, repo))
	op, err := repo.GetByUsername(ctx, "principal")
	require.NoError(t, err)
	assert.True(t, op.IsActive)

	// second run keeps the existing account
	require.NoError(t, EnsureDevOperators(ctx, cfg, repo))
	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestEnsureDevOperators_SkippedInProduction(t *testing.T) {
	repo := operatorRepo(t)
	ctx := context.Background()
	cfg := &config.Config{Env: "production", DevBootstrapOperators: "principal:Str0ng-Passw0rd!"}

	require.NoError(t, EnsureDevOperators(ctx, cfg, repo))
	_, err := repo.GetByUsername(ctx, "principal")
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestEnsureDevOperators_WeakPassword(t *testing.T) {
	repo := operatorRepo(t)
	cfg := &config.Config{Env: "development", DevBootstrapOperators: "principal:short"}
	err := EnsureDevOperators(context.Background(), cfg, repo)
	assert.True(t, models.IsCode(err, models.CodeValidation), "got %v", err)
}
