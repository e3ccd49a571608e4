package repository

import (
	"context"
	"testing"

	"buspass/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperatorRepository(t *testing.T) {
	db := setupSQLite(t)
	repo := NewOperatorRepository(db)
	ctx := context.Background()

	op := &models.Operator{Username: "principal", PasswordHash: "hash", DisplayName: "Principal", IsActive: true}
	require.NoError(t, repo.Create(ctx, op))
	require.NotZero(t, op.ID)

	err := repo.Create(ctx, &models.Operator{Username: "principal", PasswordHash: "other"})
	assert.True(t, models.IsCode(err, models.CodeDuplicateKey))

	byName, err := repo.GetByUsername(ctx, "principal")
	require.NoError(t, err)
	assert.Equal(t, op.ID, byName.ID)

	byID, err := repo.GetByID(ctx, op.ID)
	require.NoError(t, err)
	assert.Nil(t, byID.LastLoginAt)

	require.NoError(t, repo.TouchLogin(ctx, op.ID))
	byID, err = repo.GetByID(ctx, op.ID)
	require.NoError(t, err)
	assert.NotNil(t, byID.LastLoginAt)

	require.NoError(t, repo.SetActive(ctx, "principal", false))
	byID, err = repo.GetByID(ctx, op.ID)
	require.NoError(t, err)
	assert.False(t, byID.IsActive)

	assert.True(t, models.IsCode(repo.SetActive(ctx, "ghost", true), models.CodeNotFound))
	_, err = repo.GetByUsername(ctx, "ghost")
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSupportRepository(t *testing.T) {
	db := setupSQLite(t)
	repo := NewSupportRepository(db)
	ctx := context.Background()

	first := &models.SupportQuery{Name: "A", Email: "a@example.com", Category: models.SupportHelpdesk, Message: "Where is my pass?"}
	second := &models.SupportQuery{Name: "B", Email: "b@example.com", Category: models.SupportGrievances, Message: "Rejected unfairly", ApplicationNo: "APP-1"}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	all, total, err := repo.List(ctx, SupportFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	grievances, total, err := repo.List(ctx, SupportFilter{Category: models.SupportGrievances})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "APP-1", grievances[0].ApplicationNo)

	resolved, err := repo.Resolve(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)
	assert.NotNil(t, resolved.ResolvedAt)

	again, err := repo.Resolve(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, resolved.ResolvedAt.Unix(), again.ResolvedAt.Unix())

	open := false
	unresolved, total, err := repo.List(ctx, SupportFilter{Resolved: &open})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, second.ID, unresolved[0].ID)

	_, err = repo.Resolve(ctx, 9999)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}
