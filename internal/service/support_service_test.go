package service

import (
	"context"
	"testing"

	"buspass/internal/models"
	"buspass/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupportService(t *testing.T) {
	svc := NewSupportService(repository.NewSupportRepository(setupSQLite(t)))
	ctx := context.Background()

	q, err := svc.Submit(ctx, SupportInput{
		Name:          " Asha ",
		Email:         "Asha@Example.com",
		ApplicationNo: "app-1001",
		Category:      "grievances",
		Message:       "My application was rejected for the photo.",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SupportGrievances, q.Category)
	assert.Equal(t, "APP-1001", q.ApplicationNo)
	assert.Equal(t, "asha@example.com", q.Email)

	_, err = svc.Submit(ctx, SupportInput{Name: "A", Email: "a@example.com", Category: "Complaints", Message: "hi"})
	assert.True(t, models.IsCode(err, models.CodeValidation))
	_, err = svc.Submit(ctx, SupportInput{Name: "A", Email: "a@example.com", Category: "Helpdesk"})
	assert.True(t, models.IsCode(err, models.CodeValidation))

	items, total, err := svc.List(ctx, repository.SupportFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, q.ID, items[0].ID)

	resolved, err := svc.Resolve(ctx, q.ID)
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)

	_, err = svc.Resolve(ctx, 0)
	assert.True(t, models.IsCode(err, models.CodeValidation))
}
