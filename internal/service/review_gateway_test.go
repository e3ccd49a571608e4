package service

import (
	"context"
	"testing"
	"time"

	"buspass/internal/auth"
	"buspass/internal/idcard"
	"buspass/internal/models"
	"buspass/internal/repository"
	"buspass/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gatewayFixture struct {
	repo      *testutil.ApplicationRepoStub
	store     *testutil.MemoryStore
	operators repository.OperatorRepository
	gateway   *ReviewGateway
	operator  *auth.Principal
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	repo := testutil.NewApplicationRepoStub()
	store := testutil.NewMemoryStore()
	operators := repository.NewOperatorRepository(setupSQLite(t))

	op := &models.Operator{Username: "principal", PasswordHash: "x", IsActive: true}
	require.NoError(t, operators.Create(context.Background(), op))

	lifecycle := NewLifecycleService(repo, nil)
	credentials := NewCredentialService(repo, store, nil).WithRenderer(idcard.Renderer{})
	return &gatewayFixture{
		repo:      repo,
		store:     store,
		operators: operators,
		gateway:   NewReviewGateway(lifecycle, credentials, NewDocumentService(repo, store), operators),
		operator:  &auth.Principal{OperatorID: op.ID, Username: op.Username},
	}
}

func TestGateway_OperatorOperationsRequirePrincipal(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	seedApplication(t, f.repo, "APP-7001")

	for name, p := range map[string]*auth.Principal{
		"anonymous":        nil,
		"zero operator":    {},
		"unknown operator": {OperatorID: 999},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.gateway.Approve(ctx, p, "APP-7001")
			assert.True(t, models.IsCode(err, models.CodeUnauthorized), "approve: %v", err)
			_, err = f.gateway.Reject(ctx, p, "APP-7001", string(models.ReasonPhotoNotClear))
			assert.True(t, models.IsCode(err, models.CodeUnauthorized), "reject: %v", err)
			_, err = f.gateway.ListAll(ctx, p, repository.ApplicationFilter{})
			assert.True(t, models.IsCode(err, models.CodeUnauthorized), "list: %v", err)
			_, err = f.gateway.GenerateCredential(ctx, p, "APP-7001")
			assert.True(t, models.IsCode(err, models.CodeUnauthorized), "credential: %v", err)
			_, err = f.gateway.Document(ctx, p, "APP-7001", models.DocumentPhoto, false)
			assert.True(t, models.IsCode(err, models.CodeUnauthorized), "document: %v", err)
		})
	}

	got, err := f.repo.GetByApplicationNo(ctx, "APP-7001")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status, "unauthorized calls leave the record untouched")
}

func TestGateway_DisabledOperatorIsUnauthorized(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	seedApplication(t, f.repo, "APP-7002")
	require.NoError(t, f.operators.SetActive(ctx, "principal", false))

	_, err := f.gateway.Approve(ctx, f.operator, "APP-7002")
	assert.True(t, models.IsCode(err, models.CodeUnauthorized))
}

func TestGateway_CheckStatusIsAnonymous(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	seedApplication(t, f.repo, "APP-1001")

	_, err := f.gateway.Reject(ctx, f.operator, "APP-1001", "Photo not clear")
	require.NoError(t, err)

	view, err := f.gateway.CheckStatus(ctx, " APP-1001 ")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, view.Status)
	assert.Equal(t, models.ReasonPhotoNotClear, view.RejectionReason)

	_, err = f.gateway.Approve(ctx, f.operator, "APP-1001")
	assert.True(t, models.IsCode(err, models.CodeInvalidTransition))

	_, err = f.gateway.CheckStatus(ctx, "APP-404")
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	_, err = f.gateway.CheckStatus(ctx, "  ")
	assert.True(t, models.IsCode(err, models.CodeValidation))
}

func TestGateway_CheckStatusCacheIsRefreshedOnDecision(t *testing.T) {
	mr, _ := setupRedis(t)
	f := newGatewayFixture(t)
	ctx := context.Background()
	seedApplication(t, f.repo, "APP-7003")

	view, err := f.gateway.CheckStatus(ctx, "APP-7003")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, view.Status)
	assert.True(t, mr.Exists("status:APP-7003"))

	_, err = f.gateway.Approve(ctx, f.operator, "APP-7003")
	require.NoError(t, err)

	view, err = f.gateway.CheckStatus(ctx, "APP-7003")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, view.Status)
}

// decideAfterRead commits a decision right after the status lookup has read
// the record and before the lookup writes the cache.
type decideAfterRead struct {
	repository.ApplicationRepository
	decide func()
}

func (r *decideAfterRead) GetByApplicationNo(ctx context.Context, no string) (*models.ApplicationRecord, error) {
	rec, err := r.ApplicationRepository.GetByApplicationNo(ctx, no)
	if r.decide != nil {
		decide := r.decide
		r.decide = nil
		decide()
	}
	return rec, err
}

func TestGateway_DecisionDuringStatusLookupIsNotHidden(t *testing.T) {
	mr, _ := setupRedis(t)
	ctx := context.Background()
	repo := testutil.NewApplicationRepoStub()
	seedApplication(t, repo, "APP-7010")

	reviewer := NewLifecycleService(repo, nil)
	slow := &decideAfterRead{ApplicationRepository: repo}
	slow.decide = func() {
		_, err := reviewer.Approve(ctx, ApproveInput{ApplicationNo: "APP-7010", OperatorID: 1})
		require.NoError(t, err)
	}
	gateway := NewReviewGateway(NewLifecycleService(slow, nil), nil, nil, nil)

	view, err := gateway.CheckStatus(ctx, "app-7010")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, view.Status, "this lookup read before the decision")

	cached, err := mr.Get("status:APP-7010")
	require.NoError(t, err)
	assert.Contains(t, cached, string(models.StatusApproved))

	view, err = gateway.CheckStatus(ctx, "APP-7010")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, view.Status)
}

func TestGateway_ListAllNewestFirstAndFiltered(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	base := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	for i, no := range []string{"APP-A1", "APP-A2", "APP-A3"} {
		rec := testutil.NewApplication(no)
		rec.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, f.repo.Create(ctx, rec))
	}
	_, err := f.gateway.Approve(ctx, f.operator, "APP-A2")
	require.NoError(t, err)

	all, err := f.gateway.ListAll(ctx, f.operator, repository.ApplicationFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Total)
	require.Len(t, all.Items, 3)
	assert.Equal(t, "APP-A3", all.Items[0].ApplicationNo)
	assert.Equal(t, "APP-A1", all.Items[2].ApplicationNo)

	approved, err := f.gateway.ListAll(ctx, f.operator, repository.ApplicationFilter{Status: models.StatusApproved})
	require.NoError(t, err)
	assert.Equal(t, int64(1), approved.Total)
	assert.Equal(t, "APP-A2", approved.Items[0].ApplicationNo)

	summary, err := f.gateway.Summary(ctx, f.operator)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary[models.StatusPending])
}

func TestGateway_GenerateCredentialAndDocuments(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	rec := seedApplication(t, f.repo, "APP-7004")
	require.NoError(t, f.store.Put(ctx, rec.PhotoRef, "image/jpeg", testutil.TinyJPEG(t, 70, 80)))
	require.NoError(t, f.store.Put(ctx, PreviewKey(rec.PhotoRef), "image/webp", testutil.TinyWebP(t, 70, 80)))
	require.NoError(t, f.store.Put(ctx, DefaultSealKey, "image/png", testutil.TinyPNG(t, 40, 40)))
	require.NoError(t, f.store.Put(ctx, DefaultSignatureKey, "image/png", testutil.TinyPNG(t, 50, 20)))

	_, err := f.gateway.GenerateCredential(ctx, f.operator, "APP-7004")
	assert.True(t, models.IsCode(err, models.CodeNotEligible))

	_, err = f.gateway.Approve(ctx, f.operator, "APP-7004")
	require.NoError(t, err)
	cred, err := f.gateway.GenerateCredential(ctx, f.operator, "APP-7004")
	require.NoError(t, err)
	assert.Contains(t, string(cred.Data), "APP-7004")

	photo, err := f.gateway.Document(ctx, f.operator, "APP-7004", models.DocumentPhoto, false)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", photo.ContentType)
	assert.Equal(t, "APP-7004-photo.jpg", photo.Filename)

	preview, err := f.gateway.Document(ctx, f.operator, "APP-7004", models.DocumentPhoto, true)
	require.NoError(t, err)
	assert.Equal(t, "image/webp", preview.ContentType)

	_, err = f.gateway.Document(ctx, f.operator, "APP-7004", models.DocumentBonafide, true)
	assert.True(t, models.IsCode(err, models.CodeValidation))

	_, err = f.gateway.Document(ctx, f.operator, "APP-7004", models.DocumentBonafide, false)
	assert.True(t, models.IsCode(err, models.CodeNotFound), "reference on file but object never stored")
}
