package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"buspass/internal/auth"
	"buspass/internal/featureflags"
	"buspass/internal/models"
	"buspass/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecks(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ready struct {
		Checks map[string]string `json:"checks"`
	}
	decodeJSON(t, resp, &ready)
	assert.Equal(t, map[string]string{"database": "ok", "redis": "ok", "card_assets": "ok"}, ready.Checks)

	require.NoError(t, env.store.Delete(context.Background(), service.DefaultSealKey))
	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode, "missing seal only affects ID cards")
	decodeJSON(t, resp, &ready)
	assert.Equal(t, "missing", ready.Checks["card_assets"])

	env.mr.Close()
	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRejectionReasonsArePublic(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/api/rejection-reasons", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var reasons []string
	decodeJSON(t, resp, &reasons)
	require.Len(t, reasons, len(models.RejectionReasons()))
	assert.Contains(t, reasons, string(models.ReasonPhotoNotClear))
}

func TestApplicationReviewFlow(t *testing.T) {
	env := newTestEnv(t)
	no := env.submit(t, true)

	// Applicants check status anonymously, by path or by body.
	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/api/applications/"+no+"/status", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view service.StatusView
	decodeJSON(t, resp, &view)
	assert.Equal(t, models.StatusPending, view.Status)

	resp = env.do(t, authed(http.MethodPost, "/api/applications/status", "", strings.NewReader(`{"applicationNo":"`+no+`"}`)))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Operator operations require a token.
	resp = env.do(t, authed(http.MethodPost, "/api/admin/applications/"+no+"/approve", "", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token := env.login(t)

	resp = env.do(t, authed(http.MethodGet, "/api/admin/applications/"+no, token, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var detail struct {
		Status      models.ApplicationStatus `json:"status"`
		Institution map[string]any           `json:"institution"`
		Documents   map[string]bool          `json:"documents"`
	}
	decodeJSON(t, resp, &detail)
	assert.Equal(t, "Riverside College", detail.Institution["name"])
	assert.True(t, detail.Documents["bonafide"])

	resp = env.do(t, authed(http.MethodPost, "/api/admin/applications/"+no+"/approve", token, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode, readBody(t, resp))

	resp = env.do(t, authed(http.MethodGet, "/api/admin/applications/"+no+"/id-card", token, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode, readBody(t, resp))
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Equal(t, "attachment; filename=BusPass-ID.pdf", resp.Header.Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(readBody(t, resp), "%PDF-"))

	// Approved is terminal.
	resp = env.do(t, authed(http.MethodPost, "/api/admin/applications/"+no+"/reject", token,
		strings.NewReader(`{"reason":"`+string(models.ReasonPhotoNotClear)+`"}`)))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/api/applications/"+no+"/status", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeJSON(t, resp, &view)
	assert.Equal(t, models.StatusApproved, view.Status)
}

func TestRejectedApplicationHasNoCard(t *testing.T) {
	env := newTestEnv(t)
	no := env.submit(t, true)
	token := env.login(t)

	resp := env.do(t, authed(http.MethodGet, "/api/admin/applications/"+no+"/id-card", token, nil))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = env.do(t, authed(http.MethodPost, "/api/admin/applications/"+no+"/reject", token,
		strings.NewReader(`{"reason":"not in the catalog"}`)))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, authed(http.MethodPost, "/api/admin/applications/"+no+"/reject", token,
		strings.NewReader(`{"reason":"`+string(models.ReasonRouteNotServiceable)+`"}`)))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, authed(http.MethodPost, "/api/admin/applications/"+no+"/approve", token, nil))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.do(t, authed(http.MethodGet, "/api/admin/applications/"+no+"/id-card", token, nil))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var errResp models.ErrorResponse
	decodeJSON(t, resp, &errResp)
	assert.Equal(t, models.CodeNotEligible, errResp.Code)
}

func TestApproveWithoutBonafideIsIncomplete(t *testing.T) {
	env := newTestEnv(t)
	no := env.submit(t, false)
	token := env.login(t)

	resp := env.do(t, authed(http.MethodPost, "/api/admin/applications/"+no+"/approve", token, nil))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var errResp models.ErrorResponse
	decodeJSON(t, resp, &errResp)
	assert.Equal(t, models.CodeDocumentsIncomplete, errResp.Code)
}

func TestListAndDocuments(t *testing.T) {
	env := newTestEnv(t)
	first := env.submit(t, true)
	second := env.submit(t, true)
	token := env.login(t)

	resp := env.do(t, authed(http.MethodGet, "/api/admin/applications", token, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list service.ListResult
	decodeJSON(t, resp, &list)
	require.Len(t, list.Items, 2)
	assert.EqualValues(t, 2, list.Total)
	assert.ElementsMatch(t, []string{first, second}, []string{list.Items[0].ApplicationNo, list.Items[1].ApplicationNo})

	resp = env.do(t, authed(http.MethodGet, "/api/admin/applications?status=Approved", token, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeJSON(t, resp, &list)
	assert.Empty(t, list.Items)

	resp = env.do(t, authed(http.MethodGet, "/api/admin/applications?status=Lost", token, nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, authed(http.MethodGet, "/api/admin/applications/summary", token, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var counts map[string]int64
	decodeJSON(t, resp, &counts)
	assert.EqualValues(t, 2, counts[string(models.StatusPending)])

	resp = env.do(t, authed(http.MethodGet, "/api/admin/applications/"+first+"/documents/photo", token, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))

	resp = env.do(t, authed(http.MethodGet, "/api/admin/applications/"+first+"/documents/photo?format=webp", token, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/webp", resp.Header.Get("Content-Type"))

	resp = env.do(t, authed(http.MethodGet, "/api/admin/applications/"+first+"/documents/bonafide", token, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))

	resp = env.do(t, authed(http.MethodGet, "/api/admin/applications/"+first+"/documents/passport", token, nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnknownApplicationIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/api/applications/BP-00000000-000000/status", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, authed(http.MethodPost, "/api/admin/applications/BP-00000000-000000/approve", token, nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	resp := env.do(t, authed(http.MethodGet, "/api/auth/me", token, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me models.Operator
	decodeJSON(t, resp, &me)
	assert.Equal(t, testOperator, me.Username)

	resp = env.do(t, authed(http.MethodPost, "/api/auth/logout", token, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, authed(http.MethodGet, "/api/auth/me", token, nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginFailures(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []string{
		`{"username":"principal","password":"wrong-password-1"}`,
		`{"username":"nobody","password":"Correct-Horse-42"}`,
	} {
		resp := env.do(t, authed(http.MethodPost, "/api/auth/login", "", strings.NewReader(body)))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, body)
	}

	resp := env.do(t, authed(http.MethodPost, "/api/auth/login", "", strings.NewReader(`{"username":""}`)))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSupportQueries(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, authed(http.MethodPost, "/api/support", "",
		strings.NewReader(`{"name":"Ravi","email":"ravi@example.com","category":"Helpdesk","message":"Where is my pass?"}`)))
	require.Equal(t, http.StatusCreated, resp.StatusCode, readBody(t, resp))
	var q models.SupportQuery
	decodeJSON(t, resp, &q)

	resp = env.do(t, authed(http.MethodPost, "/api/support", "",
		strings.NewReader(`{"name":"Ravi","email":"ravi@example.com","category":"Complaints","message":"x"}`)))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	token := env.login(t)
	resp = env.do(t, authed(http.MethodGet, "/api/admin/support?resolved=false", token, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page struct {
		Items []models.SupportQuery `json:"items"`
		Total int64                 `json:"total"`
	}
	decodeJSON(t, resp, &page)
	require.Len(t, page.Items, 1)

	resp = env.do(t, authed(http.MethodPost, "/api/admin/support/"+strconv.FormatUint(uint64(q.ID), 10)+"/resolve", token, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, authed(http.MethodGet, "/api/admin/support?resolved=false", token, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeJSON(t, resp, &page)
	assert.Empty(t, page.Items)
}

func TestReviewFeedTicket(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	resp := env.do(t, authed(http.MethodPost, "/api/admin/ws/ticket", token, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Ticket string `json:"ticket"`
	}
	decodeJSON(t, resp, &out)
	require.NotEmpty(t, out.Ticket)

	// A redeemed ticket passes authentication; without an upgrade the
	// websocket handler answers 426.
	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/ws/reviews?ticket="+out.Ticket, nil))
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)

	// Tickets are single use.
	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/ws/reviews?ticket="+out.Ticket, nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Bearer tokens are not accepted on the feed.
	resp = env.do(t, authed(http.MethodGet, "/api/admin/ws/reviews", token, nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTicketForDisabledOperatorIsRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	op, err := env.server.operatorRepo.GetByUsername(ctx, testOperator)
	require.NoError(t, err)
	ticket, err := auth.IssueTicket(ctx, env.rdb, op.ID)
	require.NoError(t, err)
	require.NoError(t, env.server.operators.Deactivate(ctx, testOperator))

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/ws/reviews?ticket="+ticket, nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestFeatureFlags(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	resp := env.do(t, authed(http.MethodGet, "/api/admin/feature-flags", token, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Flags []featureflags.State `json:"flags"`
	}
	decodeJSON(t, resp, &out)
	names := make([]string, 0, len(out.Flags))
	for _, f := range out.Flags {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, featureflags.DecisionEmails)
	assert.Contains(t, names, featureflags.BacklogDigest)
}

func TestSwaggerDocListsAdminRoutes(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/api/swagger/doc.json", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc struct {
		Paths       map[string]any `json:"paths"`
		Definitions map[string]any `json:"definitions"`
	}
	decodeJSON(t, resp, &doc)
	for _, path := range []string{"/admin/feature-flags", "/admin/support", "/admin/ws/ticket"} {
		assert.Contains(t, doc.Paths, path)
	}
	assert.Contains(t, doc.Definitions, "featureflags.State")
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.NewNotFoundError("Application", "X"), http.StatusNotFound},
		{models.NewDuplicateKeyError("Application", "X"), http.StatusConflict},
		{models.NewInvalidTransitionError("X", models.StatusApproved, models.StatusRejected), http.StatusConflict},
		{models.NewNotEligibleError("X", models.StatusPending), http.StatusUnprocessableEntity},
		{models.NewAssetMissingError("photo", errors.New("gone")), http.StatusFailedDependency},
		{models.NewDocumentsIncompleteError([]string{"bonafide"}), http.StatusUnprocessableEntity},
		{models.NewUnauthorizedError("no"), http.StatusUnauthorized},
		{models.NewValidationError("bad"), http.StatusBadRequest},
		{models.NewInternalError(errors.New("db down")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusForError(tt.err), tt.err.Error())
	}
}

func TestRespondErrorHidesUncodedErrors(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return respondError(c, errors.New("dial tcp 10.0.0.1:5432: connection refused"))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := readBody(t, resp)
	assert.False(t, bytes.Contains([]byte(body), []byte("10.0.0.1")))
	assert.Contains(t, body, models.CodeInternal)
}
