package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"buspass/internal/cache"
	"buspass/internal/config"
	"buspass/internal/database"
	"buspass/internal/models"
	"buspass/internal/service"
	"buspass/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var pdfBody = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")

const (
	testOperator = "principal"
	testPassword = "Correct-Horse-42"
)

type testEnv struct {
	server *Server
	app    *fiber.App
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	store  *testutil.MemoryStore
}

// newTestEnv builds a Server over in-memory SQLite, miniredis and a memory
// store holding the card seal and signature. The shared cache client points
// at the same miniredis, so tests using it must not run in parallel.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:srv_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(rdb)

	store := testutil.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, service.DefaultSealKey, "image/png", testutil.TinyPNG(t, 40, 40)))
	require.NoError(t, store.Put(ctx, service.DefaultSignatureKey, "image/png", testutil.TinyPNG(t, 50, 20)))

	cfg := &config.Config{
		JWTSecret:           "server-test-secret-with-entropy",
		TokenTTLHours:       1,
		Port:                "0",
		DocumentMaxUploadMB: 2,
	}
	s, err := NewServerWithDeps(cfg, db, rdb, store)
	require.NoError(t, err)

	_, err = s.operators.Create(ctx, service.CreateOperatorInput{
		Username: testOperator,
		Password: testPassword,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		cache.SetClient(nil)
		_ = rdb.Close()
		mr.Close()
		_ = sqlDB.Close()
	})

	return &testEnv{server: s, app: s.App(), mr: mr, rdb: rdb, store: store}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	body := fmt.Sprintf(`{"username":%q,"password":%q}`, testOperator, testPassword)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := e.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Token string `json:"token"`
	}
	decodeJSON(t, resp, &out)
	require.NotEmpty(t, out.Token)
	return out.Token
}

// submit posts a multipart application and returns its number.
func (e *testEnv) submit(t *testing.T, withBonafide bool) string {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	fields := map[string]string{
		"student_name":       "Asha Rao",
		"gender":             "Female",
		"personal_email":     "asha@example.com",
		"institution_type":   "College",
		"college_name":       "Riverside College",
		"college_department": "Physics",
		"college_year":       "2",
		"route_start":        "Central",
		"route_end":          "North Campus",
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	files := map[string][]byte{
		"photo":             testutil.TinyPNG(t, 160, 200),
		"identity_proof":    pdfBody,
		"institution_proof": testutil.TinyJPEG(t, 30, 20),
	}
	if withBonafide {
		files["bonafide"] = pdfBody
	}
	for name, content := range files {
		fw, err := w.CreateFormFile(name, name+".bin")
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/applications", buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp := e.do(t, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, readBody(t, resp))

	var out struct {
		ApplicationNo string `json:"application_no"`
		Status        string `json:"status"`
	}
	decodeJSON(t, resp, &out)
	require.Equal(t, string(models.StatusPending), out.Status)
	return out.ApplicationNo
}

func authed(method, target, token string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func decodeJSON(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body = io.NopCloser(bytes.NewReader(data))
	return string(data)
}
