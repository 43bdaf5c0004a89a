package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheetops/lifecycled/pkg/config"
	"github.com/sheetops/lifecycled/pkg/dispatch"
	"github.com/sheetops/lifecycled/pkg/engine"
	"github.com/sheetops/lifecycled/pkg/gateways"
	"github.com/sheetops/lifecycled/pkg/logger"
	"github.com/sheetops/lifecycled/pkg/metrics"
	"github.com/sheetops/lifecycled/pkg/registry"
	"github.com/sheetops/lifecycled/pkg/sweep"
	"github.com/sheetops/lifecycled/pkg/types"
)

type apiFixture struct {
	server   *Server
	store    *registry.MemoryStore
	notifier *gateways.MemoryNotifier
}

func setupServer(t *testing.T, cfg *config.Config) *apiFixture {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cfg.LogLevel = "error"

	store := registry.NewMemoryStore()
	notifier := gateways.NewMemoryNotifier()
	scheduler := gateways.NewMemoryScheduler()
	log := logger.NewTestLogger()
	testMetrics := metrics.NewTestMetrics()

	dispatcher := dispatch.NewDefaultDispatcher(store, notifier, scheduler, log, testMetrics)
	sweeper := sweep.NewSweeper(store, dispatcher, sweep.NewLocalLock(), log, testMetrics, time.Minute, types.DefaultStaleDays)
	eng := engine.New(store, dispatcher, sweeper, log, testMetrics)

	return &apiFixture{
		server:   NewServer(eng, store, cfg, log),
		store:    store,
		notifier: notifier,
	}
}

func (f *apiFixture) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	f := setupServer(t, nil)
	rec := f.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AuthToken = "secret"
	f := setupServer(t, cfg)

	rec := f.do(http.MethodGet, "/api/v1/users", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/users", nil, map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/users", nil, map[string]string{"Authorization": "Bearer secret"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health stays open.
	rec = f.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth_DisabledWhenNoToken(t *testing.T) {
	f := setupServer(t, nil)
	rec := f.do(http.MethodGet, "/api/v1/users", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEdit_NewUserFlow(t *testing.T) {
	f := setupServer(t, nil)

	// Seed the row directly, then announce the final edit over the API.
	ctx := context.Background()
	require.NoError(t, f.store.SetUserField(ctx, 2, types.ColName, "Laura"))
	require.NoError(t, f.store.SetUserField(ctx, 2, types.ColEmail, "laura@example.com"))
	require.NoError(t, f.store.SetUserField(ctx, 2, types.ColRole, "Editor"))
	require.NoError(t, f.store.SetUserField(ctx, 2, types.ColGroup, "Sales"))

	rec := f.do(http.MethodPost, "/api/v1/edits", EditRequest{Row: 2, Column: int(types.ColGroup), NewValue: "Sales"}, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	users, err := f.store.GetUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.NotNil(t, users[0].DateRegistered)
	assert.Len(t, f.notifier.Sent(), 1)
}

func TestEdit_BadRequest(t *testing.T) {
	f := setupServer(t, nil)

	rec := f.do(http.MethodPost, "/api/v1/edits", map[string]interface{}{"row": 0, "column": 3}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/edits", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.server.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSweepEndpoint(t *testing.T) {
	f := setupServer(t, nil)

	rec := f.do(http.MethodPost, "/api/v1/sweep", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "completed")
}

func TestSweepEndpoint_Failure(t *testing.T) {
	f := setupServer(t, nil)
	f.store.DropSheet(types.SheetConfig)

	rec := f.do(http.MethodPost, "/api/v1/sweep", nil, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListUsers(t *testing.T) {
	f := setupServer(t, nil)
	ctx := context.Background()
	require.NoError(t, f.store.SetUserField(ctx, 2, types.ColName, "Ana"))
	require.NoError(t, f.store.SetUserField(ctx, 2, types.ColEmail, "ana@example.com"))
	require.NoError(t, f.store.SetUserField(ctx, 3, types.ColName, "Bruno"))

	rec := f.do(http.MethodGet, "/api/v1/users", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp UsersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, "Ana", resp.Users[0].Name)
}

func TestListAudit(t *testing.T) {
	f := setupServer(t, nil)
	for i := 0; i < 3; i++ {
		require.NoError(t, f.store.AppendAudit(context.Background(), types.NewAuditEvent(types.AuditUserAdded, "System", "added", types.StatusOK, "None")))
	}

	rec := f.do(http.MethodGet, "/api/v1/audit?limit=2", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AuditResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)

	rec = f.do(http.MethodGet, "/api/v1/audit?limit=-1", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
