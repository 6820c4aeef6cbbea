package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docindex-platform/internal/auth"
	"docindex-platform/internal/catalog"
	"docindex-platform/internal/lock"
	"docindex-platform/internal/progress"
	"docindex-platform/internal/queue"
	"docindex-platform/middleware"
	"docindex-platform/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeTokens struct{}

func (fakeTokens) Validate(_ context.Context, token string) (*auth.Claims, error) {
	switch token {
	case "admin":
		return &auth.Claims{UserID: "u-admin", Role: auth.RoleAdmin}, nil
	case "operator":
		return &auth.Claims{UserID: "u-op", Role: auth.RoleOperator}, nil
	}
	return nil, auth.ErrInvalidToken
}

type fakeGuard struct{ state models.LockState }

func (g *fakeGuard) Check(context.Context) models.LockState { return g.state }

type fakeStarter struct {
	calls int
	err   error
}

func (f *fakeStarter) Start(context.Context) (string, error) {
	f.calls++
	return "run-1", f.err
}

type fakeProgress struct {
	snap *models.ProgressSnapshot
	err  error
}

func (f fakeProgress) Latest(context.Context) (*models.ProgressSnapshot, error) { return f.snap, f.err }

type fakeRuns struct{ runs map[string]*models.ReindexRun }

func (f fakeRuns) Get(_ context.Context, id string) (*models.ReindexRun, error) {
	r, ok := f.runs[id]
	if !ok {
		return nil, queue.ErrRunNotFound
	}
	return r, nil
}

func (f fakeRuns) List(context.Context, int64) ([]models.ReindexRun, error) {
	var out []models.ReindexRun
	for _, r := range f.runs {
		out = append(out, *r)
	}
	return out, nil
}

type fakeCounter struct{ n int64 }

func (f *fakeCounter) Incr(context.Context, string) *redis.IntCmd {
	f.n++
	return redis.NewIntResult(f.n, nil)
}

func (f *fakeCounter) Expire(context.Context, string, time.Duration) *redis.BoolCmd {
	return redis.NewBoolResult(true, nil)
}

type fakeDocuments struct {
	err     error
	deleted []string
	queued  []string
}

func (f *fakeDocuments) Delete(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeDocuments) Enqueue(_ context.Context, id, op string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.queued = append(f.queued, id+":"+op)
	return "task-9", nil
}

type harness struct {
	router  *gin.Engine
	guard   *fakeGuard
	starter *fakeStarter
	docs    *fakeDocuments
	counter *fakeCounter
}

func newHarness(prog fakeProgress) *harness {
	h := &harness{
		router:  gin.New(),
		guard:   &fakeGuard{},
		starter: &fakeStarter{},
		docs:    &fakeDocuments{},
		counter: &fakeCounter{},
	}
	authMW := middleware.NewAuthMiddleware(fakeTokens{})
	SetupAdminRoutes(h.router, AdminDeps{
		Guard:      h.guard,
		Starter:    h.starter,
		Progress:   prog,
		Runs:       fakeRuns{runs: map[string]*models.ReindexRun{"run-1": {ID: "run-1", LastAction: "finalize"}}},
		Limiter:    h.counter,
		RateLimit:  2,
		RateWindow: time.Minute,
	}, authMW)
	SetupDocumentRoutes(h.router, h.docs, h.guard, nil, authMW)
	return h
}

func (h *harness) do(method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestStartReindex(t *testing.T) {
	h := newHarness(fakeProgress{})

	w := h.do(http.MethodPost, "/api/admin/reindex", "admin")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "run-1", decode(t, w)["run_id"])
	assert.Equal(t, 1, h.starter.calls)
}

func TestStartReindexRequiresAdmin(t *testing.T) {
	h := newHarness(fakeProgress{})

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/api/admin/reindex", "").Code)
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPost, "/api/admin/reindex", "operator").Code)
	assert.Zero(t, h.starter.calls)
}

func TestStartReindexConflictsWhileLocked(t *testing.T) {
	h := newHarness(fakeProgress{})
	h.guard.state = models.LockState{Locked: true, StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}

	w := h.do(http.MethodPost, "/api/admin/reindex", "admin")
	require.Equal(t, http.StatusConflict, w.Code)
	body := decode(t, w)
	assert.Equal(t, "reindex_in_progress", body["error_code"])
	details := body["details"].(map[string]any)
	assert.Equal(t, "2026-01-02T03:04:05Z", details["startedAt"])
	assert.Zero(t, h.starter.calls)
}

func TestStartReindexIsRateLimited(t *testing.T) {
	h := newHarness(fakeProgress{})

	h.do(http.MethodPost, "/api/admin/reindex", "admin")
	h.do(http.MethodPost, "/api/admin/reindex", "admin")
	w := h.do(http.MethodPost, "/api/admin/reindex", "admin")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, 2, h.starter.calls)
}

func TestStartReindexFailure(t *testing.T) {
	h := newHarness(fakeProgress{})
	h.starter.err = errors.New("redis down")

	assert.Equal(t, http.StatusInternalServerError, h.do(http.MethodPost, "/api/admin/reindex", "admin").Code)
}

func TestReindexStatus(t *testing.T) {
	snap := &models.ProgressSnapshot{Phase: models.PhaseProcessingBatch, TotalDocuments: 10, ProcessedCount: 4}
	h := newHarness(fakeProgress{snap: snap})
	h.guard.state = models.LockState{Locked: true}

	w := h.do(http.MethodGet, "/api/admin/reindex/status", "operator")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["lock"].(map[string]any)["locked"])
	prog := body["progress"].(map[string]any)
	assert.Equal(t, string(models.PhaseProcessingBatch), prog["phase"])
	assert.Equal(t, float64(4), prog["processedCount"])
}

func TestReindexStatusBeforeFirstRun(t *testing.T) {
	h := newHarness(fakeProgress{err: progress.ErrNoProgress})

	w := h.do(http.MethodGet, "/api/admin/reindex/status", "operator")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode(t, w)["progress"])
}

func TestLockStatus(t *testing.T) {
	h := newHarness(fakeProgress{})
	h.guard.state = models.LockState{Degraded: true}

	w := h.do(http.MethodGet, "/api/admin/reindex/lock", "operator")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["locked"])
	assert.Equal(t, true, body["degraded"])
}

func TestRuns(t *testing.T) {
	h := newHarness(fakeProgress{})

	w := h.do(http.MethodGet, "/api/admin/reindex/runs/run-1", "operator")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "finalize", decode(t, w)["last_action"])

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/admin/reindex/runs/nope", "operator").Code)

	w = h.do(http.MethodGet, "/api/admin/reindex/runs?limit=500", "operator")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["count"])
}

func TestExportRun(t *testing.T) {
	h := newHarness(fakeProgress{})

	w := h.do(http.MethodGet, "/api/admin/reindex/runs/run-1/export?format=json", "operator")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "reindex_run-1.json")
	assert.Equal(t, "run-1", decode(t, w)["run_id"])

	w = h.do(http.MethodGet, "/api/admin/reindex/runs/run-1/export", "operator")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	assert.NotEmpty(t, w.Body.Bytes())

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/admin/reindex/runs/run-1/export?format=csv", "operator").Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/admin/reindex/runs/nope/export", "operator").Code)
}

func TestDocumentRoutes(t *testing.T) {
	h := newHarness(fakeProgress{})

	w := h.do(http.MethodDelete, "/api/documents/abc", "operator")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"abc"}, h.docs.deleted)

	w = h.do(http.MethodPost, "/api/documents/abc/reprocess", "operator")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "task-9", decode(t, w)["task_id"])

	w = h.do(http.MethodPost, "/api/documents/abc/reindex", "operator")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"abc:reprocess", "abc:reindex"}, h.docs.queued)
}

func TestDocumentRoutesRefusedWhileLocked(t *testing.T) {
	h := newHarness(fakeProgress{})
	h.guard.state = models.LockState{Locked: true, StartedAt: time.Now()}

	for _, tc := range []struct{ method, path, operation string }{
		{http.MethodDelete, "/api/documents/abc", "delete document"},
		{http.MethodPost, "/api/documents/abc/reprocess", "reprocess document"},
		{http.MethodPost, "/api/documents/abc/reindex", "reindex document"},
	} {
		w := h.do(tc.method, tc.path, "operator")
		require.Equal(t, http.StatusConflict, w.Code, tc.path)
		assert.Equal(t, tc.operation, decode(t, w)["details"].(map[string]any)["operation"])
	}
	assert.Empty(t, h.docs.deleted)
	assert.Empty(t, h.docs.queued)
}

func TestDocumentRouteLockTakenAfterGuard(t *testing.T) {
	h := newHarness(fakeProgress{})
	h.docs.err = &lock.LockedError{Operation: "delete document", StartedAt: time.Unix(0, 0)}

	w := h.do(http.MethodDelete, "/api/documents/abc", "operator")
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "reindex_in_progress", decode(t, w)["error_code"])
}

func TestDocumentNotFound(t *testing.T) {
	h := newHarness(fakeProgress{})
	h.docs.err = catalog.ErrDocumentNotFound

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodPost, "/api/documents/abc/reprocess", "operator").Code)
}
