package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/sweeper/internal/shell/store"
	"github.com/artpar/sweeper/internal/shell/telemetry"
)

// =============================================================================
// Test Helpers
// =============================================================================

func setupTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func createFinishedRun(t *testing.T, s store.Store, project string) *store.Run {
	t.Helper()
	run := &store.Run{
		ID:        uuid.New().String(),
		AccountID: "acct-1",
		Project:   project,
		StartedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreateRun(context.Background(), run))

	require.NoError(t, s.RecordDeletion(context.Background(), &store.Deletion{
		RunID:        run.ID,
		DeploymentID: "dep-1",
		Environment:  "preview",
		Success:      true,
	}))

	run.KeepID = "keep-1"
	run.Outcome = "completed"
	run.Deleted = 1
	require.NoError(t, s.FinishRun(context.Background(), run))
	return run
}

func doRequest(t *testing.T, handler http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	handler.ServeHTTP(rec, req)
	return rec
}

// =============================================================================
// Health Tests
// =============================================================================

func TestHandler_Health(t *testing.T) {
	handler := NewHandler(nil, nil, nil, nil).Routes()

	rec := doRequest(t, handler, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestHandler_Ready_StoreDisabled(t *testing.T) {
	handler := NewHandler(nil, nil, nil, nil).Routes()

	rec := doRequest(t, handler, http.MethodGet, "/ready")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ReadyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp.Status)
	assert.Equal(t, "disabled", resp.Checks["store"])
}

// =============================================================================
// Run Tests
// =============================================================================

func TestHandler_ListRuns(t *testing.T) {
	s := setupTestStore(t)
	createFinishedRun(t, s, "site-a")
	createFinishedRun(t, s, "site-b")
	handler := NewHandler(s, nil, nil, nil).Routes()

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/runs/")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListRunsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Runs, 2)
}

func TestHandler_ListRuns_ProjectFilter(t *testing.T) {
	s := setupTestStore(t)
	createFinishedRun(t, s, "site-a")
	createFinishedRun(t, s, "site-b")
	handler := NewHandler(s, nil, nil, nil).Routes()

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/runs/?project=site-a")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListRunsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, "site-a", resp.Runs[0].Project)
}

func TestHandler_ListRuns_InvalidLimit(t *testing.T) {
	s := setupTestStore(t)
	handler := NewHandler(s, nil, nil, nil).Routes()

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/runs/?limit=abc")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation_error", resp.Code)
}

func TestHandler_ListRuns_StoreDisabled(t *testing.T) {
	handler := NewHandler(nil, nil, nil, nil).Routes()

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/runs/")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_GetRun_WithDeletions(t *testing.T) {
	s := setupTestStore(t)
	run := createFinishedRun(t, s, "site-a")
	handler := NewHandler(s, nil, nil, nil).Routes()

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/runs/"+run.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RunDetailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, run.ID, resp.ID)
	assert.Equal(t, "completed", resp.Outcome)
	assert.Equal(t, "keep-1", resp.KeepID)
	require.Len(t, resp.Deletions, 1)
	assert.Equal(t, "dep-1", resp.Deletions[0].DeploymentID)
	assert.True(t, resp.Deletions[0].Success)
}

func TestHandler_GetRun_NotFound(t *testing.T) {
	s := setupTestStore(t)
	handler := NewHandler(s, nil, nil, nil).Routes()

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/runs/missing")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not_found", resp.Code)
}

// =============================================================================
// Status and Metrics Tests
// =============================================================================

func TestHandler_Status_NoScheduler(t *testing.T) {
	handler := NewHandler(nil, nil, nil, nil).Routes()

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.SchedulerRunning)
	assert.Nil(t, resp.NextSweep)
}

func TestHandler_Metrics(t *testing.T) {
	collector := telemetry.NewCollector(nil)
	collector.ObserveRun("site-a", "completed", 1, 0, 1, time.Second)
	handler := NewHandler(nil, nil, collector.Handler(), nil).Routes()

	rec := doRequest(t, handler, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sweeper_runs_total")
}

func TestHandler_Metrics_Disabled(t *testing.T) {
	handler := NewHandler(nil, nil, nil, nil).Routes()

	rec := doRequest(t, handler, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
