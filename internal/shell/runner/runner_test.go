package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/sweeper/internal/core/retention"
	"github.com/artpar/sweeper/internal/core/sweep"
	"github.com/artpar/sweeper/internal/shell/retryhttp"
	"github.com/artpar/sweeper/internal/shell/store"
)

// =============================================================================
// Fake Pages API
// =============================================================================

// fakePages emulates the Pages deployments API over a mutable deployment
// set: deletes remove entries, listings reflect the current state.
type fakePages struct {
	mu          sync.Mutex
	deployments []retention.Deployment
	undeletable map[string]bool // ids whose DELETE answers success=false
	deletes     int
}

func (f *fakePages) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case r.Method == http.MethodGet:
			env := r.URL.Query().Get("env")
			var result []retention.Deployment
			for _, d := range f.deployments {
				if env == "" || d.Environment == env {
					result = append(result, d)
				}
			}
			json.NewEncoder(w).Encode(map[string]any{"success": true, "result": result})

		case r.Method == http.MethodDelete:
			f.deletes++
			parts := strings.Split(r.URL.Path, "/")
			id := parts[len(parts)-1]
			if f.undeletable[id] {
				w.WriteHeader(http.StatusForbidden)
				json.NewEncoder(w).Encode(map[string]any{"success": false})
				return
			}
			kept := f.deployments[:0]
			for _, d := range f.deployments {
				if d.ID != id {
					kept = append(kept, d)
				}
			}
			f.deployments = kept
			json.NewEncoder(w).Encode(map[string]any{"success": true})

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

func (f *fakePages) remaining() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.deployments))
	for _, d := range f.deployments {
		ids = append(ids, d.ID)
	}
	return ids
}

func deployment(id, env string, age int) retention.Deployment {
	return retention.Deployment{
		ID:          id,
		Environment: env,
		CreatedOn:   fmt.Sprintf("2026-08-%02dT00:00:00Z", 28-age),
	}
}

func testRunner(t *testing.T, serverURL string, auditStore store.Store, dryRun bool) *Runner {
	t.Helper()
	return New(Config{
		APIToken: "test-token",
		BaseURL:  serverURL,
		DryRun:   dryRun,
		Loop: sweep.Config{
			BatchSize:   24,
			DeletePause: time.Millisecond,
			SweepPause:  time.Millisecond,
		},
		Retry: retryhttp.Config{MaxAttempts: 2, BackoffBase: time.Millisecond},
	}, auditStore, nil, nil)
}

// =============================================================================
// Tests
// =============================================================================

func TestRunner_SweepProject_DeletesAllButNewestProduction(t *testing.T) {
	pages := &fakePages{deployments: []retention.Deployment{
		deployment("p1", "production", 0),
		deployment("p2", "production", 1),
		deployment("p3", "production", 2),
		deployment("v1", "preview", 1),
		deployment("v2", "preview", 3),
	}}
	server := httptest.NewServer(pages.handler())
	defer server.Close()

	report := testRunner(t, server.URL, nil, false).SweepProject(context.Background(), "acct-1", "site-1")

	assert.Equal(t, "p1", report.KeepID)
	assert.Equal(t, sweep.OutcomeCompleted, report.Outcome)
	assert.Equal(t, 4, report.Deleted)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, ExitSuccess, report.ExitCode())
	assert.Equal(t, []string{"p1"}, pages.remaining())
}

func TestRunner_SweepProject_SingleProduction_NothingToDo(t *testing.T) {
	pages := &fakePages{deployments: []retention.Deployment{
		deployment("p1", "production", 0),
	}}
	server := httptest.NewServer(pages.handler())
	defer server.Close()

	report := testRunner(t, server.URL, nil, false).SweepProject(context.Background(), "acct-1", "site-1")

	assert.Equal(t, sweep.OutcomeCompleted, report.Outcome)
	assert.Equal(t, 0, report.Deleted)
	assert.Equal(t, ExitSuccess, report.ExitCode())
	assert.Equal(t, 0, pages.deletes)
}

func TestRunner_SweepProject_UndeletableCandidate_ExitPartial(t *testing.T) {
	pages := &fakePages{
		deployments: []retention.Deployment{
			deployment("p1", "production", 0),
			deployment("v1", "preview", 1),
			deployment("v2", "preview", 2),
		},
		undeletable: map[string]bool{"v1": true},
	}
	server := httptest.NewServer(pages.handler())
	defer server.Close()

	report := testRunner(t, server.URL, nil, false).SweepProject(context.Background(), "acct-1", "site-1")

	assert.Equal(t, sweep.OutcomeStalled, report.Outcome)
	assert.Equal(t, 1, report.Deleted)
	assert.GreaterOrEqual(t, report.Failed, 1)
	assert.Equal(t, ExitPartial, report.ExitCode())
	assert.Contains(t, pages.remaining(), "v1")
}

func TestRunner_SweepProject_NoProduction_ExitFatal(t *testing.T) {
	pages := &fakePages{deployments: []retention.Deployment{
		deployment("v1", "preview", 1),
	}}
	server := httptest.NewServer(pages.handler())
	defer server.Close()

	report := testRunner(t, server.URL, nil, false).SweepProject(context.Background(), "acct-1", "site-1")

	require.Error(t, report.Err)
	assert.ErrorIs(t, report.Err, retention.ErrNoProductionDeployments)
	assert.Empty(t, report.KeepID)
	assert.Equal(t, ExitFatal, report.ExitCode())
	assert.Equal(t, 0, pages.deletes)
}

func TestRunner_SweepProject_DryRun_NothingDeleted(t *testing.T) {
	pages := &fakePages{deployments: []retention.Deployment{
		deployment("p1", "production", 0),
		deployment("p2", "production", 1),
		deployment("v1", "preview", 1),
	}}
	server := httptest.NewServer(pages.handler())
	defer server.Close()

	report := testRunner(t, server.URL, nil, true).SweepProject(context.Background(), "acct-1", "site-1")

	assert.Equal(t, sweep.OutcomeCompleted, report.Outcome)
	assert.Equal(t, 2, report.Deleted) // would-delete count
	assert.Equal(t, ExitSuccess, report.ExitCode())
	assert.Equal(t, 0, pages.deletes)
	assert.Len(t, pages.remaining(), 3)
}

func TestRunner_SweepProject_RecordsAuditTrail(t *testing.T) {
	pages := &fakePages{deployments: []retention.Deployment{
		deployment("p1", "production", 0),
		deployment("p2", "production", 1),
		deployment("v1", "preview", 1),
	}}
	server := httptest.NewServer(pages.handler())
	defer server.Close()

	auditStore, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer auditStore.Close()

	report := testRunner(t, server.URL, auditStore, false).SweepProject(context.Background(), "acct-1", "site-1")
	require.NoError(t, report.Err)

	run, err := auditStore.GetRun(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Equal(t, "site-1", run.Project)
	assert.Equal(t, "p1", run.KeepID)
	assert.Equal(t, "completed", run.Outcome)
	assert.Equal(t, 2, run.Deleted)
	require.NotNil(t, run.FinishedAt)

	deletions, err := auditStore.ListDeletionsByRun(context.Background(), report.RunID)
	require.NoError(t, err)
	require.Len(t, deletions, 2)
	assert.Equal(t, "p2", deletions[0].DeploymentID)
	assert.Equal(t, "production", deletions[0].Environment)
	assert.True(t, deletions[0].Success)
	assert.Equal(t, "v1", deletions[1].DeploymentID)
	assert.Equal(t, "preview", deletions[1].Environment)
}

func TestReport_ExitCode(t *testing.T) {
	tests := []struct {
		name   string
		report Report
		want   int
	}{
		{"clean run", Report{KeepID: "k", Outcome: sweep.OutcomeCompleted}, ExitSuccess},
		{"stalled without failures", Report{KeepID: "k", Outcome: sweep.OutcomeStalled}, ExitSuccess},
		{"failed deletions", Report{KeepID: "k", Failed: 2}, ExitPartial},
		{"resolution failed", Report{Err: retention.ErrNoProductionDeployments}, ExitFatal},
		{"mid-loop fatal", Report{KeepID: "k", Err: assert.AnError}, ExitPartial},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.report.ExitCode())
		})
	}
}
