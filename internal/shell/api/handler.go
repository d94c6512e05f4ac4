// Package api provides the read-only admin HTTP surface of the sweeper
// daemon: health probes, sweep run history, scheduler status and metrics.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/artpar/sweeper/internal/shell/scheduler"
	"github.com/artpar/sweeper/internal/shell/store"
)

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the admin API. The store, scheduler
// and metrics handler are each optional; absent collaborators turn their
// endpoints into 404s or degraded status fields rather than startup errors.
type Handler struct {
	store     store.Store
	scheduler *scheduler.Service
	metrics   http.Handler
	logger    *slog.Logger
}

// NewHandler creates a new admin API handler.
func NewHandler(s store.Store, sched *scheduler.Service, metrics http.Handler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:     s,
		scheduler: sched,
		metrics:   metrics,
		logger:    logger,
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", h.handleStatus)
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", h.handleListRuns)
			r.Get("/{id}", h.handleGetRun)
		})
	})

	if h.metrics != nil {
		r.Handle("/metrics", h.metrics)
	}

	return r
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	if h.store != nil {
		checks["store"] = "ok"
	} else {
		checks["store"] = "disabled"
	}

	if h.scheduler != nil {
		if h.scheduler.IsRunning() {
			checks["scheduler"] = "ok"
		} else {
			checks["scheduler"] = "stopped"
			h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
				Status: "not_ready",
				Checks: checks,
			})
			return
		}
	}

	h.writeJSON(w, http.StatusOK, ReadyResponse{
		Status: "ready",
		Checks: checks,
	})
}

// =============================================================================
// Status Handler
// =============================================================================

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{SchedulerRunning: h.scheduler != nil && h.scheduler.IsRunning()}
	if h.scheduler != nil {
		resp.NextSweep = h.scheduler.NextRun()
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// Run Handlers
// =============================================================================

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeError(w, http.StatusNotFound, "audit store is disabled", "store_disabled")
		return
	}

	opts := store.DefaultListOptions()
	opts.Project = r.URL.Query().Get("project")
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid limit", "validation_error")
			return
		}
		opts.Limit = limit
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid offset", "validation_error")
			return
		}
		opts.Offset = offset
	}

	runs, err := h.store.ListRuns(r.Context(), opts)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list runs", "internal_error")
		return
	}

	resp := ListRunsResponse{Runs: make([]RunResponse, 0, len(runs))}
	for i := range runs {
		resp.Runs = append(resp.Runs, runToResponse(&runs[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeError(w, http.StatusNotFound, "audit store is disabled", "store_disabled")
		return
	}

	id := chi.URLParam(r, "id")
	run, err := h.store.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "run not found", "not_found")
			return
		}
		h.logger.Error("failed to get run", "run_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get run", "internal_error")
		return
	}

	deletions, err := h.store.ListDeletionsByRun(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list deletions", "run_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list deletions", "internal_error")
		return
	}

	resp := RunDetailResponse{
		RunResponse: runToResponse(run),
		Deletions:   make([]DeletionResponse, 0, len(deletions)),
	}
	for _, d := range deletions {
		resp.Deletions = append(resp.Deletions, DeletionResponse{
			DeploymentID: d.DeploymentID,
			Environment:  d.Environment,
			CreatedOn:    d.CreatedOn,
			Success:      d.Success,
			DeletedAt:    d.DeletedAt,
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// Helpers
// =============================================================================

func runToResponse(run *store.Run) RunResponse {
	return RunResponse{
		ID:         run.ID,
		AccountID:  run.AccountID,
		Project:    run.Project,
		KeepID:     run.KeepID,
		Outcome:    run.Outcome,
		Deleted:    run.Deleted,
		Failed:     run.Failed,
		Sweeps:     run.Sweeps,
		DryRun:     run.DryRun,
		Error:      run.Error,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
