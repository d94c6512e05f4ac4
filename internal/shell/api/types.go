package api

import "time"

// =============================================================================
// Response Types
// =============================================================================

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the readiness check response.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// StatusResponse reports the daemon's scheduler state.
type StatusResponse struct {
	SchedulerRunning bool       `json:"scheduler_running"`
	NextSweep        *time.Time `json:"next_sweep,omitempty"`
}

// RunResponse is one sweep run in listings.
type RunResponse struct {
	ID         string     `json:"id"`
	AccountID  string     `json:"account_id"`
	Project    string     `json:"project"`
	KeepID     string     `json:"keep_id,omitempty"`
	Outcome    string     `json:"outcome"`
	Deleted    int        `json:"deleted"`
	Failed     int        `json:"failed"`
	Sweeps     int        `json:"sweeps"`
	DryRun     bool       `json:"dry_run"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// ListRunsResponse is the run listing response.
type ListRunsResponse struct {
	Runs []RunResponse `json:"runs"`
}

// DeletionResponse is one deletion within a run detail.
type DeletionResponse struct {
	DeploymentID string    `json:"deployment_id"`
	Environment  string    `json:"environment,omitempty"`
	CreatedOn    string    `json:"created_on,omitempty"`
	Success      bool      `json:"success"`
	DeletedAt    time.Time `json:"deleted_at"`
}

// RunDetailResponse is a run with its deletions.
type RunDetailResponse struct {
	RunResponse
	Deletions []DeletionResponse `json:"deletions"`
}

// ErrorResponse is the error response body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
