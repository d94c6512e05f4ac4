// Package runner sequences one cleanup run per project: resolve the kept
// deployment, drive the deletion loop, and record the outcome in the audit
// store and metrics.
package runner

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/artpar/sweeper/internal/core/retention"
	"github.com/artpar/sweeper/internal/core/sweep"
	"github.com/artpar/sweeper/internal/shell/cloudflare"
	"github.com/artpar/sweeper/internal/shell/retryhttp"
	"github.com/artpar/sweeper/internal/shell/store"
	"github.com/artpar/sweeper/internal/shell/telemetry"
)

// Exit codes a single project sweep maps to.
const (
	ExitSuccess = 0
	ExitFatal   = 1 // configuration or retention resolution failed
	ExitPartial = 2 // some deletions failed, or the loop aborted mid-run
)

// Config holds runner configuration shared by all projects of an invocation.
type Config struct {
	APIToken string
	BaseURL  string // Cloudflare API root override, empty for the public API
	DryRun   bool
	Loop     sweep.Config
	Retry    retryhttp.Config
}

// Runner executes cleanup runs. The audit store and metrics collector are
// both optional; a nil store disables auditing, a nil collector disables
// metrics.
type Runner struct {
	cfg     Config
	store   store.Store
	metrics *telemetry.Collector
	logger  *slog.Logger
}

// New creates a runner.
func New(cfg Config, auditStore store.Store, metrics *telemetry.Collector, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:     cfg,
		store:   auditStore,
		metrics: metrics,
		logger:  logger,
	}
}

// Report is the outcome of one project sweep.
type Report struct {
	RunID     string
	AccountID string
	Project   string
	KeepID    string // empty when resolution failed
	Outcome   sweep.Outcome
	Deleted   int
	Failed    int
	Sweeps    int
	DryRun    bool
	Duration  time.Duration
	Err       error // fatal error, nil on clean and stalled runs
}

// ExitCode maps the report to the process exit code contract: 1 when the
// run died before any deletion could happen, 2 when deletions failed or the
// loop aborted mid-run, 0 otherwise.
func (r *Report) ExitCode() int {
	switch {
	case r.Err != nil && r.KeepID == "":
		return ExitFatal
	case r.Err != nil:
		return ExitPartial
	case r.Failed > 0:
		return ExitPartial
	default:
		return ExitSuccess
	}
}

// SweepProject runs one full cleanup of a project. Fatal errors are carried
// in the report rather than returned, so multi-project invocations can keep
// going and aggregate exit codes at the end.
func (r *Runner) SweepProject(ctx context.Context, accountID, project string) *Report {
	report := &Report{
		RunID:     uuid.New().String(),
		AccountID: accountID,
		Project:   project,
		DryRun:    r.cfg.DryRun,
	}
	logger := r.logger.With("project", project, "run_id", report.RunID)
	started := time.Now()

	logger.Info("cleanup run starting", "dry_run", r.cfg.DryRun)

	auditStore := r.store
	if auditStore != nil {
		err := auditStore.CreateRun(ctx, &store.Run{
			ID:        report.RunID,
			AccountID: accountID,
			Project:   project,
			DryRun:    r.cfg.DryRun,
			StartedAt: started,
		})
		if err != nil {
			// Auditing is telemetry; a broken store must not block the sweep.
			logger.Warn("audit store unavailable, continuing without it", "error", err)
			auditStore = nil
		}
	}

	httpClient := retryhttp.NewClient(r.cfg.Retry, logger)
	client := cloudflare.NewClient(cloudflare.Config{
		BaseURL:   r.cfg.BaseURL,
		AccountID: accountID,
		Project:   project,
		APIToken:  r.cfg.APIToken,
	}, httpClient, logger)

	keepID, err := retention.NewResolver(client, logger).ResolveKeepID(ctx)
	if err != nil {
		logger.Error("cannot determine deployment to keep", "error", err)
		report.Err = err
		r.finish(ctx, auditStore, report, started)
		return report
	}
	report.KeepID = keepID

	scanner := &trackingScanner{inner: retention.NewScanner(client, logger)}

	var deleter retention.Deleter = client
	if r.cfg.DryRun {
		// The origin set never shrinks on a dry run, so the scanner has to
		// hide already-"deleted" ids or the loop would rescan them forever.
		skipped := make(map[string]bool)
		scanner.exclude = skipped
		deleter = &dryRunDeleter{logger: logger, skipped: skipped}
	}
	if auditStore != nil {
		deleter = &auditingDeleter{
			inner:   deleter,
			store:   auditStore,
			runID:   report.RunID,
			scanner: scanner,
			logger:  logger,
		}
	}

	result, err := sweep.NewLoop(scanner, deleter, r.cfg.Loop, logger).Run(ctx, keepID)
	report.Deleted = result.Deleted
	report.Failed = result.Failed
	report.Sweeps = result.Sweeps
	report.Outcome = result.Outcome
	if err != nil {
		report.Outcome = sweep.OutcomeAborted
		report.Err = err
		logger.Error("fatal error during cleanup", "error", err)
	}

	r.finish(ctx, auditStore, report, started)

	if r.metrics != nil {
		r.metrics.SetLastCandidates(project, scanner.firstCount)
	}

	logger.Info("cleanup run finished",
		"outcome", string(report.Outcome),
		"deleted", report.Deleted,
		"failed", report.Failed,
		"sweeps", report.Sweeps,
		"duration", report.Duration,
	)
	return report
}

// finish stamps the duration and flushes the run to the store and metrics.
func (r *Runner) finish(ctx context.Context, auditStore store.Store, report *Report, started time.Time) {
	report.Duration = time.Since(started)
	if report.Outcome == "" {
		report.Outcome = sweep.OutcomeAborted
	}

	if auditStore != nil {
		run := &store.Run{
			ID:      report.RunID,
			KeepID:  report.KeepID,
			Outcome: string(report.Outcome),
			Deleted: report.Deleted,
			Failed:  report.Failed,
			Sweeps:  report.Sweeps,
		}
		if report.Err != nil {
			run.Error = report.Err.Error()
		}
		if err := auditStore.FinishRun(ctx, run); err != nil {
			r.logger.Warn("failed to record run outcome", "run_id", report.RunID, "error", err)
		}
	}

	if r.metrics != nil {
		r.metrics.ObserveRun(report.Project, string(report.Outcome),
			report.Deleted, report.Failed, report.Sweeps, report.Duration)
	}
}

// =============================================================================
// Deleter and Scanner Wrappers
// =============================================================================

// trackingScanner remembers deployment metadata by id so the audit records
// can name the environment and age of each deletion, and keeps the candidate
// count of the opening sweep for the last-candidates gauge.
type trackingScanner struct {
	inner      *retention.Scanner
	exclude    map[string]bool // ids a dry run has already "deleted"
	seen       map[string]retention.Deployment
	firstCount int
	scanned    bool
}

func (s *trackingScanner) Scan(ctx context.Context, keepID string) ([]retention.Deployment, error) {
	candidates, err := s.inner.Scan(ctx, keepID)
	if err != nil {
		return nil, err
	}
	if len(s.exclude) > 0 {
		filtered := candidates[:0]
		for _, d := range candidates {
			if !s.exclude[d.ID] {
				filtered = append(filtered, d)
			}
		}
		candidates = filtered
	}
	if !s.scanned {
		s.firstCount = len(candidates)
		s.scanned = true
	}
	if s.seen == nil {
		s.seen = make(map[string]retention.Deployment)
	}
	for _, d := range candidates {
		s.seen[d.ID] = d
	}
	return candidates, nil
}

// dryRunDeleter reports every deletion as successful without issuing it, so
// dry runs always drain by exhaustion and show exactly what a real run
// would delete.
type dryRunDeleter struct {
	logger  *slog.Logger
	skipped map[string]bool
}

func (d *dryRunDeleter) DeleteDeployment(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	d.skipped[id] = true
	d.logger.Info("dry run, would delete deployment", "deployment_id", id)
	return true, nil
}

// auditingDeleter writes one audit row per attempted deletion.
type auditingDeleter struct {
	inner   retention.Deleter
	store   store.Store
	runID   string
	scanner *trackingScanner
	logger  *slog.Logger
}

func (d *auditingDeleter) DeleteDeployment(ctx context.Context, id string) (bool, error) {
	ok, err := d.inner.DeleteDeployment(ctx, id)
	if err != nil {
		return ok, err
	}

	deletion := &store.Deletion{
		RunID:        d.runID,
		DeploymentID: id,
		Success:      ok,
	}
	if meta, found := d.scanner.seen[id]; found {
		deletion.Environment = meta.Environment
		deletion.CreatedOn = meta.CreatedOn
	}
	if storeErr := d.store.RecordDeletion(ctx, deletion); storeErr != nil {
		d.logger.Warn("failed to record deletion", "deployment_id", id, "error", storeErr)
	}
	return ok, nil
}
