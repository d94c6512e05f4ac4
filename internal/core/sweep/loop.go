// Package sweep drives the batched deletion loop that drains a project's
// deployment backlog down to the single kept deployment.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/artpar/sweeper/internal/core/retention"
)

// Defaults applied by NewLoop when the corresponding Config field is zero.
const (
	DefaultBatchSize   = 24
	DefaultDeletePause = 150 * time.Millisecond
	DefaultSweepPause  = 500 * time.Millisecond
)

// Config holds loop tuning.
type Config struct {
	BatchSize   int           // candidates deleted per sweep
	DeletePause time.Duration // pause after each individual delete
	SweepPause  time.Duration // pause between sweeps
}

// Outcome says how a run ended.
type Outcome string

const (
	// OutcomeCompleted means the candidate set drained to empty.
	OutcomeCompleted Outcome = "completed"

	// OutcomeStalled means the same undeletable candidates persisted across
	// consecutive sweeps with no progress, so the loop gave up.
	OutcomeStalled Outcome = "stalled"

	// OutcomeAborted marks a run cut short by a fatal error or context
	// cancellation. Run never returns it; callers assign it when Run
	// returns an error alongside the partial result.
	OutcomeAborted Outcome = "aborted"
)

// Result carries the totals of one run. Deleted and Failed count individual
// deployments; Sweeps counts scan/delete rounds including the final empty
// scan.
type Result struct {
	Deleted int
	Failed  int
	Sweeps  int
	Outcome Outcome
}

// CandidateScanner feeds the loop a fresh candidate set each sweep.
type CandidateScanner interface {
	Scan(ctx context.Context, keepID string) ([]retention.Deployment, error)
}

// Loop repeatedly scans for deletion candidates and deletes them in bounded
// batches until none remain or no further progress is possible.
type Loop struct {
	scanner CandidateScanner
	deleter retention.Deleter
	cfg     Config
	logger  *slog.Logger
}

// NewLoop creates a loop, filling zero Config fields with defaults.
func NewLoop(scanner CandidateScanner, deleter retention.Deleter, cfg Config, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.DeletePause <= 0 {
		cfg.DeletePause = DefaultDeletePause
	}
	if cfg.SweepPause <= 0 {
		cfg.SweepPause = DefaultSweepPause
	}
	return &Loop{
		scanner: scanner,
		deleter: deleter,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run sweeps until the candidate set is empty (completed) or stagnation is
// detected (stalled). Each sweep rescans, deletes at most BatchSize
// candidates with a pause after every delete, then pauses again before the
// next sweep. Individual delete failures are counted and never stop the
// loop; scan errors are fatal and returned with the partial result, as is
// context cancellation.
//
// Stagnation: a sweep that deleted nothing, over a candidate set that fits
// in one batch and is identical to the previous sweep's set, proves the
// remaining candidates cannot be deleted right now (aliased or otherwise
// protected). Sets wider than one batch never trigger the check, since a
// single sweep only ever attempts their head.
func (l *Loop) Run(ctx context.Context, keepID string) (Result, error) {
	var result Result

	// Candidate ids seen by the previous sweep; nil until one completes.
	var prevIDs []string

	for {
		result.Sweeps++
		l.logger.Info("sweep started", "sweep", result.Sweeps)

		candidates, err := l.scanner.Scan(ctx, keepID)
		if err != nil {
			return result, fmt.Errorf("scan candidates: %w", err)
		}
		if len(candidates) == 0 {
			l.logger.Info("nothing left to delete", "sweeps", result.Sweeps)
			result.Outcome = OutcomeCompleted
			return result, nil
		}

		candidateIDs := idsOf(candidates)

		batch := candidates
		if len(batch) > l.cfg.BatchSize {
			batch = batch[:l.cfg.BatchSize]
		}
		l.logger.Info("deleting batch",
			"sweep", result.Sweeps,
			"batch_size", len(batch),
			"candidates", len(candidates),
		)

		sweepDeleted := 0
		for _, d := range batch {
			if d.ID == "" || d.ID == keepID {
				continue
			}
			ok, err := l.deleter.DeleteDeployment(ctx, d.ID)
			if err != nil {
				return result, fmt.Errorf("delete deployment %s: %w", d.ID, err)
			}
			if ok {
				result.Deleted++
				sweepDeleted++
			} else {
				result.Failed++
			}
			if err := sleepCtx(ctx, l.cfg.DeletePause); err != nil {
				return result, err
			}
		}

		if sweepDeleted == 0 && len(candidates) <= l.cfg.BatchSize &&
			prevIDs != nil && equalIDs(prevIDs, candidateIDs) {
			l.logger.Warn("no eligible deletions remain, stopping",
				"candidates", len(candidates),
				"sweeps", result.Sweeps,
			)
			result.Outcome = OutcomeStalled
			return result, nil
		}
		prevIDs = candidateIDs

		if err := sleepCtx(ctx, l.cfg.SweepPause); err != nil {
			return result, err
		}
	}
}

// idsOf collects the non-empty ids of a candidate set, in order.
func idsOf(deployments []retention.Deployment) []string {
	ids := make([]string, 0, len(deployments))
	for _, d := range deployments {
		if d.ID != "" {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

// equalIDs reports whether two id slices are identical in content and order.
func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// sleepCtx waits for d, returning the context error if ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
