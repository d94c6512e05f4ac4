// Package scheduler runs cleanup sweeps on a cron schedule in daemon mode.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// =============================================================================
// Service Errors
// =============================================================================

var (
	// ErrAlreadyRunning is returned when Start is called twice.
	ErrAlreadyRunning = errors.New("scheduler already running")

	// ErrNoSchedule is returned when the cron expression is empty.
	ErrNoSchedule = errors.New("no schedule configured")
)

// =============================================================================
// Scheduling Service
// =============================================================================

// SweepFunc is the work a scheduled tick performs, typically sweeping every
// configured project once.
type SweepFunc func(ctx context.Context)

// Service triggers sweeps on a standard 5-field cron schedule. Ticks that
// fire while a sweep is still in flight are skipped rather than queued;
// overlapping sweeps of the same project would fight over the same
// candidate sets.
type Service struct {
	schedule string
	sweepFn  SweepFunc
	cron     *cron.Cron
	logger   *slog.Logger

	mu       sync.Mutex
	running  bool
	sweeping bool
}

// NewService creates a scheduler for the given cron expression.
func NewService(schedule string, sweepFn SweepFunc, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		schedule: schedule,
		sweepFn:  sweepFn,
		cron:     cron.New(),
		logger:   logger.With("component", "scheduler"),
	}
}

// Start validates the schedule and begins firing sweeps. It returns
// immediately; the cron runner owns its own goroutine. The scheduler stops
// itself when ctx ends.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}
	if s.schedule == "" {
		return ErrNoSchedule
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.runSweep(ctx)
	}); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// runSweep executes one scheduled sweep, skipping the tick when the
// previous sweep has not finished.
func (s *Service) runSweep(ctx context.Context) {
	s.mu.Lock()
	if s.sweeping {
		s.mu.Unlock()
		s.logger.Warn("previous sweep still running, skipping tick")
		return
	}
	s.sweeping = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.sweeping = false
		s.mu.Unlock()
	}()

	s.logger.Info("scheduled sweep starting")
	s.sweepFn(ctx)
	s.logger.Info("scheduled sweep finished")
}

// Stop halts the schedule and waits for a sweep in flight to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("scheduler stopped")
	}
}

// IsRunning reports whether the scheduler has been started.
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled sweep time, nil when not running.
func (s *Service) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
