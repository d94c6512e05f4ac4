package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/artpar/sweeper/internal/core/manifest"
	"github.com/artpar/sweeper/internal/shell/api"
	"github.com/artpar/sweeper/internal/shell/runner"
	"github.com/artpar/sweeper/internal/shell/scheduler"
	"github.com/artpar/sweeper/internal/shell/telemetry"
	"github.com/artpar/sweeper/internal/shell/workers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run cleanups on a cron schedule with an admin/metrics endpoint",
	Long: `Run the sweeper as a daemon: cleanups fire on a cron schedule, an
admin HTTP endpoint serves health probes, run history, scheduler status and
Prometheus metrics, and the projects manifest (when configured) is watched
for changes and hot-reloaded.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// projectList is the mutable project set of the daemon, replaced wholesale
// on every manifest reload.
type projectList struct {
	mu       sync.RWMutex
	projects []manifest.Project
}

func (l *projectList) get() []manifest.Project {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.projects
}

func (l *projectList) set(projects []manifest.Project) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.projects = projects
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(cfgFile)
	if err != nil {
		return newExitError(ExitConfigError, "configuration error: %v", err)
	}

	logger := SetupLogger(cfg)
	slog.SetDefault(logger)

	token, err := resolveToken(cfg)
	if err != nil {
		return newExitError(ExitConfigError, "configuration error: %v", err)
	}

	initial, err := loadProjects(cfg)
	if err != nil {
		return newExitError(ExitConfigError, "configuration error: %v", err)
	}
	projects := &projectList{}
	projects.set(initial)

	auditStore := openStore(cfg, logger)
	if auditStore != nil {
		defer auditStore.Close()
	}

	metrics := telemetry.NewCollector(nil)
	sweeper := runner.New(runnerConfig(cfg, token), auditStore, metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweepAll := func(ctx context.Context) {
		for _, project := range projects.get() {
			sweeper.SweepProject(ctx, project.AccountID, project.Name)
			if ctx.Err() != nil {
				return
			}
		}
	}

	sched := scheduler.NewService(cfg.Serve.Schedule, sweepAll, logger)
	if err := sched.Start(ctx); err != nil {
		return newExitError(ExitConfigError, "configuration error: %v", err)
	}
	defer sched.Stop()

	if cfg.Manifest != "" {
		watcher := workers.NewManifestWatcher(workers.ManifestWatcherConfig{
			Path: cfg.Manifest,
		}, func(m *manifest.Manifest) {
			projects.set(m.Projects)
		}, logger)
		if err := watcher.Start(); err != nil {
			return newExitError(ExitConfigError, "manifest watcher error: %v", err)
		}
		defer watcher.Stop()
	}

	if cfg.Serve.RunOnStart {
		go sweepAll(ctx)
	}

	handler := api.NewHandler(auditStore, sched, metrics.Handler(), logger)
	server := &http.Server{
		Addr:    cfg.Serve.Address(),
		Handler: handler.Routes(),
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("admin server listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return newExitError(ExitConfigError, "admin server error: %v", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Serve.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown failed", "error", err)
	}
	return nil
}
