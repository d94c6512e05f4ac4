package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/artpar/sweeper/internal/core/manifest"
	"github.com/artpar/sweeper/internal/core/sweep"
	"github.com/artpar/sweeper/internal/shell/credentials"
	"github.com/artpar/sweeper/internal/shell/retryhttp"
	"github.com/artpar/sweeper/internal/shell/runner"
	"github.com/artpar/sweeper/internal/shell/store"
)

var runFlags struct {
	dryRun   bool
	manifest string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one cleanup of the configured project(s) and exit",
	Long: `Run one full cleanup: resolve the newest production deployment, then
delete every other deployment in bounded batches until none remain.

With --manifest, every project in the manifest is swept sequentially and the
process exits with the worst per-project code.

Exit codes:
  0  every deletion succeeded (or nothing needed deleting)
  1  configuration error, or a deployment listing could not be fetched
  2  run completed but one or more deletions failed`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "log what would be deleted without deleting")
	runCmd.Flags().StringVar(&runFlags.manifest, "manifest", "", "multi-project manifest file")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(cfgFile)
	if err != nil {
		return newExitError(ExitConfigError, "configuration error: %v", err)
	}
	if runFlags.dryRun {
		cfg.Sweep.DryRun = true
	}
	if runFlags.manifest != "" {
		cfg.Manifest = runFlags.manifest
	}

	logger := SetupLogger(cfg)
	slog.SetDefault(logger)

	token, err := resolveToken(cfg)
	if err != nil {
		return newExitError(ExitConfigError, "configuration error: %v", err)
	}

	projects, err := loadProjects(cfg)
	if err != nil {
		return newExitError(ExitConfigError, "configuration error: %v", err)
	}

	auditStore := openStore(cfg, logger)
	if auditStore != nil {
		defer auditStore.Close()
	}

	sweeper := runner.New(runnerConfig(cfg, token), auditStore, nil, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exitCode := ExitSuccess
	for _, project := range projects {
		report := sweeper.SweepProject(ctx, project.AccountID, project.Name)
		if code := report.ExitCode(); code > exitCode {
			exitCode = code
		}
		if ctx.Err() != nil {
			break
		}
	}

	switch exitCode {
	case ExitSuccess:
		return nil
	case ExitDeleteFailures:
		return newExitError(ExitDeleteFailures, "cleanup completed with deletion failures")
	default:
		return newExitError(exitCode, "cleanup failed")
	}
}

// =============================================================================
// Shared Setup
// =============================================================================

// resolveToken returns the API token from configuration or, failing that,
// the OS keyring.
func resolveToken(cfg *Config) (string, error) {
	if !isPlaceholder(cfg.Cloudflare.APIToken) {
		return cfg.Cloudflare.APIToken, nil
	}

	token, err := credentials.GetToken()
	if err == nil {
		return token, nil
	}
	if errors.Is(err, credentials.ErrTokenNotFound) {
		return "", errors.New("CF_API_TOKEN is not set (or using placeholder) and no token is stored in the keyring")
	}
	return "", fmt.Errorf("CF_API_TOKEN is not set and the keyring lookup failed: %w", err)
}

// loadProjects returns the projects to sweep: the manifest's list when one
// is configured, otherwise the single configured project.
func loadProjects(cfg *Config) ([]manifest.Project, error) {
	if cfg.Manifest != "" {
		content, err := os.ReadFile(cfg.Manifest)
		if err != nil {
			return nil, fmt.Errorf("read manifest: %w", err)
		}
		m, err := manifest.Parse(content)
		if err != nil {
			return nil, err
		}
		return m.Projects, nil
	}

	if isPlaceholder(cfg.Cloudflare.AccountID) {
		return nil, errors.New("CF_ACCOUNT_ID is not set (or using placeholder)")
	}
	if isPlaceholder(cfg.Cloudflare.Project) {
		return nil, errors.New("CF_PAGES_PROJECT is not set (or using placeholder)")
	}

	return []manifest.Project{{
		Name:      cfg.Cloudflare.Project,
		AccountID: cfg.Cloudflare.AccountID,
	}}, nil
}

// openStore opens the audit store, or returns nil when auditing is disabled
// or the store cannot be opened. A broken audit store degrades the run, it
// never blocks it.
func openStore(cfg *Config, logger *slog.Logger) store.Store {
	if !cfg.Store.Enabled || cfg.Store.DSN == "" {
		return nil
	}
	s, err := store.NewSQLiteStore(cfg.Store.DSN)
	if err != nil {
		logger.Warn("audit store unavailable, continuing without it",
			"dsn", cfg.Store.DSN,
			"error", err,
		)
		return nil
	}
	return s
}

func runnerConfig(cfg *Config, token string) runner.Config {
	return runner.Config{
		APIToken: token,
		BaseURL:  cfg.Cloudflare.BaseURL,
		DryRun:   cfg.Sweep.DryRun,
		Loop: sweep.Config{
			BatchSize:   cfg.Sweep.BatchSize,
			DeletePause: cfg.Sweep.DeletePause,
			SweepPause:  cfg.Sweep.SweepPause,
		},
		Retry: retryhttp.Config{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BackoffBase: cfg.Retry.BackoffBase,
			Timeout:     cfg.Retry.Timeout,
		},
	}
}
