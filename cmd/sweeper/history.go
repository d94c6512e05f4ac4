package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/artpar/sweeper/internal/shell/store"
)

var historyFlags struct {
	project string
	limit   int
	runID   string
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past sweep runs from the audit store",
	Long: `List recent sweep runs recorded in the local audit store, newest
first. With --run, show one run in full including every deletion it
attempted.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyFlags.project, "project", "", "only runs of this project")
	historyCmd.Flags().IntVar(&historyFlags.limit, "limit", 20, "maximum runs to list")
	historyCmd.Flags().StringVar(&historyFlags.runID, "run", "", "show one run with its deletions")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(cfgFile)
	if err != nil {
		return newExitError(ExitConfigError, "configuration error: %v", err)
	}
	if !cfg.Store.Enabled || cfg.Store.DSN == "" {
		return newExitError(ExitConfigError, "audit store is disabled, nothing to show")
	}

	auditStore, err := store.NewSQLiteStore(cfg.Store.DSN)
	if err != nil {
		return newExitError(ExitConfigError, "failed to open audit store: %v", err)
	}
	defer auditStore.Close()

	if historyFlags.runID != "" {
		return showRun(auditStore, historyFlags.runID)
	}
	return listRuns(auditStore)
}

func listRuns(auditStore store.Store) error {
	runs, err := auditStore.ListRuns(context.Background(), store.ListOptions{
		Limit:   historyFlags.limit,
		Project: historyFlags.project,
	})
	if err != nil {
		return newExitError(ExitConfigError, "failed to list runs: %v", err)
	}

	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tPROJECT\tSTARTED\tOUTCOME\tDELETED\tFAILED\tSWEEPS")
	for _, run := range runs {
		outcome := run.Outcome
		if outcome == "" {
			outcome = "running"
		}
		if run.DryRun {
			outcome += " (dry run)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			run.ID, run.Project, run.StartedAt.Local().Format(time.DateTime),
			outcome, run.Deleted, run.Failed, run.Sweeps)
	}
	return w.Flush()
}

func showRun(auditStore store.Store, id string) error {
	run, err := auditStore.GetRun(context.Background(), id)
	if err != nil {
		return newExitError(ExitConfigError, "failed to load run: %v", err)
	}
	deletions, err := auditStore.ListDeletionsByRun(context.Background(), id)
	if err != nil {
		return newExitError(ExitConfigError, "failed to load deletions: %v", err)
	}

	fmt.Printf("run:      %s\n", run.ID)
	fmt.Printf("project:  %s (account %s)\n", run.Project, run.AccountID)
	fmt.Printf("started:  %s\n", run.StartedAt.Local().Format(time.DateTime))
	if run.FinishedAt != nil {
		fmt.Printf("finished: %s\n", run.FinishedAt.Local().Format(time.DateTime))
	}
	fmt.Printf("kept:     %s\n", run.KeepID)
	fmt.Printf("outcome:  %s (deleted %d, failed %d, sweeps %d)\n",
		run.Outcome, run.Deleted, run.Failed, run.Sweeps)
	if run.DryRun {
		fmt.Println("dry run:  yes")
	}
	if run.Error != "" {
		fmt.Printf("error:    %s\n", run.Error)
	}

	if len(deletions) == 0 {
		return nil
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DEPLOYMENT\tENVIRONMENT\tCREATED\tRESULT")
	for _, d := range deletions {
		result := "deleted"
		if !d.Success {
			result = "FAILED"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.DeploymentID, d.Environment, d.CreatedOn, result)
	}
	return w.Flush()
}
