package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout is how timestamps are stored; RFC 3339 strings sort correctly
// and survive the sqlite TEXT affinity round trip.
const timeLayout = time.RFC3339Nano

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Row Types
// =============================================================================

// runRow represents a run row in the database.
type runRow struct {
	ID         string  `db:"id"`
	AccountID  string  `db:"account_id"`
	Project    string  `db:"project"`
	KeepID     string  `db:"keep_id"`
	Outcome    string  `db:"outcome"`
	Deleted    int     `db:"deleted"`
	Failed     int     `db:"failed"`
	Sweeps     int     `db:"sweeps"`
	DryRun     bool    `db:"dry_run"`
	Error      string  `db:"error_message"`
	StartedAt  string  `db:"started_at"`
	FinishedAt *string `db:"finished_at"`
}

// deletionRow represents a deletion row in the database.
type deletionRow struct {
	ID           int64  `db:"id"`
	RunID        string `db:"run_id"`
	DeploymentID string `db:"deployment_id"`
	Environment  string `db:"environment"`
	CreatedOn    string `db:"created_on"`
	Success      bool   `db:"success"`
	DeletedAt    string `db:"deleted_at"`
}

func (r runRow) toRun() (Run, error) {
	startedAt, err := time.Parse(timeLayout, r.StartedAt)
	if err != nil {
		return Run{}, fmt.Errorf("parse started_at: %w", err)
	}
	run := Run{
		ID:        r.ID,
		AccountID: r.AccountID,
		Project:   r.Project,
		KeepID:    r.KeepID,
		Outcome:   r.Outcome,
		Deleted:   r.Deleted,
		Failed:    r.Failed,
		Sweeps:    r.Sweeps,
		DryRun:    r.DryRun,
		Error:     r.Error,
		StartedAt: startedAt,
	}
	if r.FinishedAt != nil {
		finishedAt, err := time.Parse(timeLayout, *r.FinishedAt)
		if err != nil {
			return Run{}, fmt.Errorf("parse finished_at: %w", err)
		}
		run.FinishedAt = &finishedAt
	}
	return run, nil
}

// =============================================================================
// Run Operations
// =============================================================================

// CreateRun inserts a new run record with no finish time.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO runs (
			id, account_id, project, keep_id, outcome, deleted, failed,
			sweeps, dry_run, error_message, started_at, finished_at
		) VALUES (
			:id, :account_id, :project, :keep_id, :outcome, :deleted, :failed,
			:sweeps, :dry_run, :error_message, :started_at, NULL
		)`

	row := runRow{
		ID:        run.ID,
		AccountID: run.AccountID,
		Project:   run.Project,
		KeepID:    run.KeepID,
		Outcome:   run.Outcome,
		Deleted:   run.Deleted,
		Failed:    run.Failed,
		Sweeps:    run.Sweeps,
		DryRun:    run.DryRun,
		Error:     run.Error,
		StartedAt: run.StartedAt.UTC().Format(timeLayout),
	}

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return NewStoreError("CreateRun", "run", run.ID, "run already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateRun", "run", run.ID, err.Error(), err)
	}
	return nil
}

// FinishRun writes the final totals, outcome and finish time of a run.
func (s *SQLiteStore) FinishRun(ctx context.Context, run *Run) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}

	query := `
		UPDATE runs SET
			keep_id = ?, outcome = ?, deleted = ?, failed = ?, sweeps = ?,
			error_message = ?, finished_at = ?
		WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query,
		run.KeepID, run.Outcome, run.Deleted, run.Failed, run.Sweeps,
		run.Error, run.FinishedAt.UTC().Format(timeLayout), run.ID,
	)
	if err != nil {
		return NewStoreError("FinishRun", "run", run.ID, err.Error(), err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return NewStoreError("FinishRun", "run", run.ID, err.Error(), err)
	}
	if affected == 0 {
		return NewStoreError("FinishRun", "run", run.ID, "run not found", ErrNotFound)
	}
	return nil
}

// GetRun fetches one run by id.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	var row runRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM runs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewStoreError("GetRun", "run", id, "run not found", ErrNotFound)
	}
	if err != nil {
		return nil, NewStoreError("GetRun", "run", id, err.Error(), err)
	}

	run, err := row.toRun()
	if err != nil {
		return nil, NewStoreError("GetRun", "run", id, err.Error(), err)
	}
	return &run, nil
}

// ListRuns returns runs newest-first, optionally filtered to one project.
func (s *SQLiteStore) ListRuns(ctx context.Context, opts ListOptions) ([]Run, error) {
	opts = opts.Normalize()

	query := `SELECT * FROM runs`
	args := []any{}
	if opts.Project != "" {
		query += ` WHERE project = ?`
		args = append(args, opts.Project)
	}
	query += ` ORDER BY started_at DESC LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Offset)

	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, NewStoreError("ListRuns", "run", "", err.Error(), err)
	}

	runs := make([]Run, 0, len(rows))
	for _, row := range rows {
		run, err := row.toRun()
		if err != nil {
			return nil, NewStoreError("ListRuns", "run", row.ID, err.Error(), err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// =============================================================================
// Deletion Operations
// =============================================================================

// RecordDeletion appends one deletion outcome to a run.
func (s *SQLiteStore) RecordDeletion(ctx context.Context, deletion *Deletion) error {
	if deletion.DeletedAt.IsZero() {
		deletion.DeletedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO deletions (
			run_id, deployment_id, environment, created_on, success, deleted_at
		) VALUES (?, ?, ?, ?, ?, ?)`

	result, err := s.db.ExecContext(ctx, query,
		deletion.RunID, deletion.DeploymentID, deletion.Environment,
		deletion.CreatedOn, deletion.Success,
		deletion.DeletedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return NewStoreError("RecordDeletion", "deletion", deletion.DeploymentID, "run not found", ErrNotFound)
		}
		return NewStoreError("RecordDeletion", "deletion", deletion.DeploymentID, err.Error(), err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return NewStoreError("RecordDeletion", "deletion", deletion.DeploymentID, err.Error(), err)
	}
	deletion.ID = id
	return nil
}

// ListDeletionsByRun returns a run's deletions in insertion order.
func (s *SQLiteStore) ListDeletionsByRun(ctx context.Context, runID string) ([]Deletion, error) {
	var rows []deletionRow
	query := `SELECT * FROM deletions WHERE run_id = ? ORDER BY id ASC`
	if err := s.db.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, NewStoreError("ListDeletionsByRun", "deletion", runID, err.Error(), err)
	}

	deletions := make([]Deletion, 0, len(rows))
	for _, row := range rows {
		deletedAt, err := time.Parse(timeLayout, row.DeletedAt)
		if err != nil {
			return nil, NewStoreError("ListDeletionsByRun", "deletion", runID, err.Error(), err)
		}
		deletions = append(deletions, Deletion{
			ID:           row.ID,
			RunID:        row.RunID,
			DeploymentID: row.DeploymentID,
			Environment:  row.Environment,
			CreatedOn:    row.CreatedOn,
			Success:      row.Success,
			DeletedAt:    deletedAt,
		})
	}
	return deletions, nil
}
