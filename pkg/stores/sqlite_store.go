package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	"github.com/bootkit/bootkit/pkg/engine"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

// SQLiteStore is the run journal. It records what each run did; planning
// never reads it back.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Config holds SQLite store configuration
type Config struct {
	Path string
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &SQLiteStore{path: cfg.Path}, nil
}

// Open creates, initializes and migrates a store in one call.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	store, err := NewSQLiteStore(Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// Init opens the database file, creating its directory if needed.
func (s *SQLiteStore) Init(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create journal directory: %w", err)
	}

	dsn := s.path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// One writer per process; a single connection keeps pragmas consistent.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// RecordRun stores a run and its results in one transaction. An empty
// run.ID is replaced with a new UUID.
func (s *SQLiteStore) RecordRun(ctx context.Context, run *Run, results []engine.ExecutionResult) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if err := run.Status.Validate(); err != nil {
		return err
	}
	run.Counts = CountOutcomes(results)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, plan_id, target, package_manager, manifest_path, dry_run, status,
			succeeded, already_satisfied, failed, warned, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.PlanID,
		run.Target,
		run.PackageManager,
		run.ManifestPath,
		run.DryRun,
		string(run.Status),
		run.Counts.Succeeded,
		run.Counts.AlreadySatisfied,
		run.Counts.Failed,
		run.Counts.Warned,
		run.Error,
		run.StartedAt.UTC(),
		run.CompletedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO action_results (run_id, seq, action_id, category, kind, outcome, cause, exit_code, command, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare result insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range results {
		rec := NewActionRecord(run.ID, i, r)
		if _, err := stmt.ExecContext(ctx,
			rec.RunID,
			rec.Seq,
			rec.ActionID,
			string(rec.Category),
			string(rec.Kind),
			string(rec.Outcome),
			rec.Cause,
			rec.ExitCode,
			rec.Command,
			rec.Duration.Milliseconds(),
		); err != nil {
			return fmt.Errorf("failed to record result %s: %w", rec.ActionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

const runColumns = `id, plan_id, target, package_manager, manifest_path, dry_run, status,
	succeeded, already_satisfied, failed, warned, error, started_at, completed_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var status string
	var errMsg sql.NullString
	err := row.Scan(
		&run.ID,
		&run.PlanID,
		&run.Target,
		&run.PackageManager,
		&run.ManifestPath,
		&run.DryRun,
		&status,
		&run.Counts.Succeeded,
		&run.Counts.AlreadySatisfied,
		&run.Counts.Failed,
		&run.Counts.Warned,
		&errMsg,
		&run.StartedAt,
		&run.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Status = engine.RunStatus(status)
	if errMsg.Valid {
		run.Error = &errMsg.String
	}
	return run, nil
}

// GetRun retrieves a run by ID
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit, offset int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListResults returns the recorded results of a run in execution order.
func (s *SQLiteStore) ListResults(ctx context.Context, runID string) ([]*ActionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, action_id, category, kind, outcome, cause, exit_code, command, duration_ms
		FROM action_results
		WHERE run_id = ?
		ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var records []*ActionRecord
	for rows.Next() {
		rec := &ActionRecord{}
		var category, kind, outcome string
		var durationMs int64
		if err := rows.Scan(
			&rec.RunID,
			&rec.Seq,
			&rec.ActionID,
			&category,
			&kind,
			&outcome,
			&rec.Cause,
			&rec.ExitCode,
			&rec.Command,
			&durationMs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		rec.Category = engine.Category(category)
		rec.Kind = engine.ActionKind(kind)
		rec.Outcome = engine.Outcome(outcome)
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, rec)
	}
	return records, rows.Err()
}

// PruneRuns keeps the newest keep runs and deletes the rest along with
// their results. It returns the number of runs removed.
func (s *SQLiteStore) PruneRuns(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC, id LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return res.RowsAffected()
}

// HealthCheck verifies the database is reachable.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}
