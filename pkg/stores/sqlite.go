// Package stores persists run history so past applies can be listed and
// inspected after the fact. The in-run report itself stays in memory; the
// store is an optional audit trail.
package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/droverhq/drover/pkg/playbook"
	"github.com/droverhq/drover/pkg/run"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunSummary is one row of run history.
type RunSummary struct {
	ID        string
	Play      string
	DryRun    bool
	Failed    bool
	StartedAt time.Time
	Duration  time.Duration
	Hosts     int
}

// SQLiteStore records run reports in a local SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Open creates the store, opens the database and applies migrations.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// SaveReport records a run report and all of its per-host results.
func (s *SQLiteStore) SaveReport(ctx context.Context, report *run.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	failed := 0
	if report.Failed() {
		failed = 1
	}
	dryRun := 0
	if report.DryRun {
		dryRun = 1
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, play, dry_run, failed, started_at, duration_ms) VALUES (?, ?, ?, ?, ?, ?)`,
		report.ID, report.Play, dryRun, failed, report.StartedAt.UTC(), report.Duration.Milliseconds(),
	); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, host := range report.Hosts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO host_reports (run_id, host, state, error) VALUES (?, ?, ?, ?)`,
			report.ID, host.Host, string(host.State), host.Error,
		); err != nil {
			return fmt.Errorf("failed to insert host report: %w", err)
		}

		for seq, result := range host.Results {
			isHandler := 0
			if result.Handler {
				isHandler = 1
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO task_results (run_id, host, seq, task, module, status, reason, error, error_kind, is_handler, duration_ms)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				report.ID, host.Host, seq, result.Task, string(result.Module), string(result.Status),
				result.Reason, result.Error, string(result.Kind), isHandler, result.Duration.Milliseconds(),
			); err != nil {
				return fmt.Errorf("failed to insert task result: %w", err)
			}
		}
	}

	return tx.Commit()
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.play, r.dry_run, r.failed, r.started_at, r.duration_ms,
		       (SELECT COUNT(*) FROM host_reports h WHERE h.run_id = r.id)
		FROM runs r
		ORDER BY r.started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var (
			sum        RunSummary
			dryRun     int
			failed     int
			durationMS int64
		)
		if err := rows.Scan(&sum.ID, &sum.Play, &dryRun, &failed, &sum.StartedAt, &durationMS, &sum.Hosts); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		sum.DryRun = dryRun != 0
		sum.Failed = failed != 0
		sum.Duration = time.Duration(durationMS) * time.Millisecond
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// ListResults returns the task results of one run, grouped by host in
// execution order.
func (s *SQLiteStore) ListResults(ctx context.Context, runID string) ([]run.TaskResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task, module, status, reason, error, error_kind, is_handler, duration_ms
		FROM task_results
		WHERE run_id = ?
		ORDER BY host, seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query task results: %w", err)
	}
	defer rows.Close()

	var results []run.TaskResult
	for rows.Next() {
		var (
			r          run.TaskResult
			module     string
			status     string
			kind       string
			isHandler  int
			durationMS int64
		)
		if err := rows.Scan(&r.Task, &module, &status, &r.Reason, &r.Error, &kind, &isHandler, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan task result: %w", err)
		}
		r.Module = playbook.ModuleType(module)
		r.Status = run.TaskStatus(status)
		r.Kind = run.Kind(kind)
		r.Handler = isHandler != 0
		r.Duration = time.Duration(durationMS) * time.Millisecond
		results = append(results, r)
	}
	return results, rows.Err()
}
