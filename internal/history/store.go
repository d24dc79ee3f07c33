// Package history keeps a SQLite journal of bootstrap runs so operators can
// see which stages ran, skipped or failed across attempts.
package history

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/sabiqazhar/frappe-env-setup/internal/orchestrator"
)

// timeLayout is fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

//go:embed migrations/*.sql
var migrations embed.FS

// Store persists RunResults.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal at path and runs all pending
// migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Record writes run and its stage results, replacing an earlier record with
// the same id.
func (s *Store) Record(ctx context.Context, run *orchestrator.RunResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, status, started_at, finished_at, log_file, error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			finished_at = excluded.finished_at,
			log_file = excluded.log_file,
			error = excluded.error`,
		run.ID, run.Status, formatTime(run.StartedAt), formatTime(run.FinishedAt), run.LogFile, run.Error,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM stage_results WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("clear stage results: %w", err)
	}
	for i, st := range run.Stages {
		warnings, err := json.Marshal(nonNil(st.Warnings))
		if err != nil {
			return fmt.Errorf("encode warnings: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO stage_results (run_id, position, name, status, detail, error, warnings, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, st.Name, string(st.Status), st.Detail, st.Error, string(warnings), st.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("insert stage %s: %w", st.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first, with their stage results.
func (s *Store) Recent(ctx context.Context, limit int) ([]orchestrator.RunResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, started_at, finished_at, log_file, error
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []orchestrator.RunResult
	for rows.Next() {
		var (
			r                 orchestrator.RunResult
			started, finished string
		)
		if err := rows.Scan(&r.ID, &r.Status, &started, &finished, &r.LogFile, &r.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if r.FinishedAt, err = parseTime(finished); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	rows.Close()

	for i := range runs {
		stages, err := s.stages(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Stages = stages
	}
	return runs, nil
}

func (s *Store) stages(ctx context.Context, runID string) ([]orchestrator.StageResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, status, detail, error, warnings, duration_ms
		FROM stage_results WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query stages for %s: %w", runID, err)
	}
	defer rows.Close()

	var out []orchestrator.StageResult
	for rows.Next() {
		var (
			sr         orchestrator.StageResult
			status     string
			warnings   string
			durationMs int64
		)
		if err := rows.Scan(&sr.Name, &status, &sr.Detail, &sr.Error, &warnings, &durationMs); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		sr.Status = orchestrator.Status(status)
		sr.Duration = time.Duration(durationMs) * time.Millisecond
		if err := json.Unmarshal([]byte(warnings), &sr.Warnings); err != nil {
			return nil, fmt.Errorf("decode warnings for %s: %w", sr.Name, err)
		}
		if len(sr.Warnings) == 0 {
			sr.Warnings = nil
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
