// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history keeps an audit trail of CLI conversions in SQLite: one
// row per run plus its full log and diagnostics, so a failed conversion can
// be inspected long after its error log was moved or deleted.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/jats-engine/pkg/types"
)

const (
	dbFile = "history.db"

	// timeLayout is fixed width so stored timestamps sort as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// ErrNotFound is returned when no run matches an id.
var ErrNotFound = errors.New("run not found")

// Store manages the history database.
type Store struct {
	db  *sql.DB
	dir string
}

// Entry describes one conversion to record.
type Entry struct {
	Result    *types.ConversionResult
	Source    string
	Format    types.SourceFormat
	Options   types.ConversionOptions
	OutputDir string
}

// Open opens or creates dir/history.db and its schema.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, dbFile)+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, dir: dir}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dir returns the directory holding the database and exports.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			format TEXT,
			success INTEGER NOT NULL,
			stage TEXT NOT NULL,
			failed_stage TEXT,
			error_kind TEXT,
			error TEXT,
			started_at TEXT NOT NULL,
			duration_ms INTEGER,
			warnings INTEGER,
			assets INTEGER,
			options TEXT,
			output_dir TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source)`,
		`CREATE TABLE IF NOT EXISTS log_lines (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			line TEXT NOT NULL,
			PRIMARY KEY (run_id, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS diagnostics (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			level TEXT NOT NULL,
			stage TEXT,
			message TEXT NOT NULL,
			PRIMARY KEY (run_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_diagnostics_level ON diagnostics(level)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record stores one conversion with its log and diagnostics. Recording the
// same run id again replaces the earlier row.
func (s *Store) Record(ctx context.Context, e Entry) error {
	r := e.Result
	if r == nil {
		return errors.New("recording run: nil result")
	}

	optsJSON, err := json.Marshal(e.Options)
	if err != nil {
		return fmt.Errorf("encoding options: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, r.RunID); err != nil {
		return fmt.Errorf("replacing run %s: %w", r.RunID, err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, source, format, success, stage, failed_stage, error_kind, error,
			started_at, duration_ms, warnings, assets, options, output_dir)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, e.Source, string(e.Format), r.Success, string(r.Stage), string(r.FailedStage),
		string(r.ErrorKind), r.Error, r.StartedAt.UTC().Format(timeLayout),
		r.Duration.Milliseconds(), r.Warnings(), len(r.Media), string(optsJSON), e.OutputDir,
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", r.RunID, err)
	}

	lineStmt, err := tx.PrepareContext(ctx, `INSERT INTO log_lines (run_id, seq, line) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing log insert: %w", err)
	}
	defer lineStmt.Close()
	for i, line := range r.Log {
		if _, err := lineStmt.ExecContext(ctx, r.RunID, i, line); err != nil {
			return fmt.Errorf("inserting log line: %w", err)
		}
	}

	diagStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO diagnostics (run_id, seq, level, stage, message) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing diagnostic insert: %w", err)
	}
	defer diagStmt.Close()
	for i, d := range r.Diagnostics {
		if _, err := diagStmt.ExecContext(ctx, r.RunID, i, string(d.Level), string(d.Stage), d.Message); err != nil {
			return fmt.Errorf("inserting diagnostic: %w", err)
		}
	}

	return tx.Commit()
}

// Prune deletes runs started before cutoff and returns how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`,
		cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("pruning history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning history: %w", err)
	}
	return int(n), nil
}
