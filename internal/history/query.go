// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/jats-engine/pkg/types"
)

// Run is one recorded conversion.
type Run struct {
	ID          string                  `json:"id" yaml:"id"`
	Source      string                  `json:"source" yaml:"source"`
	Format      types.SourceFormat      `json:"format,omitempty" yaml:"format,omitempty"`
	Success     bool                    `json:"success" yaml:"success"`
	Stage       types.Stage             `json:"stage" yaml:"stage"`
	FailedStage types.Stage             `json:"failed_stage,omitempty" yaml:"failed_stage,omitempty"`
	ErrorKind   types.ErrorKind         `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Error       string                  `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt   time.Time               `json:"started_at" yaml:"started_at"`
	Duration    time.Duration           `json:"duration" yaml:"duration"`
	Warnings    int                     `json:"warnings" yaml:"warnings"`
	Assets      int                     `json:"assets" yaml:"assets"`
	Options     types.ConversionOptions `json:"options" yaml:"options"`
	OutputDir   string                  `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
}

// Detail is a run with its full log and diagnostics.
type Detail struct {
	Run         `yaml:",inline"`
	Log         []string           `json:"log" yaml:"log"`
	Diagnostics []types.Diagnostic `json:"diagnostics" yaml:"diagnostics"`
}

// QueryOptions filter List.
type QueryOptions struct {
	// Source matches runs whose source contains this text.
	Source string

	// FailedOnly keeps failed runs.
	FailedOnly bool

	// Kind keeps runs that failed with this error kind.
	Kind types.ErrorKind

	// Limit caps the result count. Zero means 50.
	Limit int
}

const defaultLimit = 50

const runColumns = `id, source, format, success, stage, failed_stage, error_kind, error,
	started_at, duration_ms, warnings, assets, options, output_dir`

// List returns recorded runs, newest first.
func (s *Store) List(ctx context.Context, opts QueryOptions) ([]Run, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(`SELECT ` + runColumns + ` FROM runs WHERE 1=1`)
	if opts.Source != "" {
		qb.WriteString(` AND instr(source, ?) > 0`)
		args = append(args, opts.Source)
	}
	if opts.FailedOnly {
		qb.WriteString(` AND success = 0`)
	}
	if opts.Kind != "" {
		qb.WriteString(` AND error_kind = ?`)
		args = append(args, string(opts.Kind))
	}
	qb.WriteString(` ORDER BY started_at DESC, id LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Get returns one run by id or unique id prefix.
func (s *Store) Get(ctx context.Context, id string) (*Detail, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE substr(id, 1, length(?)) = ? ORDER BY id LIMIT 2`, id, id)
	if err != nil {
		return nil, fmt.Errorf("querying run %s: %w", id, err)
	}
	var matches []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	switch {
	case id == "" || len(matches) == 0:
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	case len(matches) > 1 && matches[0].ID != id:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
	}

	d := &Detail{Run: matches[0]}
	if d.Log, err = s.logLines(ctx, d.ID); err != nil {
		return nil, err
	}
	if d.Diagnostics, err = s.diagnostics(ctx, d.ID); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Store) logLines(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT line FROM log_lines WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying log: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("scanning log line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (s *Store) diagnostics(ctx context.Context, runID string) ([]types.Diagnostic, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT level, stage, message FROM diagnostics WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying diagnostics: %w", err)
	}
	defer rows.Close()

	var diags []types.Diagnostic
	for rows.Next() {
		var (
			d            types.Diagnostic
			level, stage string
		)
		if err := rows.Scan(&level, &stage, &d.Message); err != nil {
			return nil, fmt.Errorf("scanning diagnostic: %w", err)
		}
		d.Level = types.Level(level)
		d.Stage = types.Stage(stage)
		diags = append(diags, d)
	}
	return diags, rows.Err()
}

func scanRun(rows *sql.Rows) (Run, error) {
	var (
		r                                    Run
		format, failedStage, errorKind, errS sql.NullString
		options, outputDir                   sql.NullString
		stage, startedAt                     string
		durationMS, warnings, assets         sql.NullInt64
	)
	if err := rows.Scan(&r.ID, &r.Source, &format, &r.Success, &stage, &failedStage, &errorKind, &errS,
		&startedAt, &durationMS, &warnings, &assets, &options, &outputDir); err != nil {
		return Run{}, fmt.Errorf("scanning run: %w", err)
	}

	r.Format = types.SourceFormat(format.String)
	r.Stage = types.Stage(stage)
	r.FailedStage = types.Stage(failedStage.String)
	r.ErrorKind = types.ErrorKind(errorKind.String)
	r.Error = errS.String
	r.Duration = time.Duration(durationMS.Int64) * time.Millisecond
	r.Warnings = int(warnings.Int64)
	r.Assets = int(assets.Int64)
	r.OutputDir = outputDir.String
	if t, err := time.Parse(timeLayout, startedAt); err == nil {
		r.StartedAt = t
	}
	if options.Valid && options.String != "" {
		if err := json.Unmarshal([]byte(options.String), &r.Options); err != nil {
			return Run{}, fmt.Errorf("decoding options of run %s: %w", r.ID, err)
		}
	}
	return r, nil
}
