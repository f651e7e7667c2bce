// Package manifest records every run and the outcome of every feature in a
// SQLite database kept next to the rendered artifacts.
package manifest

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes incompatibly.
const schemaVersion = 1

// FileName is the manifest database name inside the output root.
const FileName = "manifest.db"

// ErrSchemaMismatch indicates the database was written by another schema
// version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Status of a recorded feature.
type Status string

const (
	StatusRendered Status = "rendered"
	StatusFailed   Status = "failed"
)

// RunStatus of a recorded run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// Outcome is the final state of one (source, feature) pair.
type Outcome struct {
	RunID      string
	SourceKey  string
	Source     string
	Feature    string
	Status     Status
	Stage      string
	Path       string
	RawPath    string
	Error      string
	RecordedAt time.Time
}

// Run is one recorded batch.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	OutputRoot string
	ConfigJSON string
	Status     RunStatus
	Rendered   int
	Failed     int
}

// Store manages manifest persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure manifest directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// BeginRun inserts a running run.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return errors.New("run id is empty")
	}
	started := run.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO runs (id, started_at, output_root, config_json, status) VALUES (?, ?, ?, ?, ?)`,
		run.ID,
		started.UTC().Format(time.RFC3339Nano),
		run.OutputRoot,
		nullableString(run.ConfigJSON),
		RunRunning,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Record upserts the outcome of one feature.
func (s *Store) Record(ctx context.Context, o Outcome) error {
	recorded := o.RecordedAt
	if recorded.IsZero() {
		recorded = time.Now()
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO artifacts (
            run_id, source_key, source_name, feature, status, stage,
            path, raw_path, error_message, recorded_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (run_id, source_name, feature) DO UPDATE SET
            status = excluded.status, stage = excluded.stage, path = excluded.path,
            raw_path = excluded.raw_path, error_message = excluded.error_message,
            recorded_at = excluded.recorded_at`,
		o.RunID,
		o.SourceKey,
		o.Source,
		o.Feature,
		o.Status,
		nullableString(o.Stage),
		nullableString(o.Path),
		nullableString(o.RawPath),
		nullableString(o.Error),
		recorded.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record %s/%s: %w", o.Source, o.Feature, err)
	}
	return nil
}

// FinishRun stamps the run with its final status and counts.
func (s *Store) FinishRun(ctx context.Context, runID string) (*Run, error) {
	stats, err := s.Stats(ctx, runID)
	if err != nil {
		return nil, err
	}
	status := RunCompleted
	switch {
	case stats[StatusRendered] == 0:
		status = RunFailed
	case stats[StatusFailed] > 0:
		status = RunPartial
	}

	_, err = s.execWithRetry(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, rendered = ?, failed = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		status,
		stats[StatusRendered],
		stats[StatusFailed],
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("finish run: %w", err)
	}
	return s.GetRun(ctx, runID)
}

// GetRun returns a run, or nil when it does not exist.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// Runs lists runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Outcomes returns the outcomes of a run ordered by source then feature
// insertion order.
func (s *Store) Outcomes(ctx context.Context, runID string, statuses ...Status) ([]Outcome, error) {
	query := `SELECT run_id, source_key, source_name, feature, status, stage, path, raw_path,
        error_message, recorded_at FROM artifacts WHERE run_id = ?`
	args := []any{runID}
	if len(statuses) > 0 {
		query += ` AND status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, st := range statuses {
			args = append(args, st)
		}
	}
	query += ` ORDER BY source_name, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var (
			o                             Outcome
			status                        string
			stage, path, rawPath, errText sql.NullString
			recordedRaw                   string
		)
		if err := rows.Scan(&o.RunID, &o.SourceKey, &o.Source, &o.Feature, &status,
			&stage, &path, &rawPath, &errText, &recordedRaw); err != nil {
			return nil, err
		}
		o.Status = Status(status)
		o.Stage = stage.String
		o.Path = path.String
		o.RawPath = rawPath.String
		o.Error = errText.String
		if t, err := time.Parse(time.RFC3339Nano, recordedRaw); err == nil {
			o.RecordedAt = t
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Stats counts a run's outcomes by status.
func (s *Store) Stats(ctx context.Context, runID string) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(1) FROM artifacts WHERE run_id = ? GROUP BY status`, runID)
	if err != nil {
		return nil, fmt.Errorf("manifest stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

const runColumns = "id, started_at, finished_at, output_root, config_json, status, rendered, failed"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run         Run
		startedRaw  string
		finishedRaw sql.NullString
		configJSON  sql.NullString
		status      string
	)
	if err := scanner.Scan(&run.ID, &startedRaw, &finishedRaw, &run.OutputRoot, &configJSON,
		&status, &run.Rendered, &run.Failed); err != nil {
		return nil, err
	}
	run.ConfigJSON = configJSON.String
	run.Status = RunStatus(status)
	if t, err := time.Parse(time.RFC3339Nano, startedRaw); err == nil {
		run.StartedAt = t
	}
	if finishedRaw.Valid {
		if t, err := time.Parse(time.RFC3339Nano, finishedRaw.String); err == nil {
			run.FinishedAt = &t
		}
	}
	return &run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
