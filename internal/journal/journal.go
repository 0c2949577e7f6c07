// Package journal records batch and server decoding runs in a SQLite
// database: one row per run and one row per decoded sentence.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run is one invocation of the pipeline.
type Run struct {
	ID          string     `json:"id"`
	Command     string     `json:"command"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Sentences   int        `json:"sentences"`
	Partial     int        `json:"partial"`
	Failed      int        `json:"failed"`
	Error       string     `json:"error,omitempty"`
}

// Result is the outcome of decoding one sentence within a run.
type Result struct {
	RunID     string  `json:"run_id"`
	Index     int     `json:"index"`
	Sentence  string  `json:"sentence"`
	Decisions string  `json:"decisions"`
	Score     float64 `json:"score"`
	Steps     int     `json:"steps"`
	Partial   bool    `json:"partial"`
	Error     string  `json:"error,omitempty"`
}

// Store is the SQLite-backed journal. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the journal at path and runs migrations.
// Use ":memory:" for an in-memory journal.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// one connection keeps ":memory:" databases shared and serialises writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := New(db, logger)
	s.logger.Debug("journal opened", "path", path)
	return s, nil
}

// New wraps an already migrated database.
func New(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{db: db, logger: logger, now: time.Now}
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// CreateRun starts a new run.
func (s *Store) CreateRun(ctx context.Context, command string) (*Run, error) {
	if s.db == nil {
		return nil, errNotOpen
	}

	run := &Run{
		ID:        uuid.New().String(),
		Command:   command,
		Status:    RunStatusRunning,
		StartedAt: s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, command, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Command, string(run.Status), formatTime(run.StartedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// RecordResult stores one sentence outcome.
func (s *Store) RecordResult(ctx context.Context, r *Result) error {
	if s.db == nil {
		return errNotOpen
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (run_id, idx, sentence, decisions, score, steps, partial, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Index, r.Sentence, r.Decisions, r.Score, r.Steps, r.Partial, nullString(r.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to record result %d: %w", r.Index, err)
	}
	return nil
}

// CompleteRun closes a run, computing its counters from the recorded
// results.
func (s *Store) CompleteRun(ctx context.Context, id string, status RunStatus, errMsg string) error {
	if s.db == nil {
		return errNotOpen
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET
		     status = ?,
		     completed_at = ?,
		     error = ?,
		     sentences = (SELECT COUNT(*) FROM results WHERE run_id = runs.id),
		     partial = (SELECT COUNT(*) FROM results WHERE run_id = runs.id AND partial = 1),
		     failed = (SELECT COUNT(*) FROM results WHERE run_id = runs.id AND error IS NOT NULL)
		 WHERE id = ?`,
		string(status), formatTime(s.now().UTC()), nullString(errMsg), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// GetRun returns a run by id.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, errNotOpen
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, command, status, started_at, completed_at, sentences, partial, failed, error
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, errNotOpen
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, command, status, started_at, completed_at, sentences, partial, failed, error
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

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

// Results returns the recorded results of a run in sentence order.
func (s *Store) Results(ctx context.Context, runID string) ([]*Result, error) {
	if s.db == nil {
		return nil, errNotOpen
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, idx, sentence, decisions, score, steps, partial, error
		 FROM results WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*Result
	for rows.Next() {
		r := &Result{}
		var errMsg sql.NullString
		if err := rows.Scan(&r.RunID, &r.Index, &r.Sentence, &r.Decisions, &r.Score, &r.Steps, &r.Partial, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.Error = errMsg.String
		results = append(results, r)
	}
	return results, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	run := &Run{}
	var status, startedAt string
	var completedAt, errMsg sql.NullString

	if err := row.Scan(&run.ID, &run.Command, &status, &startedAt, &completedAt,
		&run.Sentences, &run.Partial, &run.Failed, &errMsg); err != nil {
		return nil, err
	}

	run.Status = RunStatus(status)
	t, err := parseTime(startedAt)
	if err != nil {
		return nil, err
	}
	run.StartedAt = t
	if completedAt.Valid {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return nil, err
		}
		run.CompletedAt = &t
	}
	run.Error = errMsg.String
	return run, nil
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
