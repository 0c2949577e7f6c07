package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/beamline/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// fixedClock returns a clock advancing one minute per call.
func fixedClock() func() time.Time {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Minute)
		return now
	}
}

func TestOpen_RunsMigrations(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "journal.db"), nil)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	v, err := s.Version()
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	// idempotent
	require.NoError(t, s.Migrate())
}

func TestStore_RunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	s.now = fixedClock()

	run, err := s.CreateRun(ctx, "parse")
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.NotEmpty(t, run.ID)

	results := []*Result{
		{RunID: run.ID, Index: 0, Sentence: "Le chat dort .", Decisions: "Shift Reduce", Score: -1.5, Steps: 8},
		{RunID: run.ID, Index: 1, Sentence: "Il pleut .", Decisions: "Shift", Score: -0.5, Steps: 2, Partial: true},
		{RunID: run.ID, Index: 2, Sentence: "?", Error: "no solution"},
	}
	for _, r := range results {
		require.NoError(t, s.RecordResult(ctx, r))
	}
	require.NoError(t, s.CompleteRun(ctx, run.ID, RunStatusCompleted, ""))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, got.Status)
	assert.Equal(t, 3, got.Sentences)
	assert.Equal(t, 1, got.Partial)
	assert.Equal(t, 1, got.Failed)
	assert.Empty(t, got.Error)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.After(got.StartedAt))

	stored, err := s.Results(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, results, stored)
}

func TestStore_ListRuns(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	s.now = fixedClock()

	var ids []string
	for _, cmd := range []string{"parse", "oracle", "serve"} {
		run, err := s.CreateRun(ctx, cmd)
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}
	require.NoError(t, s.CompleteRun(ctx, ids[0], RunStatusFailed, "stopped on error"))

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)

	runs, err = s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, RunStatusFailed, runs[2].Status)
	assert.Equal(t, "stopped on error", runs[2].Error)
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	_, err := s.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	err = s.CompleteRun(ctx, "missing", RunStatusCompleted, "")
	assert.ErrorIs(t, err, ErrRunNotFound)

	err = s.RecordResult(ctx, &Result{RunID: "missing", Sentence: "x"})
	assert.Error(t, err, "foreign key must reject results of unknown runs")
}

func TestStore_DatabaseErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		call      func(s *Store) error
		errMsg    string
	}{
		{
			name: "create run",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO runs").WillReturnError(assert.AnError)
			},
			call: func(s *Store) error {
				_, err := s.CreateRun(ctx, "parse")
				return err
			},
			errMsg: "failed to create run",
		},
		{
			name: "record result",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO results").WillReturnError(assert.AnError)
			},
			call: func(s *Store) error {
				return s.RecordResult(ctx, &Result{RunID: "r", Index: 4})
			},
			errMsg: "failed to record result 4",
		},
		{
			name: "complete run",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE runs").WillReturnError(assert.AnError)
			},
			call: func(s *Store) error {
				return s.CompleteRun(ctx, "r", RunStatusCompleted, "")
			},
			errMsg: "failed to complete run",
		},
		{
			name: "list runs",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT (.+) FROM runs").WillReturnError(assert.AnError)
			},
			call: func(s *Store) error {
				_, err := s.ListRuns(ctx, 5)
				return err
			},
			errMsg: "failed to list runs",
		},
		{
			name: "bad timestamp",
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "command", "status", "started_at", "completed_at", "sentences", "partial", "failed", "error"}).
					AddRow("r", "parse", "running", "yesterday", nil, 0, 0, 0, nil)
				mock.ExpectQuery("SELECT (.+) FROM runs").WillReturnRows(rows)
			},
			call: func(s *Store) error {
				_, err := s.GetRun(ctx, "r")
				return err
			},
			errMsg: "invalid timestamp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer func() { _ = db.Close() }()
			tt.setupMock(mock)

			err = tt.call(New(db, testutil.NewTestLogger(t)))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStore_NotOpened(t *testing.T) {
	s := &Store{}
	_, err := s.CreateRun(context.Background(), "parse")
	assert.ErrorIs(t, err, errNotOpen)
	assert.ErrorIs(t, s.Migrate(), errNotOpen)
	assert.NoError(t, s.Close())
}
