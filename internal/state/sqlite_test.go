package state

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapdc/internal/testutil"
	"github.com/leapstack-labs/leapdc/pkg/verify"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), ":memory:", testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_OpenMigrates(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	store, err := Open(ctx, path, nil)
	require.NoError(t, err)
	assert.Equal(t, path, store.Path())

	version, err := store.MigrationVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
	require.NoError(t, store.Close())

	// Reopening an existing database is a no-op migration.
	store, err = Open(ctx, path, nil)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestStore_NotOpened(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil)

	_, err := s.GetRun(ctx, "x")
	assert.EqualError(t, err, "database not opened")
	_, err = s.ListRuns(ctx, 10)
	assert.EqualError(t, err, "database not opened")
	_, err = s.RecordRun(ctx, RunInput{})
	assert.EqualError(t, err, "database not opened")
	assert.EqualError(t, s.Migrate(ctx), "database not opened")
	assert.NoError(t, s.Close())
}

func TestStore_RecordRun(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		input RunInput
		check func(t *testing.T, store *Store, run *Run)
	}{
		{
			name: "holds",
			input: RunInput{
				Name:   "ucc",
				Source: "TestFD.csv",
				Engine: "memory",
				Result: &verify.Result{
					Constraint:  "!(t.Col0 == s.Col0 and t.Col1 == s.Col1)",
					Holds:       true,
					Strategy:    verify.StrategyAllEquality,
					RowsChecked: 6,
					Elapsed:     3 * time.Millisecond,
				},
			},
			check: func(t *testing.T, store *Store, run *Run) {
				assert.True(t, run.Holds)
				assert.Equal(t, "all-equality", run.Strategy)
				assert.Equal(t, 6, run.Rows)
				assert.Equal(t, 3*time.Millisecond, run.Elapsed)
				assert.Empty(t, run.Error)

				viols, err := store.ListViolations(ctx, run.ID)
				require.NoError(t, err)
				assert.Empty(t, viols)
			},
		},
		{
			name: "violated",
			input: RunInput{
				Source: "TestFD.csv",
				Engine: "sqlite",
				Result: &verify.Result{
					Constraint: "!(j.Col0 == s.Col0 and t.C <= t.B)",
					Strategy:   verify.StrategySQL,
					Violations: []verify.Violation{{Rows: []int{0, 1, 2}}, {Rows: []int{0, 1, 3}}},
					Truncated:  true,
				},
			},
			check: func(t *testing.T, store *Store, run *Run) {
				assert.False(t, run.Holds)
				assert.True(t, run.Truncated)
				assert.Equal(t, 2, run.ViolationCount)

				viols, err := store.ListViolations(ctx, run.ID)
				require.NoError(t, err)
				assert.Equal(t, []verify.Violation{{Rows: []int{0, 1, 2}}, {Rows: []int{0, 1, 3}}}, viols)
			},
		},
		{
			name: "failed",
			input: RunInput{
				Constraint: "!(t.X == s.X)",
				Source:     "TestFD.csv",
				Engine:     "memory",
				Err:        errors.New("unknown column X"),
			},
			check: func(t *testing.T, _ *Store, run *Run) {
				assert.False(t, run.Holds)
				assert.Equal(t, "!(t.X == s.X)", run.Constraint)
				assert.Equal(t, "unknown column X", run.Error)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestStore(t)

			recorded, err := store.RecordRun(ctx, tt.input)
			require.NoError(t, err)
			require.NotEmpty(t, recorded.ID)

			got, err := store.GetRun(ctx, recorded.ID)
			require.NoError(t, err)
			assert.Equal(t, recorded.ID, got.ID)
			assert.Equal(t, recorded.Source, got.Source)
			assert.Equal(t, recorded.Engine, got.Engine)
			assert.WithinDuration(t, recorded.StartedAt, got.StartedAt, time.Millisecond)
			tt.check(t, store, got)
		})
	}
}

func TestStore_ListRuns(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, name := range []string{"a", "b", "a"} {
		_, err := store.RecordRun(ctx, RunInput{
			Name:       name,
			Constraint: "!(t.A == s.A)",
			Source:     "data.csv",
			Engine:     "memory",
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			Result:     &verify.Result{Holds: i%2 == 0, RowsChecked: i},
		})
		require.NoError(t, err)
	}

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []int{2, 1, 0}, []int{runs[0].Rows, runs[1].Rows, runs[2].Rows}, "newest first")

	runs, err = store.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	latest, err := store.LatestRunByName(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 2, latest.Rows)

	none, err := store.LatestRunByName(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestStore_DeleteRun(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	run, err := store.RecordRun(ctx, RunInput{
		Constraint: "!(t.A == s.A)",
		Source:     "data.csv",
		Engine:     "memory",
		Result:     &verify.Result{Violations: []verify.Violation{{Rows: []int{0, 1}}}},
	})
	require.NoError(t, err)

	require.NoError(t, store.DeleteRun(ctx, run.ID))

	_, err = store.GetRun(ctx, run.ID)
	assert.ErrorIs(t, err, ErrRunNotFound)

	viols, err := store.ListViolations(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, viols, "violations cascade with their run")

	assert.ErrorIs(t, store.DeleteRun(ctx, run.ID), ErrRunNotFound)
}

func TestStore_FindRun(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	run, err := store.RecordRun(ctx, RunInput{Constraint: "!(t.A == s.A)", Source: "a.csv", Engine: "memory",
		Result: &verify.Result{Holds: true}})
	require.NoError(t, err)

	got, err := store.FindRun(ctx, run.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)

	got, err = store.FindRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)

	_, err = store.FindRun(ctx, "zzzz")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = store.FindRun(ctx, "")
	assert.ErrorIs(t, err, ErrRunNotFound)

	for _, id := range []string{"abc-1", "abc-2"} {
		_, err = store.db.ExecContext(ctx, `INSERT INTO runs (id, name, dc, source, engine, strategy, holds,
			violation_count, truncated, rows_checked, started_at, elapsed_ns)
			VALUES (?, '', 'x', 'x.csv', 'memory', 'general', 1, 0, 0, 0, ?, 0)`, id, time.Now().UTC())
		require.NoError(t, err)
	}
	_, err = store.FindRun(ctx, "abc")
	assert.ErrorIs(t, err, ErrAmbiguousRunID)

	got, err = store.FindRun(ctx, "abc-2")
	require.NoError(t, err)
	assert.Equal(t, "abc-2", got.ID)
}
