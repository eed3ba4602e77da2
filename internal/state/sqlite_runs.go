package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leapdc/pkg/verify"
)

// Lookup errors.
var (
	ErrRunNotFound    = errors.New("run not found")
	ErrAmbiguousRunID = errors.New("run id prefix matches several runs")
)

// Run is one recorded verification.
type Run struct {
	ID             string        `json:"id"`
	Name           string        `json:"name,omitempty"`
	Constraint     string        `json:"constraint"`
	Source         string        `json:"source"`
	Engine         string        `json:"engine"`
	Strategy       string        `json:"strategy,omitempty"`
	Holds          bool          `json:"holds"`
	ViolationCount int           `json:"violation_count"`
	Truncated      bool          `json:"truncated"`
	Rows           int           `json:"rows"`
	StartedAt      time.Time     `json:"started_at"`
	Elapsed        time.Duration `json:"elapsed_ns"`
	Error          string        `json:"error,omitempty"`
}

// RunInput describes a finished verification to record.
type RunInput struct {
	Name       string
	Constraint string
	Source     string
	Engine     string
	StartedAt  time.Time
	Result     *verify.Result
	Err        error
}

// RecordRun stores a run and its violations in a single transaction.
func (s *Store) RecordRun(ctx context.Context, in RunInput) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &Run{
		ID:         generateID(),
		Name:       in.Name,
		Constraint: in.Constraint,
		Source:     in.Source,
		Engine:     in.Engine,
		StartedAt:  in.StartedAt.UTC(),
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	var violations []verify.Violation
	if res := in.Result; res != nil {
		if res.Constraint != "" {
			run.Constraint = res.Constraint
		}
		run.Strategy = string(res.Strategy)
		run.Holds = res.Holds
		run.ViolationCount = len(res.Violations)
		run.Truncated = res.Truncated
		run.Rows = res.RowsChecked
		run.Elapsed = res.Elapsed
		violations = res.Violations
	}
	if in.Err != nil {
		run.Error = in.Err.Error()
		run.Holds = false
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var errMsg *string
	if run.Error != "" {
		errMsg = &run.Error
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, name, dc, source, engine, strategy, holds, violation_count,
			truncated, rows_checked, started_at, elapsed_ns, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Name, run.Constraint, run.Source, run.Engine, run.Strategy, run.Holds,
		run.ViolationCount, run.Truncated, run.Rows, run.StartedAt, int64(run.Elapsed), errMsg)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	if len(violations) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO violations (run_id, ordinal, row_ids) VALUES (?, ?, ?)`)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare violation insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for i, v := range violations {
			ids, err := json.Marshal(v.Rows)
			if err != nil {
				return nil, fmt.Errorf("failed to encode violation %d: %w", i, err)
			}
			if _, err := stmt.ExecContext(ctx, run.ID, i, string(ids)); err != nil {
				return nil, fmt.Errorf("failed to insert violation %d: %w", i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit run: %w", err)
	}

	s.logger.Debug("recorded run",
		slog.String("id", run.ID),
		slog.String("constraint", run.Constraint),
		slog.Bool("holds", run.Holds),
		slog.Int("violations", run.ViolationCount))
	return run, nil
}

const runColumns = `id, name, dc, source, engine, strategy, holds, violation_count,
	truncated, rows_checked, started_at, elapsed_ns, error`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(sc rowScanner) (*Run, error) {
	var (
		run     Run
		elapsed int64
		errMsg  sql.NullString
	)
	err := sc.Scan(&run.ID, &run.Name, &run.Constraint, &run.Source, &run.Engine, &run.Strategy,
		&run.Holds, &run.ViolationCount, &run.Truncated, &run.Rows, &run.StartedAt, &elapsed, &errMsg)
	if err != nil {
		return nil, err
	}
	run.Elapsed = time.Duration(elapsed)
	run.Error = errMsg.String
	return &run, nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

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

// FindRun retrieves a run by ID or by a unique ID prefix, as printed by
// history listings.
func (s *Store) FindRun(ctx context.Context, prefix string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if prefix == "" {
		return nil, fmt.Errorf("%w: empty id", ErrRunNotFound)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE substr(id, 1, ?) = ? LIMIT 2`, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to find run: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var found []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, prefix)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousRunID, prefix)
	}
}

// LatestRunByName returns the most recent run recorded under name, or nil
// when there is none.
func (s *Store) LatestRunByName(ctx context.Context, name string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE name = ? ORDER BY started_at DESC, rowid DESC LIMIT 1`, name)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves the most recent runs, newest first. A limit of zero
// or less returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
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

// ListViolations returns the stored violations of a run in report order.
func (s *Store) ListViolations(ctx context.Context, runID string) ([]verify.Violation, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT row_ids FROM violations WHERE run_id = ? ORDER BY ordinal`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list violations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []verify.Violation
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan violation: %w", err)
		}
		var v verify.Violation
		if err := json.Unmarshal([]byte(raw), &v.Rows); err != nil {
			return nil, fmt.Errorf("failed to decode violation: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and its violations.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}
