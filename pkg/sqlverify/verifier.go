package sqlverify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leapdc/pkg/adapter"
	"github.com/leapstack-labs/leapdc/pkg/dc"
	"github.com/leapstack-labs/leapdc/pkg/table"
	"github.com/leapstack-labs/leapdc/pkg/verify"
)

// Verifier runs constraints on a connected engine.
type Verifier struct {
	Adapter adapter.Adapter
	Logger  *slog.Logger
}

// New creates a verifier over a connected adapter.
func New(a adapter.Adapter, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Verifier{Adapter: a, Logger: logger}
}

// Check loads src into a table named after the file and verifies expr on it.
func (v *Verifier) Check(ctx context.Context, src table.Source, expr string, maxViolations int) (*verify.Result, error) {
	d, err := dc.Parse(expr)
	if err != nil {
		return nil, err
	}
	tableName := adapter.SanitizeTableName(src.Name())
	if err := v.Adapter.LoadCSV(ctx, tableName, src); err != nil {
		return nil, err
	}
	return v.Verify(ctx, d, tableName, maxViolations)
}

// Verify checks d against a table previously loaded with LoadCSV.
// maxViolations follows verify.Options.MaxViolations.
func (v *Verifier) Verify(ctx context.Context, d *dc.DC, tableName string, maxViolations int) (*verify.Result, error) {
	start := time.Now()

	meta, err := v.Adapter.GetTableMetadata(ctx, tableName)
	if err != nil {
		return nil, err
	}

	limit := maxViolations
	switch {
	case limit == 0:
		limit = verify.DefaultMaxViolations
	case limit < 0:
		limit = 0
	}
	fetch := 0
	if limit > 0 {
		fetch = limit + 1
	}

	q, err := Translate(d, meta, tableName, v.Adapter.QuoteIdentifier, fetch)
	if err != nil {
		return nil, err
	}

	v.Logger.Debug("verifying constraint in database",
		slog.String("engine", v.Adapter.DialectName()),
		slog.String("constraint", d.String()),
		slog.String("sql", q.SQL))

	rows, err := v.Adapter.Query(ctx, q.SQL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	res := &verify.Result{
		Constraint:  d.String(),
		Vars:        q.Vars,
		Strategy:    verify.StrategySQL,
		RowsChecked: int(meta.RowCount),
	}

	ids := make([]int64, len(q.Vars))
	dest := make([]any, len(ids))
	for i := range ids {
		dest[i] = &ids[i]
	}
	for rows.Next() {
		if limit > 0 && len(res.Violations) == limit {
			res.Truncated = true
			break
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan violation: %w", err)
		}
		viol := verify.Violation{Rows: make([]int, len(ids))}
		for i, id := range ids {
			viol.Rows[i] = int(id)
		}
		res.Violations = append(res.Violations, viol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating violations: %w", err)
	}

	res.Holds = len(res.Violations) == 0
	res.Elapsed = time.Since(start)
	return res, nil
}
