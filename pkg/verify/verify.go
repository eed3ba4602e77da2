// Package verify checks whether a denial constraint holds on a table.
//
// A denial constraint holds when no assignment of distinct rows to its tuple
// variables satisfies every predicate at once. The verifier picks the
// cheapest strategy the constraint's shape allows: a key check for
// all-equality constraints, a single streaming pass for constraints with one
// cross-tuple inequality, and a backtracking search for everything else.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leapdc/pkg/dc"
	"github.com/leapstack-labs/leapdc/pkg/table"
)

// DefaultMaxViolations is the number of violations collected when
// Options.MaxViolations is zero.
const DefaultMaxViolations = 100

// checkEvery is how many search steps run between context checks.
const checkEvery = 1024

// Sentinel errors.
var (
	ErrNoData              = errors.New("no table loaded")
	ErrIncomparableColumns = errors.New("inequality compares a numeric column with a string column")
	ErrStrategyMismatch    = errors.New("constraint shape does not fit the requested strategy")
)

// Options configures a Verifier.
type Options struct {
	// MaxViolations caps the violations collected. Zero selects
	// DefaultMaxViolations and a negative value collects all of them.
	MaxViolations int
	// Strategy forces an algorithm. The zero value picks one automatically.
	Strategy Strategy
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Violation is one assignment of rows that satisfies every predicate.
// Rows holds a 0-based data row index per tuple variable, in DC.Vars order.
type Violation struct {
	Rows []int `json:"rows"`
}

// Result is the outcome of verifying one constraint.
type Result struct {
	Constraint  string        `json:"constraint"`
	Vars        []string      `json:"vars"`
	Holds       bool          `json:"holds"`
	Strategy    Strategy      `json:"strategy"`
	Violations  []Violation   `json:"violations"`
	Truncated   bool          `json:"truncated"`
	RowsChecked int           `json:"rows_checked"`
	Elapsed     time.Duration `json:"elapsed_ns"`
}

// Verifier runs denial constraints against a loaded table.
// A Verifier is not safe for concurrent use.
type Verifier struct {
	opts   Options
	logger *slog.Logger
	table  *table.Table
	last   *Result
}

// New creates a verifier with the given options.
func New(opts Options) *Verifier {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyAuto
	}
	return &Verifier{opts: opts, logger: logger}
}

// LoadData reads the table described by src.
func (v *Verifier) LoadData(ctx context.Context, src table.Source) error {
	start := time.Now()
	t, err := table.LoadCSV(ctx, src)
	if err != nil {
		return err
	}
	v.logger.Debug("loaded table",
		slog.String("path", src.Path),
		slog.Int("rows", t.NumRows()),
		slog.Int("columns", t.NumColumns()),
		slog.Duration("elapsed", time.Since(start)))
	v.LoadTable(t)
	return nil
}

// LoadTable uses an already built table.
func (v *Verifier) LoadTable(t *table.Table) {
	v.table = t
	v.last = nil
}

// Table returns the loaded table, or nil.
func (v *Verifier) Table() *table.Table {
	return v.table
}

// Holds reports whether the last executed constraint holds.
// It is false before any execution.
func (v *Verifier) Holds() bool {
	return v.last != nil && v.last.Holds
}

// Execute parses expr and verifies it.
func (v *Verifier) Execute(ctx context.Context, expr string) (*Result, error) {
	d, err := dc.Parse(expr)
	if err != nil {
		return nil, err
	}
	return v.ExecuteDC(ctx, d)
}

// ExecuteDC verifies an already parsed constraint.
func (v *Verifier) ExecuteDC(ctx context.Context, d *dc.DC) (*Result, error) {
	if v.table == nil {
		return nil, ErrNoData
	}

	b, err := d.Bind(v.table)
	if err != nil {
		return nil, err
	}

	strategy, err := v.pickStrategy(b)
	if err != nil {
		return nil, err
	}

	v.logger.Debug("verifying constraint",
		slog.String("constraint", d.String()),
		slog.String("strategy", string(strategy)),
		slog.Int("rows", v.table.NumRows()))

	start := time.Now()
	out := newCollector(v.opts.MaxViolations)

	switch strategy {
	case StrategyAllEquality:
		err = checkAllEquality(ctx, v.table, b, out)
	case StrategyOneInequality:
		err = checkOneInequality(ctx, v.table, b, out)
	default:
		err = checkGeneral(ctx, v.table, b, out)
	}
	if err != nil {
		return nil, fmt.Errorf("verifying %s: %w", d, err)
	}

	res := &Result{
		Constraint:  d.String(),
		Vars:        b.Vars,
		Holds:       len(out.violations) == 0,
		Strategy:    strategy,
		Violations:  out.violations,
		Truncated:   out.truncated,
		RowsChecked: v.table.NumRows(),
		Elapsed:     time.Since(start),
	}
	v.last = res

	v.logger.Debug("verification finished",
		slog.Bool("holds", res.Holds),
		slog.Int("violations", len(res.Violations)),
		slog.Bool("truncated", res.Truncated),
		slog.Duration("elapsed", res.Elapsed))

	return res, nil
}

// collector gathers violations up to a limit.
type collector struct {
	limit      int
	violations []Violation
	truncated  bool
}

func newCollector(maxViolations int) *collector {
	switch {
	case maxViolations == 0:
		maxViolations = DefaultMaxViolations
	case maxViolations < 0:
		maxViolations = 0
	}
	return &collector{limit: maxViolations}
}

// add records a violation and reports whether the search should stop.
// Finding one more violation than the limit marks the result truncated.
func (c *collector) add(rows ...int) bool {
	if c.limit > 0 && len(c.violations) >= c.limit {
		c.truncated = true
		return true
	}
	c.violations = append(c.violations, Violation{Rows: rows})
	return false
}
