package suite

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapdc/pkg/table"
	"github.com/leapstack-labs/leapdc/pkg/verify"
)

// RunOptions configures a suite run.
type RunOptions struct {
	// Parallel bounds concurrent checks. Zero uses GOMAXPROCS.
	Parallel int
	// MaxViolations overrides every check's cap when non-zero.
	MaxViolations int
	// Only restricts the run to the named checks.
	Only []string
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// CheckResult is the outcome of one check. Err is set when the check could
// not be evaluated; Result is nil in that case.
type CheckResult struct {
	Check     *Check
	Result    *verify.Result
	Err       error
	StartedAt time.Time
}

// Passed reports whether the check ran and its constraint holds.
func (r CheckResult) Passed() bool {
	return r.Err == nil && r.Result != nil && r.Result.Holds
}

// Summary counts check outcomes.
type Summary struct {
	Passed int
	Failed int
	Errors int
}

// Summarize counts results by outcome.
func Summarize(results []CheckResult) Summary {
	var s Summary
	for _, r := range results {
		switch {
		case r.Err != nil:
			s.Errors++
		case r.Passed():
			s.Passed++
		default:
			s.Failed++
		}
	}
	return s
}

// tableCache loads each distinct source at most once.
type tableCache struct {
	mu      sync.Mutex
	entries map[table.Source]*tableEntry
}

type tableEntry struct {
	once sync.Once
	tbl  *table.Table
	err  error
}

func (c *tableCache) get(ctx context.Context, src table.Source) (*table.Table, error) {
	c.mu.Lock()
	e, ok := c.entries[src]
	if !ok {
		e = &tableEntry{}
		c.entries[src] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		e.tbl, e.err = table.LoadCSV(ctx, src)
	})
	return e.tbl, e.err
}

// Run executes the suite's checks concurrently and returns one result per
// selected check, in file order or in the order of opts.Only. Failures of
// individual checks are reported in their CheckResult; the returned error
// is only set when ctx ends.
func Run(ctx context.Context, s *Suite, opts RunOptions) ([]CheckResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	parallel := opts.Parallel
	if parallel <= 0 {
		parallel = runtime.GOMAXPROCS(0)
	}

	checks, err := s.selectChecks(opts.Only)
	if err != nil {
		return nil, err
	}

	cache := &tableCache{entries: make(map[table.Source]*tableEntry)}
	results := make([]CheckResult, len(checks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for i, c := range checks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := CheckResult{Check: c, StartedAt: time.Now()}
			res.Result, res.Err = runCheck(gctx, cache, s, c, opts, logger)
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func runCheck(ctx context.Context, cache *tableCache, s *Suite, c *Check, opts RunOptions, logger *slog.Logger) (*verify.Result, error) {
	tbl, err := cache.get(ctx, c.Source)
	if err != nil {
		return nil, err
	}

	limit := opts.MaxViolations
	if limit == 0 {
		limit = s.Limit(c)
	}

	v := verify.New(verify.Options{
		MaxViolations: limit,
		Strategy:      c.Force,
		Logger:        logger.With(slog.String("check", c.Name)),
	})
	v.LoadTable(tbl)

	res, err := v.ExecuteDC(ctx, c.DC)
	if err != nil {
		return nil, err
	}
	logger.Debug("check finished",
		slog.String("check", c.Name),
		slog.Bool("holds", res.Holds),
		slog.Int("violations", len(res.Violations)))
	return res, nil
}

func (s *Suite) selectChecks(only []string) ([]*Check, error) {
	if len(only) == 0 {
		out := make([]*Check, len(s.Checks))
		for i := range s.Checks {
			out[i] = &s.Checks[i]
		}
		return out, nil
	}

	byName := make(map[string]*Check, len(s.Checks))
	for i := range s.Checks {
		byName[s.Checks[i].Name] = &s.Checks[i]
	}
	var out []*Check
	for _, name := range only {
		c, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown check %q", name)
		}
		out = append(out, c)
	}
	return out, nil
}
