package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapdc/internal/cli/output"
	"github.com/leapstack-labs/leapdc/internal/state"
	"github.com/leapstack-labs/leapdc/pkg/suite"
	"github.com/leapstack-labs/leapdc/pkg/verify"
)

// CheckOptions holds options for the check command.
type CheckOptions struct {
	Only            []string
	Parallel        int
	FailOnViolation bool
}

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	opts := &CheckOptions{}

	cmd := &cobra.Command{
		Use:   "check [suite.yaml]",
		Short: "Run every check of a suite file",
		Long: `Run a suite of denial constraint checks.

A suite file lists named checks, each a constraint on a CSV file:

  defaults:
    delimiter: ","
  checks:
    - name: unique_order_line
      table: data/orders.csv
      constraint: "!(t.OrderID == s.OrderID and t.Line == s.Line)"

Checks run concurrently; a file used by several checks is read once. Every
result is recorded in the history database.`,
		Example: `  # Run leapdc-suite.yaml from the project root
  leapdc check

  # Run two checks of another suite and fail CI on violations
  leapdc check quality.yaml --only unique_order_line,positive_price --fail-on-violation`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runCheck(cmd, path, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Only, "only", nil, "Run only the named checks (comma separated)")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 0, "Maximum checks run at once (0 = number of CPUs)")
	cmd.Flags().Int("max-violations", 0, "Override every check's violation cap (-1 = all)")
	cmd.Flags().BoolVar(&opts.FailOnViolation, "fail-on-violation", false, "Exit with an error when any check fails")

	return cmd
}

// checkJSON is the JSON shape of one suite check.
type checkJSON struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Source      string         `json:"source"`
	Passed      bool           `json:"passed"`
	Error       string         `json:"error,omitempty"`
	RunID       string         `json:"run_id,omitempty"`
	Result      *verify.Result `json:"result,omitempty"`
}

type checkReportJSON struct {
	Suite  string      `json:"suite"`
	Passed int         `json:"passed"`
	Failed int         `json:"failed"`
	Errors int         `json:"errors"`
	Checks []checkJSON `json:"checks"`
}

func runCheck(cmd *cobra.Command, path string, opts *CheckOptions) error {
	ctx := cmd.Context()
	cctx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	if path == "" {
		path = cctx.Cfg.Suite
	}

	s, err := suite.Load(path)
	if err != nil {
		return err
	}

	results, err := suite.Run(ctx, s, suite.RunOptions{
		Parallel:      opts.Parallel,
		MaxViolations: cctx.Cfg.MaxViolations,
		Only:          opts.Only,
		Logger:        cctx.Logger,
	})
	if err != nil {
		return err
	}

	store, err := cctx.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runIDs := make([]string, len(results))
	for i, res := range results {
		run, err := store.RecordRun(ctx, state.RunInput{
			Name:       res.Check.Name,
			Constraint: res.Check.DC.String(),
			Source:     res.Check.Source.Path,
			Engine:     "memory",
			StartedAt:  res.StartedAt,
			Result:     res.Result,
			Err:        res.Err,
		})
		if err != nil {
			return fmt.Errorf("failed to record %s: %w", res.Check.Name, err)
		}
		runIDs[i] = run.ID
	}

	summary := suite.Summarize(results)
	cctx.Logger.Debug("suite finished",
		slog.String("suite", s.Path),
		slog.Int("passed", summary.Passed),
		slog.Int("failed", summary.Failed),
		slog.Int("errors", summary.Errors))

	if err := renderCheckReport(cctx.Renderer, s, results, runIDs, summary); err != nil {
		return err
	}

	if summary.Errors > 0 {
		return fmt.Errorf("%d check(s) could not be evaluated", summary.Errors)
	}
	if opts.FailOnViolation && summary.Failed > 0 {
		return fmt.Errorf("%w: %d of %d checks failed", ErrConstraintViolated, summary.Failed, len(results))
	}
	return nil
}

func renderCheckReport(r *output.Renderer, s *suite.Suite, results []suite.CheckResult, runIDs []string, summary suite.Summary) error {
	if r.EffectiveMode() == output.ModeJSON {
		report := checkReportJSON{
			Suite:  s.Path,
			Passed: summary.Passed,
			Failed: summary.Failed,
			Errors: summary.Errors,
			Checks: make([]checkJSON, len(results)),
		}
		for i, res := range results {
			c := checkJSON{
				Name:        res.Check.Name,
				Description: res.Check.Description,
				Source:      res.Check.Source.Path,
				Passed:      res.Passed(),
				RunID:       runIDs[i],
				Result:      res.Result,
			}
			if res.Err != nil {
				c.Error = res.Err.Error()
			}
			report.Checks[i] = c
		}
		return r.JSON(report)
	}

	r.Header(1, "Check")
	r.KeyValue("Suite", s.Path)
	r.Println()

	for _, res := range results {
		switch {
		case res.Err != nil:
			r.StatusLine(res.Check.Name, "error", res.Err.Error())
		case res.Passed():
			r.StatusLine(res.Check.Name, "success", fmt.Sprintf("(%s, %s)",
				output.Label(string(res.Result.Strategy)), formatElapsed(res.Result.Elapsed)))
		default:
			r.StatusLine(res.Check.Name, "failed", fmt.Sprintf("(%s)",
				violationSummary(len(res.Result.Violations), res.Result.Truncated)))
		}
	}
	r.Println()

	line := fmt.Sprintf("%d passed, %d failed, %d errors", summary.Passed, summary.Failed, summary.Errors)
	if summary.Failed == 0 && summary.Errors == 0 {
		r.Success(line)
	} else {
		r.Error(line)
	}
	return nil
}
