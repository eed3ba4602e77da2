package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapdc/internal/cli/config"
	"github.com/leapstack-labs/leapdc/internal/state"
	"github.com/leapstack-labs/leapdc/pkg/adapter"
	"github.com/leapstack-labs/leapdc/pkg/dc"
	"github.com/leapstack-labs/leapdc/pkg/sqlverify"
	"github.com/leapstack-labs/leapdc/pkg/table"
	"github.com/leapstack-labs/leapdc/pkg/verify"
)

// VerifyOptions holds options for the verify command.
type VerifyOptions struct {
	Name            string
	FailOnViolation bool
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand() *cobra.Command {
	opts := &VerifyOptions{}

	cmd := &cobra.Command{
		Use:   "verify <csv> <constraint>",
		Short: "Check a denial constraint against a CSV file",
		Long: `Check whether a denial constraint holds on a CSV file.

A denial constraint names combinations of rows that must not exist:

  !(t.Zip == s.Zip and t.City != s.City)

reads "no two rows share a zip code but disagree on the city". The command
reports whether the constraint holds and lists the offending rows.

Constraints run in memory by default. With --engine duckdb|sqlite|postgres
the file is loaded into that database and checked with SQL.`,
		Example: `  # Composite key
  leapdc verify orders.csv '!(t.OrderID == s.OrderID and t.Line == s.Line)'

  # Order-dependent rule, semicolon separated, all violations
  leapdc verify -d ';' --max-violations -1 prices.csv '!(t.Sku == s.Sku and t.Price < s.Cost)'

  # Check inside DuckDB and keep the run in the history
  leapdc verify --engine duckdb --record data.csv '!(t.Id == s.Id)'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, args[0], args[1], opts)
		},
	}

	addSourceFlags(cmd)
	cmd.Flags().Int("max-violations", 0, "Stop after this many violations (0 = default 100, -1 = all)")
	cmd.Flags().String("engine", "", "Verification engine (memory|duckdb|sqlite|postgres)")
	cmd.Flags().String("strategy", "", "Force an in-memory strategy (auto|all-equality|one-inequality|general)")
	cmd.Flags().Bool("record", false, "Record the run in the history database")
	cmd.Flags().StringVar(&opts.Name, "name", "", "Name to record the run under")
	cmd.Flags().BoolVar(&opts.FailOnViolation, "fail-on-violation", false, "Exit with an error when the constraint is violated")

	_ = cmd.RegisterFlagCompletionFunc("engine", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return append([]string{"memory"}, adapter.ListAdapters()...), cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("strategy", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		names := make([]string, len(verify.Strategies))
		for i, s := range verify.Strategies {
			names[i] = string(s)
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// addSourceFlags registers the flags that describe how a CSV file is read.
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("delimiter", "d", ",", "Field delimiter (single character or 'tab')")
	cmd.Flags().Bool("no-header", false, "The first line is data; columns are named Col0..ColN")
}

func runVerify(cmd *cobra.Command, path, expr string, opts *VerifyOptions) error {
	ctx := cmd.Context()
	cctx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	d, err := dc.Parse(expr)
	if err != nil {
		return err
	}
	src := sourceFor(cctx.Cfg, path)

	v, verr := runVerification(ctx, cctx.Cfg, cctx.Logger, src, d)

	var runID string
	if cctx.Cfg.Record {
		run, err := recordVerification(ctx, cctx, opts.Name, d, v, verr)
		if err != nil {
			return err
		}
		runID = run.ID
	}
	if verr != nil {
		return verr
	}

	if err := renderVerification(cctx.Renderer, v, d, runID); err != nil {
		return err
	}
	if opts.FailOnViolation && !v.Result.Holds {
		return ErrConstraintViolated
	}
	return nil
}

func sourceFor(cfg *config.Config, path string) table.Source {
	return table.Source{Path: path, Delimiter: cfg.DelimiterRune(), HasHeader: cfg.Header}
}

// verification is one finished check, ready to render and record.
type verification struct {
	Source    table.Source
	Engine    string
	StartedAt time.Time
	Result    *verify.Result
	// Table holds the data when violations need rendering. It may be nil
	// for database engines when the constraint holds.
	Table *table.Table
}

// runVerification checks d against src with the configured engine.
// The returned verification is never nil, so failed runs can be recorded.
func runVerification(ctx context.Context, cfg *config.Config, logger *slog.Logger, src table.Source, d *dc.DC) (*verification, error) {
	v := &verification{Source: src, Engine: cfg.Engine, StartedAt: time.Now()}

	if !cfg.UsesDatabase() {
		strategy, err := verify.ParseStrategy(cfg.Strategy)
		if err != nil {
			return v, err
		}
		mem := verify.New(verify.Options{
			MaxViolations: cfg.MaxViolations,
			Strategy:      strategy,
			Logger:        logger,
		})
		if err := mem.LoadData(ctx, src); err != nil {
			return v, err
		}
		v.Table = mem.Table()
		v.Result, err = mem.ExecuteDC(ctx, d)
		return v, err
	}

	if cfg.Strategy != "" && cfg.Strategy != string(verify.StrategyAuto) {
		logger.Warn("strategy is ignored by database engines",
			slog.String("strategy", cfg.Strategy),
			slog.String("engine", cfg.Engine))
	}

	a, err := adapter.Open(ctx, cfg.Target.AdapterConfig(), logger)
	if err != nil {
		return v, err
	}
	defer func() { _ = a.Close() }()

	tableName := adapter.SanitizeTableName(src.Name())
	if err := a.LoadCSV(ctx, tableName, src); err != nil {
		return v, fmt.Errorf("loading %s into %s: %w", src.Path, cfg.Engine, err)
	}
	v.Result, err = sqlverify.New(a, logger).Verify(ctx, d, tableName, cfg.MaxViolations)
	if err != nil {
		return v, err
	}
	if !v.Result.Holds {
		if v.Table, err = table.LoadCSV(ctx, src); err != nil {
			return v, err
		}
	}
	return v, nil
}

func recordVerification(ctx context.Context, cctx *CommandContext, name string, d *dc.DC, v *verification, verr error) (*state.Run, error) {
	store, err := cctx.OpenStore(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	run, err := store.RecordRun(ctx, state.RunInput{
		Name:       name,
		Constraint: d.String(),
		Source:     v.Source.Path,
		Engine:     v.Engine,
		StartedAt:  v.StartedAt,
		Result:     v.Result,
		Err:        verr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	cctx.Logger.Debug("recorded run", slog.String("id", run.ID))
	return run, nil
}
