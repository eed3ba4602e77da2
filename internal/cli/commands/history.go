package commands

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapdc/internal/cli/output"
	"github.com/leapstack-labs/leapdc/internal/state"
	"github.com/leapstack-labs/leapdc/pkg/verify"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded runs or show one run",
		Long: `Without arguments, list the most recent runs recorded by "verify --record"
and "check". With a run ID (or a unique prefix of one), show that run and the
rows of each stored violation.`,
		Example: `  leapdc history
  leapdc history --limit 50 -o json
  leapdc history 3f2a9c1e`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runHistoryShow(cmd, args[0])
			}
			return runHistoryList(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "Number of runs to list (0 = all)")
	return cmd
}

func runHistoryList(cmd *cobra.Command, opts *HistoryOptions) error {
	ctx := cmd.Context()
	cctx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	store, err := cctx.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := store.ListRuns(ctx, opts.Limit)
	if err != nil {
		return err
	}
	return renderRunList(cctx.Renderer, runs)
}

type runDetailJSON struct {
	*state.Run
	Violations []verify.Violation `json:"violations"`
}

func runHistoryShow(cmd *cobra.Command, id string) error {
	ctx := cmd.Context()
	cctx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	store, err := cctx.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	run, err := store.FindRun(ctx, id)
	if err != nil {
		return err
	}
	violations, err := store.ListViolations(ctx, run.ID)
	if err != nil {
		return err
	}
	if violations == nil {
		violations = []verify.Violation{}
	}

	r := cctx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(runDetailJSON{Run: run, Violations: violations})
	}

	r.Header(1, "Run "+run.ID)
	if run.Name != "" {
		r.KeyValue("Name", run.Name)
	}
	r.KeyValue("Constraint", run.Constraint)
	r.KeyValue("Source", run.Source)
	r.KeyValue("Engine", run.Engine)
	if run.Strategy != "" {
		r.KeyValue("Strategy", output.Label(run.Strategy))
	}
	r.KeyValue("Started", run.StartedAt.Local().Format(time.RFC3339))
	r.KeyValue("Elapsed", formatElapsed(run.Elapsed))
	r.KeyValue("Rows", strconv.Itoa(run.Rows))
	r.Println()

	switch {
	case run.Error != "":
		r.Error("Run failed: " + run.Error)
		return nil
	case run.Holds:
		r.Success("Constraint held")
		return nil
	}
	r.Error(violationSummary(run.ViolationCount, run.Truncated))
	r.Println()

	rows := make([][]string, len(violations))
	for i, v := range violations {
		ids := make([]string, len(v.Rows))
		for j, row := range v.Rows {
			ids[j] = strconv.Itoa(row)
		}
		rows[i] = append([]string{strconv.Itoa(i + 1)}, ids...)
	}
	headers := []string{"#"}
	if len(violations) > 0 {
		for j := range violations[0].Rows {
			headers = append(headers, "Row "+strconv.Itoa(j+1))
		}
	}
	r.Table(headers, rows)
	r.Muted("Row numbers are 0-based data rows of " + run.Source)
	return nil
}
