package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapdc/internal/cli/output"
	"github.com/leapstack-labs/leapdc/pkg/table"
)

// NewInspectCommand creates the inspect command.
func NewInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <csv>",
		Short: "Show the inferred schema of a CSV file",
		Long: `Load a CSV file the way verify does and print its columns, the type
inferred for each (int, double, string or null) and the number of empty cells.

Use it to find the column names and types a constraint can refer to.`,
		Example: `  leapdc inspect data/orders.csv
  leapdc inspect --no-header -d tab export.tsv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, args[0])
		},
	}
	addSourceFlags(cmd)
	return cmd
}

type inspectJSON struct {
	Source  string        `json:"source"`
	Rows    int           `json:"rows"`
	Columns []table.Field `json:"columns"`
}

func runInspect(cmd *cobra.Command, path string) error {
	cctx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	t, err := table.LoadCSV(cmd.Context(), sourceFor(cctx.Cfg, path))
	if err != nil {
		return err
	}
	renderSchema(cctx.Renderer, path, t)
	return nil
}

func renderSchema(r *output.Renderer, path string, t *table.Table) {
	fields := t.Schema()
	if r.EffectiveMode() == output.ModeJSON {
		_ = r.JSON(inspectJSON{Source: path, Rows: t.NumRows(), Columns: fields})
		return
	}

	r.Header(1, "Inspect")
	r.KeyValue("Source", path)
	r.KeyValue("Rows", strconv.Itoa(t.NumRows()))
	r.KeyValue("Columns", strconv.Itoa(len(fields)))
	r.Println()

	rows := make([][]string, len(fields))
	for i, f := range fields {
		rows[i] = []string{strconv.Itoa(i), f.Name, f.Type, strconv.Itoa(f.Nulls)}
	}
	r.Table([]string{"#", "Column", "Type", "Nulls"}, rows)
}
