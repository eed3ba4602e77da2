package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/leapstack-labs/leapdc/internal/cli/output"
	"github.com/leapstack-labs/leapdc/internal/state"
	"github.com/leapstack-labs/leapdc/pkg/dc"
	"github.com/leapstack-labs/leapdc/pkg/table"
	"github.com/leapstack-labs/leapdc/pkg/verify"
)

// verifyJSON is the JSON shape of a verification.
type verifyJSON struct {
	Source string `json:"source"`
	Engine string `json:"engine"`
	RunID  string `json:"run_id,omitempty"`
	*verify.Result
}

func renderVerification(r *output.Renderer, v *verification, d *dc.DC, runID string) error {
	res := v.Result
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(verifyJSON{Source: v.Source.Path, Engine: v.Engine, RunID: runID, Result: res})
	}

	r.Header(1, "Verify")
	r.KeyValue("Constraint", res.Constraint)
	r.KeyValue("Source", v.Source.Path)
	r.KeyValue("Engine", v.Engine)
	r.KeyValue("Strategy", output.Label(string(res.Strategy)))
	r.KeyValue("Rows", strconv.Itoa(res.RowsChecked))
	r.KeyValue("Elapsed", formatElapsed(res.Elapsed))
	if runID != "" {
		r.KeyValue("Run", runID)
	}
	r.Println()

	if res.Holds {
		r.Success("Constraint holds")
		return nil
	}
	r.Error(violationSummary(len(res.Violations), res.Truncated))
	r.Println()
	if v.Table != nil {
		headers, rows := violationTable(res, d, v.Table)
		r.Table(headers, rows)
	}
	return nil
}

func violationSummary(n int, truncated bool) string {
	msg := fmt.Sprintf("Constraint violated: %d violation", n)
	if n != 1 {
		msg += "s"
	}
	if truncated {
		msg += " (limit reached, more exist)"
	}
	return msg
}

// violationTable lays out each violation as one line per tuple variable,
// showing the row index and the values of every column d references.
func violationTable(res *verify.Result, d *dc.DC, t *table.Table) ([]string, [][]string) {
	cols := d.Columns()
	idx := make([]int, len(cols))
	for i, c := range cols {
		idx[i], _ = t.ColumnIndex(c)
	}

	headers := append([]string{"#", "Tuple", "Row"}, cols...)
	var rows [][]string
	for n, viol := range res.Violations {
		for i, row := range viol.Rows {
			line := make([]string, 0, len(headers))
			num := ""
			if i == 0 {
				num = strconv.Itoa(n + 1)
			}
			line = append(line, num, res.Vars[i], strconv.Itoa(row))
			for _, c := range idx {
				line = append(line, cellString(t, row, c))
			}
			rows = append(rows, line)
		}
	}
	return headers, rows
}

func cellString(t *table.Table, row, col int) string {
	if row < 0 || row >= t.NumRows() || col < 0 {
		return ""
	}
	v := t.Value(row, col)
	if v.IsNull() {
		return "NULL"
	}
	return v.String()
}

func formatElapsed(d time.Duration) string {
	switch {
	case d >= time.Second:
		return d.Round(time.Millisecond).String()
	case d >= time.Millisecond:
		return d.Round(10 * time.Microsecond).String()
	default:
		return d.Round(time.Microsecond).String()
	}
}

func runStatus(run *state.Run) string {
	switch {
	case run.Error != "":
		return "error"
	case run.Holds:
		return "success"
	default:
		return "failed"
	}
}

func renderRunList(r *output.Renderer, runs []*state.Run) error {
	if r.EffectiveMode() == output.ModeJSON {
		if runs == nil {
			runs = []*state.Run{}
		}
		return r.JSON(runs)
	}
	if len(runs) == 0 {
		r.Muted("No runs recorded yet. Use --record or `leapdc check` to record runs.")
		return nil
	}

	headers := []string{"ID", "Started", "Name", "Status", "Violations", "Rows", "Source"}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		violations := strconv.Itoa(run.ViolationCount)
		if run.Truncated {
			violations += "+"
		}
		rows = append(rows, []string{
			shortID(run.ID),
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Name,
			runStatus(run),
			violations,
			strconv.Itoa(run.Rows),
			run.Source,
		})
	}
	r.Table(headers, rows)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
