package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clitestutil "github.com/leapstack-labs/leapdc/internal/cli/testutil"
	"github.com/leapstack-labs/leapdc/internal/state"
	"github.com/leapstack-labs/leapdc/internal/testutil"
	"github.com/leapstack-labs/leapdc/pkg/table"
	"github.com/leapstack-labs/leapdc/pkg/verify"

	// Registers the sqlite engine for --engine sqlite.
	_ "github.com/leapstack-labs/leapdc/pkg/adapters/sqlite"
)

const (
	uniqueKey = "!(t.Col0 == s.Col0 and t.Col1 == s.Col1)"
	cBelowB   = "!(j.Col0 == s.Col0 and t.C <= t.B)"
)

// setupProject writes TestFD.csv into a temp dir and makes it the CWD.
func setupProject(t *testing.T) string {
	t.Helper()
	dir := filepath.Dir(testutil.WriteTestFD(t))
	t.Chdir(dir)
	return dir
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewVerifyCommand(), "verify <csv> <constraint>", []string{"delimiter", "no-header", "max-violations", "engine", "strategy", "record", "name", "fail-on-violation"}},
		{NewCheckCommand(), "check [suite.yaml]", []string{"only", "parallel", "max-violations", "fail-on-violation"}},
		{NewInspectCommand(), "inspect <csv>", []string{"delimiter", "no-header"}},
		{NewHistoryCommand(), "history [run-id]", []string{"limit"}},
		{NewREPLCommand(), "repl <csv>", []string{"delimiter", "no-header", "max-violations"}},
		{NewWatchCommand(), "watch <csv> <constraint>", []string{"delimiter", "debounce", "engine"}},
		{NewServeCommand(), "serve", []string{"addr", "max-violations", "no-history"}},
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			assert.NotEmpty(t, tt.cmd.Long, "Long should not be empty")
			assert.NotEmpty(t, tt.cmd.Example, "Example should not be empty")
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}
}

func TestVerifyCommand_Markdown(t *testing.T) {
	setupProject(t)

	out, err := execute(t, NewVerifyCommand(), "TestFD.csv", uniqueKey)
	require.NoError(t, err)
	assert.Contains(t, out, "# Verify")
	assert.Contains(t, out, "- **Strategy:** All Equality")
	assert.Contains(t, out, "**OK** Constraint holds")

	out, err = execute(t, NewVerifyCommand(), "--max-violations", "1", "TestFD.csv", cBelowB)
	require.NoError(t, err)
	assert.Contains(t, out, "**FAIL** Constraint violated: 1 violation (limit reached, more exist)")
	assert.Contains(t, out, "| # | Tuple | Row | Col0 | C | B |")
	assert.Contains(t, out, "| 1 | j | 0 | 1 | 5 | 10 |")
}

func TestVerifyCommand_JSONAndHistory(t *testing.T) {
	dir := setupProject(t)
	t.Setenv("LEAPDC_OUTPUT", "json")

	out, err := execute(t, NewVerifyCommand(),
		"--max-violations", "1", "--record", "--name", "c_below_b", "TestFD.csv", cBelowB)
	require.NoError(t, err)

	var got verifyJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.NotNil(t, got.Result)
	assert.Equal(t, "memory", got.Engine)
	assert.Equal(t, verify.StrategyGeneral, got.Strategy)
	assert.Equal(t, []verify.Violation{{Rows: []int{0, 1, 2}}}, got.Violations)
	assert.True(t, got.Truncated)
	require.NotEmpty(t, got.RunID)
	assert.FileExists(t, filepath.Join(dir, ".leapdc", "history.db"))

	out, err = execute(t, NewHistoryCommand())
	require.NoError(t, err)
	var runs []state.Run
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, got.RunID, runs[0].ID)
	assert.Equal(t, "c_below_b", runs[0].Name)
	assert.Equal(t, 1, runs[0].ViolationCount)

	out, err = execute(t, NewHistoryCommand(), got.RunID[:8])
	require.NoError(t, err)
	var detail struct {
		ID         string             `json:"id"`
		Violations []verify.Violation `json:"violations"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &detail))
	assert.Equal(t, got.RunID, detail.ID)
	assert.Equal(t, got.Violations, detail.Violations)
}

func TestVerifyCommand_FailOnViolation(t *testing.T) {
	setupProject(t)

	_, err := execute(t, NewVerifyCommand(), "--fail-on-violation", "TestFD.csv", uniqueKey)
	require.NoError(t, err)

	_, err = execute(t, NewVerifyCommand(), "--fail-on-violation", "TestFD.csv", cBelowB)
	assert.ErrorIs(t, err, ErrConstraintViolated)
}

func TestVerifyCommand_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"parse error", []string{"TestFD.csv", "t.Col0 == s.Col0"}, "parse error"},
		{"unknown column", []string{"TestFD.csv", "!(t.Nope == s.Nope)"}, `unknown column "Nope"`},
		{"missing file", []string{"missing.csv", uniqueKey}, "no such file"},
		{"bad strategy", []string{"--strategy", "fast", "TestFD.csv", uniqueKey}, "unknown strategy"},
		{"strategy mismatch", []string{"--strategy", "all-equality", "TestFD.csv", cBelowB}, "does not fit"},
		{"arg count", []string{"TestFD.csv"}, "accepts 2 arg(s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupProject(t)
			_, err := execute(t, NewVerifyCommand(), tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestVerifyCommand_RecordsFailures(t *testing.T) {
	setupProject(t)
	t.Setenv("LEAPDC_OUTPUT", "json")

	_, err := execute(t, NewVerifyCommand(), "--record", "TestFD.csv", "!(t.Nope == s.Nope)")
	require.Error(t, err)

	out, err := execute(t, NewHistoryCommand())
	require.NoError(t, err)
	var runs []state.Run
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.False(t, runs[0].Holds)
	assert.Contains(t, runs[0].Error, "unknown column")
}

func TestVerifyCommand_SQLiteEngine(t *testing.T) {
	setupProject(t)
	t.Setenv("LEAPDC_OUTPUT", "json")

	out, err := execute(t, NewVerifyCommand(), "--engine", "sqlite", "TestFD.csv", uniqueKey)
	require.NoError(t, err)
	var got verifyJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "sqlite", got.Engine)
	assert.Equal(t, verify.StrategySQL, got.Strategy)
	assert.True(t, got.Holds)
	assert.Equal(t, 6, got.RowsChecked)

	out, err = execute(t, NewVerifyCommand(), "--engine", "sqlite", "TestFD.csv", "!(t.Col0 == s.Col0 and t.Col1 != s.Col1)")
	require.NoError(t, err)
	got = verifyJSON{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.False(t, got.Holds)
	assert.Len(t, got.Violations, 6)
}

func TestVerifyCommand_NoHeaderSemicolon(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pairs.csv"), []byte("1;a\n1;a\n2;b\n"), 0o600))
	t.Setenv("LEAPDC_OUTPUT", "json")

	out, err := execute(t, NewVerifyCommand(), "-d", ";", "--no-header", "pairs.csv", "!(t.Col0 == s.Col0 and t.Col1 == s.Col1)")
	require.NoError(t, err)
	var got verifyJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.False(t, got.Holds)
	assert.Equal(t, 3, got.RowsChecked)
}

func TestCheckCommand(t *testing.T) {
	t.Chdir(clitestutil.SetupTestProject(t))

	out, err := execute(t, NewCheckCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "# Check")
	assert.Contains(t, out, "- ✓ **unique_key**")
	assert.Contains(t, out, "- ✗ **c_below_b** (Constraint violated: 1 violation (limit reached, more exist))")
	assert.Contains(t, out, "**FAIL** 2 passed, 1 failed, 0 errors")

	t.Setenv("LEAPDC_OUTPUT", "json")
	out, err = execute(t, NewCheckCommand(), "checks.yaml", "--only", "unique_key,positive", "--fail-on-violation")
	require.NoError(t, err)
	var report checkReportJSON
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 2, report.Passed)
	require.Len(t, report.Checks, 2)
	assert.Equal(t, "unique_key", report.Checks[0].Name)
	assert.NotEmpty(t, report.Checks[0].RunID)

	_, err = execute(t, NewCheckCommand(), "--fail-on-violation")
	assert.ErrorIs(t, err, ErrConstraintViolated)

	// Every check of the three runs was recorded.
	out, err = execute(t, NewHistoryCommand(), "--limit", "0")
	require.NoError(t, err)
	var runs []state.Run
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	assert.Len(t, runs, 3+2+3)
}

func TestCheckCommand_Errors(t *testing.T) {
	dir := setupProject(t)

	_, err := execute(t, NewCheckCommand())
	require.Error(t, err, "no suite file")

	suite := "checks:\n  - {name: broken, table: missing.csv, constraint: '!(t.A == s.A)'}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte(suite), 0o600))
	_, err = execute(t, NewCheckCommand(), "broken.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 check(s) could not be evaluated")
}

func TestInspectCommand(t *testing.T) {
	setupProject(t)
	t.Setenv("LEAPDC_OUTPUT", "json")

	out, err := execute(t, NewInspectCommand(), "TestFD.csv")
	require.NoError(t, err)
	var got inspectJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 6, got.Rows)
	require.Len(t, got.Columns, 4)
	assert.Equal(t, "Col0", got.Columns[0].Name)
	assert.Equal(t, "int", got.Columns[0].Type)
	assert.Equal(t, "C", got.Columns[3].Name)
}

func TestHistoryCommand_Empty(t *testing.T) {
	setupProject(t)

	out, err := execute(t, NewHistoryCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded yet")

	_, err = execute(t, NewHistoryCommand(), "deadbeef")
	assert.ErrorIs(t, err, state.ErrRunNotFound)
}

func newTestSession(t *testing.T) (*replSession, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	tr := clitestutil.NewTestRendererMarkdown()
	src := table.Source{Path: testutil.WriteTestFD(t), Delimiter: ',', HasHeader: true}
	tbl, err := table.LoadCSV(context.Background(), src)
	require.NoError(t, err)
	return newREPLSession(tr.Renderer, src, tbl, 0), tr.Out, tr.ErrOut
}

func TestREPLSession(t *testing.T) {
	s, out, errOut := newTestSession(t)
	ctx := context.Background()

	assert.False(t, s.handleLine(ctx, "   "))
	assert.Empty(t, out.String())

	assert.False(t, s.handleLine(ctx, uniqueKey))
	assert.Contains(t, out.String(), "Constraint holds")

	out.Reset()
	assert.False(t, s.handleLine(ctx, ".limit 1"))
	assert.False(t, s.handleLine(ctx, cBelowB))
	assert.Contains(t, out.String(), "1 violation (limit reached")

	out.Reset()
	assert.False(t, s.handleLine(ctx, ".columns"))
	assert.Contains(t, out.String(), "| 0 | Col0 | int | 0 |")

	assert.False(t, s.handleLine(ctx, ".strategy general"))
	assert.Equal(t, verify.StrategyGeneral, s.strategy)

	assert.False(t, s.handleLine(ctx, "t.A == s.A"))
	assert.Contains(t, errOut.String(), "Error: parse error")

	errOut.Reset()
	assert.False(t, s.handleLine(ctx, ".strategy fastest"))
	assert.Contains(t, errOut.String(), "unknown strategy")

	errOut.Reset()
	assert.False(t, s.handleLine(ctx, ".nope"))
	assert.Contains(t, errOut.String(), "Unknown command: .nope")

	out.Reset()
	assert.False(t, s.handleLine(ctx, ".help"))
	assert.Contains(t, out.String(), ".columns")

	assert.True(t, s.handleLine(ctx, ".quit"))
	assert.True(t, s.handleLine(ctx, ".EXIT"))
}

func TestConstraintCompleter(t *testing.T) {
	c := &constraintCompleter{columns: []string{"Col0", "Col1", "City"}}

	tests := []struct {
		line     string
		want     []string
		wantSize int
	}{
		{".co", []string{"lumns"}, 3},
		{"!(t.Co", []string{"l0", "l1"}, 2},
		{"!(t.Col0 == s.Ci", []string{"ty"}, 2},
		{"!(t.Col0 == ", []string{"t.", "s."}, 0},
		{"!(t.Zip", nil, 3},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, size := c.Do([]rune(tt.line), len([]rune(tt.line)))
			var suffixes []string
			for _, r := range got {
				suffixes = append(suffixes, string(r))
			}
			assert.Equal(t, tt.want, suffixes)
			assert.Equal(t, tt.wantSize, size)
		})
	}
}

func TestViolationSummary(t *testing.T) {
	assert.Equal(t, "Constraint violated: 1 violation", violationSummary(1, false))
	assert.Equal(t, "Constraint violated: 3 violations (limit reached, more exist)", violationSummary(3, true))
	assert.Equal(t, "1.5s", formatElapsed(1500*time.Millisecond))
	assert.Equal(t, "2µs", formatElapsed(1500*time.Nanosecond))
}
