package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapdc/internal/cli/testutil"
	"github.com/leapstack-labs/leapdc/pkg/verify"
)

func executeRoot(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func TestRootCommands(t *testing.T) {
	root := NewRootCmd()

	want := []string{"version", "verify", "check", "inspect", "history", "repl", "watch", "serve", "completion"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	for _, flag := range []string{"config", "state", "env", "verbose", "output", "log-level"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), "persistent flag %q", flag)
	}
}

func TestRoot_VerifyJSON(t *testing.T) {
	t.Chdir(testutil.SetupTestProject(t))

	out, _, err := executeRoot(t, "-o", "json", "verify", "--max-violations", "1",
		"TestFD.csv", "!(j.Col0 == s.Col0 and t.C <= t.B)")
	require.NoError(t, err)

	var res verify.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Holds)
	assert.Equal(t, verify.StrategyGeneral, res.Strategy)
	assert.Equal(t, []verify.Violation{{Rows: []int{0, 1, 2}}}, res.Violations)
}

func TestRoot_CheckUsesProjectSuite(t *testing.T) {
	t.Chdir(testutil.SetupTestProject(t))

	out, _, err := executeRoot(t, "check")
	require.NoError(t, err)
	testutil.AssertNoANSI(t, out)
	testutil.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "2 passed, 1 failed, 0 errors")

	out, _, err = executeRoot(t, "history", "--output", "json")
	require.NoError(t, err)
	var runs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	assert.Len(t, runs, 3)
}

func TestRoot_VerboseLogsToStderr(t *testing.T) {
	t.Chdir(testutil.SetupTestProject(t))

	_, stderr, err := executeRoot(t, "-v", "inspect", "TestFD.csv")
	require.NoError(t, err)
	assert.Contains(t, stderr, "using config file")
}

func TestRoot_InvalidConfig(t *testing.T) {
	t.Chdir(testutil.SetupTestProject(t))

	_, _, err := executeRoot(t, "--output", "yaml", "inspect", "TestFD.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")

	_, _, err = executeRoot(t, "--env", "prod", "inspect", "TestFD.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown environment "prod"`)
}

func TestCompletionCommand(t *testing.T) {
	out, _, err := executeRoot(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "leapdc")

	_, _, err = executeRoot(t, "completion", "tcsh")
	assert.Error(t, err)
}

func TestVersionFlag(t *testing.T) {
	out, _, err := executeRoot(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "leapdc "+Version)
}
