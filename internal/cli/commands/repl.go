package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapdc/internal/cli/output"
	"github.com/leapstack-labs/leapdc/pkg/dc"
	"github.com/leapstack-labs/leapdc/pkg/table"
	"github.com/leapstack-labs/leapdc/pkg/verify"
)

const (
	replPrompt = "leapdc> "
	// replVars are offered by tab completion before a column name.
	replVars = "t s"
)

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl <csv>",
		Short: "Check constraints interactively against a CSV file",
		Long: `Load a CSV file once and check constraints typed at the prompt.

Each line is a denial constraint. Lines starting with a dot are commands;
type .help to list them. Tab completes column names after "t." or "s.".`,
		Example: `  leapdc repl data/orders.csv`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd, args[0])
		},
	}
	addSourceFlags(cmd)
	cmd.Flags().Int("max-violations", 0, "Stop after this many violations (0 = default 100, -1 = all)")
	return cmd
}

func runREPL(cmd *cobra.Command, path string) error {
	ctx := cmd.Context()
	cctx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	src := sourceFor(cctx.Cfg, path)
	t, err := table.LoadCSV(ctx, src)
	if err != nil {
		return err
	}
	session := newREPLSession(cctx.Renderer, src, t, cctx.Cfg.MaxViolations)

	// History lives next to the state database, per project.
	historyFile := ""
	if dir := filepath.Dir(cctx.Cfg.StatePath); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err == nil {
			historyFile = filepath.Join(dir, "repl_history")
		}
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    session.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "leapdc REPL: %s (%d rows, %d columns)\n", path, t.NumRows(), t.NumColumns())
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type a constraint like !(t.A == s.A and t.B != s.B), .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if session.handleLine(ctx, line) {
			return nil
		}
	}
}

// replSession evaluates REPL input against one loaded table.
type replSession struct {
	r        *output.Renderer
	src      table.Source
	table    *table.Table
	limit    int
	strategy verify.Strategy
}

func newREPLSession(r *output.Renderer, src table.Source, t *table.Table, limit int) *replSession {
	return &replSession{r: r, src: src, table: t, limit: limit, strategy: verify.StrategyAuto}
}

// handleLine evaluates one line and reports whether the session should end.
func (s *replSession) handleLine(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if strings.HasPrefix(line, ".") {
		return s.handleDotCommand(line)
	}

	d, err := dc.Parse(line)
	if err != nil {
		s.printError(err)
		return false
	}
	v := verify.New(verify.Options{MaxViolations: s.limit, Strategy: s.strategy})
	v.LoadTable(s.table)

	start := time.Now()
	res, err := v.ExecuteDC(ctx, d)
	if err != nil {
		s.printError(err)
		return false
	}
	_ = renderVerification(s.r, &verification{
		Source:    s.src,
		Engine:    "memory",
		StartedAt: start,
		Result:    res,
		Table:     s.table,
	}, d, "")
	s.r.Println()
	return false
}

func (s *replSession) handleDotCommand(line string) bool {
	parts := strings.Fields(line)
	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(s.r.Writer())

	case ".columns", ".schema":
		renderSchema(s.r, s.src.Path, s.table)

	case ".strategy":
		if len(parts) < 2 {
			s.r.Println("strategy: " + string(s.strategy))
			return false
		}
		st, err := verify.ParseStrategy(parts[1])
		if err != nil {
			s.printError(err)
			return false
		}
		s.strategy = st

	case ".limit":
		if len(parts) < 2 {
			s.r.Println("limit: " + strconv.Itoa(s.limit))
			return false
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil {
			s.printError(fmt.Errorf("invalid limit %q", parts[1]))
			return false
		}
		s.limit = n

	default:
		_, _ = fmt.Fprintf(s.r.ErrWriter(), "Unknown command: %s (type .help for commands)\n", parts[0])
	}
	return false
}

func (s *replSession) printError(err error) {
	_, _ = fmt.Fprintf(s.r.ErrWriter(), "Error: %v\n", err)
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help              Show this help message
  .columns           Show the columns and their types
  .strategy [name]   Show or set the strategy (auto|all-equality|one-inequality|general)
  .limit [n]         Show or set the violation cap (0 = default, -1 = all)
  .quit / .exit      Exit the REPL

Constraints:
  !(t.A == s.A and t.B != s.B)     functional dependency A -> B
  !(t.A == s.A and t.B < s.B)      ordering within A
  !(t.Price < 0)                   single-row check
`
	_, _ = fmt.Fprintln(w, help)
}

var replCommands = []string{".help", ".columns", ".strategy", ".limit", ".quit", ".exit"}

func (s *replSession) completer() readline.AutoCompleter {
	return &constraintCompleter{columns: s.table.ColumnNames()}
}

// constraintCompleter completes dot commands at the start of a line and
// column names after a tuple variable.
type constraintCompleter struct {
	columns []string
}

func (c *constraintCompleter) Do(line []rune, pos int) ([][]rune, int) {
	head := string(line[:pos])

	var word string
	var candidates []string
	switch {
	case strings.HasPrefix(head, ".") && !strings.ContainsAny(head, " \t"):
		word, candidates = head, replCommands
	default:
		start := strings.LastIndexAny(head, " (!=<>&\t") + 1
		word = head[start:]
		dot := strings.IndexByte(word, '.')
		if dot < 0 {
			candidates = strings.Fields(replVars)
			for i := range candidates {
				candidates[i] += "."
			}
			break
		}
		word = word[dot+1:]
		candidates = c.columns
	}

	var out [][]rune
	for _, cand := range candidates {
		if strings.HasPrefix(cand, word) && len(cand) > len(word) {
			out = append(out, []rune(cand[len(word):]))
		}
	}
	return out, len([]rune(word))
}
