// Package output renders command results for terminals, pipes and
// machines.
//
// Auto mode prints styled text on a terminal and markdown otherwise.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/muesli/termenv"
	"golang.org/x/term"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Mode selects how output is formatted.
type Mode string

// Output modes.
const (
	ModeAuto     Mode = "auto"
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeJSON     Mode = "json"
)

// Renderer writes formatted output to stdout and messages to stderr.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	isTTY  bool
	styles *Styles
}

// NewRenderer creates a renderer, detecting whether out is a terminal.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	return NewRendererWithTTY(out, errOut, isTerminal(out), mode)
}

// NewRendererWithTTY creates a renderer with an explicit terminal state.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode Mode) *Renderer {
	if mode == "" {
		mode = ModeAuto
	}
	lg := lipgloss.NewRenderer(out)
	if !isTTY || os.Getenv("NO_COLOR") != "" {
		lg.SetColorProfile(termenv.Ascii)
	} else {
		lg.SetColorProfile(termenv.NewOutput(out).EnvColorProfile())
	}
	return &Renderer{
		out:    out,
		errOut: errOut,
		mode:   mode,
		isTTY:  isTTY,
		styles: NewStyles(lg),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}

// EffectiveMode resolves auto to text or markdown.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode != ModeAuto {
		return r.mode
	}
	if r.isTTY {
		return ModeText
	}
	return ModeMarkdown
}

// IsTTY reports whether stdout is a terminal.
func (r *Renderer) IsTTY() bool { return r.isTTY }

// Styles returns the text styles.
func (r *Renderer) Styles() *Styles { return r.styles }

// Writer returns the stdout writer.
func (r *Renderer) Writer() io.Writer { return r.out }

// ErrWriter returns the stderr writer.
func (r *Renderer) ErrWriter() io.Writer { return r.errOut }

// Println writes a line to stdout.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted text to stdout.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// Header prints a section header.
func (r *Renderer) Header(level int, text string) {
	if r.EffectiveMode() == ModeText {
		r.Println(r.styles.Header.Render(text))
		return
	}
	r.Println(FormatHeader(level, text))
	r.Println()
}

// KeyValue prints a labeled value.
func (r *Renderer) KeyValue(key, value string) {
	if r.EffectiveMode() == ModeText {
		r.Printf("%s %s\n", r.styles.Key.Render(key+":"), value)
		return
	}
	r.Println(FormatKeyValue(key, value))
}

// Success prints a success message.
func (r *Renderer) Success(msg string) {
	r.status(r.styles.Success, "✓", "**OK**", msg)
}

// Warning prints a warning to stderr.
func (r *Renderer) Warning(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Warning.Render("Warning: "+msg))
}

// Error prints an error line to stdout, as part of a report.
func (r *Renderer) Error(msg string) {
	r.status(r.styles.Error, "✗", "**FAIL**", msg)
}

// Muted prints secondary information.
func (r *Renderer) Muted(msg string) {
	if r.EffectiveMode() == ModeText {
		r.Println(r.styles.Muted.Render(msg))
		return
	}
	r.Println("_" + msg + "_")
}

func (r *Renderer) status(style lipgloss.Style, symbol, mdLabel, msg string) {
	if r.EffectiveMode() == ModeText {
		r.Println(style.Render(symbol + " " + msg))
		return
	}
	r.Println(mdLabel + " " + msg)
}

// StatusLine prints one item with a status of success, failed, error or skipped.
func (r *Renderer) StatusLine(name, status, detail string) {
	var style lipgloss.Style
	symbol := "•"
	switch status {
	case "success":
		style, symbol = r.styles.Success, "✓"
	case "failed", "error":
		style, symbol = r.styles.Error, "✗"
	case "skipped":
		style, symbol = r.styles.Muted, "-"
	default:
		style = r.styles.Info
	}

	if r.EffectiveMode() != ModeText {
		line := fmt.Sprintf("- %s **%s**", symbol, name)
		if detail != "" {
			line += " " + detail
		}
		r.Println(line)
		return
	}
	line := style.Render(symbol) + " " + name
	if detail != "" {
		line += " " + r.styles.Muted.Render(detail)
	}
	r.Println(line)
}

// Table prints rows under headers, as a box table in text mode and a
// markdown table otherwise.
func (r *Renderer) Table(headers []string, rows [][]string) {
	t := prettytable.NewWriter()
	header := make(prettytable.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	t.AppendHeader(header)
	for _, row := range rows {
		out := make(prettytable.Row, len(row))
		for i, v := range row {
			out[i] = v
		}
		t.AppendRow(out)
	}

	if r.EffectiveMode() == ModeText {
		t.SetStyle(prettytable.StyleLight)
		r.Println(t.Render())
		return
	}
	r.Println(t.RenderMarkdown())
	r.Println()
}

// JSON writes v as indented JSON to stdout.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// FormatHeader formats a markdown header.
func FormatHeader(level int, text string) string {
	if level < 1 {
		level = 1
	}
	return strings.Repeat("#", level) + " " + text
}

// FormatKeyValue formats a markdown list item with a bold key.
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("- **%s:** %s", key, value)
}

// Label turns an identifier like "one-inequality" into "One Inequality".
func Label(s string) string {
	return cases.Title(language.English).String(strings.NewReplacer("-", " ", "_", " ").Replace(s))
}
