package output

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used by text output.
type Styles struct {
	Header  lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Muted   lipgloss.Style
	Bold    lipgloss.Style
	Key     lipgloss.Style
	Path    lipgloss.Style
}

// NewStyles builds styles bound to a lipgloss renderer so the color
// profile follows the output stream.
func NewStyles(r *lipgloss.Renderer) *Styles {
	return &Styles{
		Header:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Success: r.NewStyle().Foreground(lipgloss.Color("10")),
		Error:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		Warning: r.NewStyle().Foreground(lipgloss.Color("11")),
		Info:    r.NewStyle().Foreground(lipgloss.Color("14")),
		Muted:   r.NewStyle().Foreground(lipgloss.Color("8")),
		Bold:    r.NewStyle().Bold(true),
		Key:     r.NewStyle().Foreground(lipgloss.Color("7")).Bold(true),
		Path:    r.NewStyle().Foreground(lipgloss.Color("13")),
	}
}
