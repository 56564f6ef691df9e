package output

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles holds the lipgloss styles used by the renderer.
type Styles struct {
	Header        lipgloss.Style
	Bold          lipgloss.Style
	Muted         lipgloss.Style
	Success       lipgloss.Style
	Error         lipgloss.Style
	Warning       lipgloss.Style
	Info          lipgloss.Style
	RecipeName    lipgloss.Style
	StatusSuccess lipgloss.Style
	StatusFailed  lipgloss.Style
	StatusSkipped lipgloss.Style
}

// NewStyles creates styles bound to a lipgloss renderer, so color output
// follows that renderer's terminal profile.
func NewStyles(lr *lipgloss.Renderer) *Styles {
	return &Styles{
		Header:        lr.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Bold:          lr.NewStyle().Bold(true),
		Muted:         lr.NewStyle().Foreground(lipgloss.Color("8")),
		Success:       lr.NewStyle().Foreground(lipgloss.Color("10")),
		Error:         lr.NewStyle().Foreground(lipgloss.Color("9")),
		Warning:       lr.NewStyle().Foreground(lipgloss.Color("11")),
		Info:          lr.NewStyle().Foreground(lipgloss.Color("14")),
		RecipeName:    lr.NewStyle().Bold(true).Foreground(lipgloss.Color("13")),
		StatusSuccess: lr.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		StatusFailed:  lr.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		StatusSkipped: lr.NewStyle().Foreground(lipgloss.Color("8")),
	}
}
