package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorGreen = lipgloss.Color("#2fd576")
	colorRed   = lipgloss.Color("#ff6b6b")
	colorWhite = lipgloss.Color("#e6edf3")
	colorGray  = lipgloss.Color("#9aa4b2")
	colorBlue  = lipgloss.Color("#4f8cff")
)

// Styles holds the lipgloss styles for the history browser.
type Styles struct {
	Header   lipgloss.Style
	Item     lipgloss.Style
	Selected lipgloss.Style
	Pass     lipgloss.Style
	Fail     lipgloss.Style
	Dim      lipgloss.Style
	Help     lipgloss.Style
}

// DefaultStyles returns the default style configuration.
func DefaultStyles() Styles {
	return Styles{
		Header:   lipgloss.NewStyle().Bold(true).Foreground(colorBlue).MarginBottom(1),
		Item:     lipgloss.NewStyle().Foreground(colorWhite),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(colorBlue),
		Pass:     lipgloss.NewStyle().Foreground(colorGreen),
		Fail:     lipgloss.NewStyle().Foreground(colorRed),
		Dim:      lipgloss.NewStyle().Foreground(colorGray),
		Help:     lipgloss.NewStyle().Foreground(colorGray).MarginTop(1),
	}
}
