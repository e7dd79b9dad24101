package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	colorGreen  = lipgloss.Color("42")
	colorYellow = lipgloss.Color("214")
	colorRed    = lipgloss.Color("196")
	colorCyan   = lipgloss.Color("45")
	colorGray   = lipgloss.Color("245")
	colorWhite  = lipgloss.Color("255")
	colorBorder = lipgloss.Color("240")
	colorFocus  = lipgloss.Color("39")
)

// Styles defines the visual styles for the dashboard.
type Styles struct {
	Header    lipgloss.Style
	Title     lipgloss.Style
	Muted     lipgloss.Style
	HelpBar   lipgloss.Style
	Pane      lipgloss.Style
	PaneFocus lipgloss.Style
	PaneTitle lipgloss.Style
	Dialog    lipgloss.Style

	TestPassed    lipgloss.Style
	TestFalsified lipgloss.Style
	TestOpen      lipgloss.Style

	WorkerRunning lipgloss.Style
	WorkerStopped lipgloss.Style
	WorkerCrashed lipgloss.Style

	Scrollbar      lipgloss.Style
	ScrollbarThumb lipgloss.Style
}

// DefaultStyles returns the default style configuration.
func DefaultStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().
			Foreground(colorWhite).
			Padding(0, 1),

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan),

		Muted: lipgloss.NewStyle().
			Foreground(colorGray),

		HelpBar: lipgloss.NewStyle().
			Foreground(colorGray).
			Padding(0, 1),

		Pane: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder),

		PaneFocus: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorFocus),

		PaneTitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite),

		Dialog: lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(colorCyan).
			Padding(1, 2),

		TestPassed: lipgloss.NewStyle().
			Foreground(colorGreen),

		TestFalsified: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorRed),

		TestOpen: lipgloss.NewStyle().
			Foreground(colorGray),

		WorkerRunning: lipgloss.NewStyle().
			Foreground(colorGreen),

		WorkerStopped: lipgloss.NewStyle().
			Foreground(colorGray),

		WorkerCrashed: lipgloss.NewStyle().
			Foreground(colorRed),

		Scrollbar: lipgloss.NewStyle().
			Foreground(colorBorder),

		ScrollbarThumb: lipgloss.NewStyle().
			Foreground(colorYellow),
	}
}
