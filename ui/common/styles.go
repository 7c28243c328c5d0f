package common

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

const (
	COLOR_GREY      = "241"
	COLOR_DARK_GREY = "238"
	COLOR_MAGENTA   = "170"
	COLOR_LIGHTBLUE = "69"
	COLOR_GREEN     = "#7FFF00"
	COLOR_RED       = "196"
	COLOR_PURPLE    = "#7D56F4"
)

var (
	HelpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(COLOR_GREY)).Padding(0, 2)
	CaptionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(COLOR_MAGENTA)).Padding(1, 2)
	StatusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(COLOR_GREEN)).Padding(0, 2)
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(COLOR_RED)).Padding(0, 2)
	EmptyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(COLOR_DARK_GREY)).Italic(true).Padding(0, 2)
)

// TableStyles is the look shared by every table of the console.
func TableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color(COLOR_GREY)).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color(COLOR_PURPLE)).
		Bold(false)
	return s
}

func DefaultWindowWidth(width int) int {
	return max(width-4, 40)
}

// DefaultTableHeight leaves room for header, caption and help lines.
func DefaultTableHeight(height int) int {
	return max(height-14, 3)
}
