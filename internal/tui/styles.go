package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#B4BEFE"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#1E1E2E")).
			Background(lipgloss.Color("#CBA6F7"))

	selectedHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Underline(true).
				Foreground(lipgloss.Color("#1E1E2E")).
				Background(lipgloss.Color("#89B4FA"))

	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF"))

	criticalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))

	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))

	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F38BA8"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6ADC8")).Padding(1, 0, 0, 0)
)
