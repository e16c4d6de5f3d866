// Package tui renders a live install view with Bubble Tea.
//
// The view is opt-in (--tui flag) and read-mostly: it polls the
// session guard for snapshots and per-download rows, and its only
// write action is forwarding a kill request to the runner.
package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	primaryColor = lipgloss.Color("#7C3AED") // Purple
	successColor = lipgloss.Color("#10B981") // Green
	warningColor = lipgloss.Color("#F59E0B") // Amber
	errorColor   = lipgloss.Color("#EF4444") // Red
	mutedColor   = lipgloss.Color("#6B7280") // Gray
)

// Styles for view components.
var (
	// TitleStyle for the header line.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	// LabelStyle for field labels.
	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(10)

	// ValueStyle for field values.
	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	// SuccessStyle for finished states.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(successColor)

	// WarningStyle for in-flight states.
	WarningStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	// ErrorStyle for failures.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	// HelpStyle for the key help footer.
	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)
)

// StateStyle returns a style based on a phase or status string.
func StateStyle(state string) lipgloss.Style {
	switch state {
	case "installed", "succeeded", "completed":
		return SuccessStyle
	case "error", "failed":
		return ErrorStyle
	case "idle":
		return ValueStyle
	default:
		return WarningStyle
	}
}
