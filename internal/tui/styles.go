// Package tui provides the interactive terminal dashboard.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/redmiedge/sensordash/internal/dashboard"
	"github.com/redmiedge/sensordash/internal/sensor"
)

// Color palette
var (
	primaryColor   = lipgloss.Color("#7C3AED") // Purple
	secondaryColor = lipgloss.Color("#06B6D4") // Cyan
	successColor   = lipgloss.Color("#10B981") // Green
	errorColor     = lipgloss.Color("#EF4444") // Red
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	mutedColor     = lipgloss.Color("#6B7280") // Gray
	accentColor    = lipgloss.Color("#F472B6") // Pink
)

// traceColors are assigned to chart traces in order.
var traceColors = []lipgloss.Color{
	lipgloss.Color("#3B82F6"), // Blue
	lipgloss.Color("#F59E0B"), // Amber
	lipgloss.Color("#10B981"), // Emerald
	lipgloss.Color("#EF4444"), // Red
	lipgloss.Color("#8B5CF6"), // Violet
}

// Box styles
var (
	// BoxStyle is the main container style
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	// FocusedBoxStyle marks the sensor under the cursor
	FocusedBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(secondaryColor).
			Padding(0, 1)

	// HeaderStyle for headers
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	// TitleStyle for main titles
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primaryColor).
			Padding(0, 2)

	// SectionHeaderStyle for dashboard sections
	SectionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#FFFFFF")).
				Background(secondaryColor).
				Padding(0, 1)
)

// Text styles
var (
	SelectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(secondaryColor)

	CursorStyle = lipgloss.NewStyle().
			Foreground(secondaryColor).
			Bold(true)

	MutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(successColor)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	WarningStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	PinnedStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true)

	ToastStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(warningColor).
			Padding(0, 1)
)

// Help bar style
var (
	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(0, 1)

	HelpKeyStyle = lipgloss.NewStyle().
			Foreground(secondaryColor).
			Bold(true)
)

// TrendStyle colours a trend arrow: up green, down red, flat grey.
func TrendStyle(trend string) lipgloss.Style {
	switch trend {
	case sensor.TrendUp:
		return SuccessStyle
	case sensor.TrendDown:
		return ErrorStyle
	default:
		return MutedStyle
	}
}

// chartStyle is the style of the chart canvas for a stored background colour.
func chartStyle(background string) lipgloss.Style {
	fg := lipgloss.Color("#111111")
	if background == dashboard.DarkBackground {
		fg = lipgloss.Color("#DDDDDD")
	}
	return lipgloss.NewStyle().
		Background(lipgloss.Color(background)).
		Foreground(fg)
}

// StateStyle returns the style of a connection state label.
func StateStyle(state string) lipgloss.Style {
	switch state {
	case "streaming":
		return SuccessStyle
	case "connecting":
		return WarningStyle
	default:
		return ErrorStyle
	}
}
