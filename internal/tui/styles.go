// Package tui provides a live terminal dashboard for one FFmpeg run.
//
// The TUI uses Bubble Tea for the application framework and Lipgloss for styling.
// It displays:
// - Process state and elapsed time
// - FFmpeg progress (frame, fps, speed, size)
// - Log record counts by severity
// - The most recent log records
package tui

import (
	"fmt"
	"log/slog"

	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/ffexec/internal/process"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	// Primary colors
	colorPrimary   = lipgloss.Color("#7C3AED") // Purple
	colorSecondary = lipgloss.Color("#06B6D4") // Cyan

	// Status colors
	colorSuccess = lipgloss.Color("#10B981") // Green
	colorWarning = lipgloss.Color("#F59E0B") // Amber
	colorError   = lipgloss.Color("#EF4444") // Red
	colorInfo    = lipgloss.Color("#3B82F6") // Blue

	// Neutral colors
	colorText      = lipgloss.Color("#E5E7EB") // Light gray
	colorTextMuted = lipgloss.Color("#9CA3AF") // Medium gray
	colorTextDim   = lipgloss.Color("#6B7280") // Dark gray
	colorBorder    = lipgloss.Color("#374151") // Border gray
)

// =============================================================================
// Base Styles
// =============================================================================

var (
	mutedStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)
)

// =============================================================================
// Status Indicator Styles
// =============================================================================

var (
	statusOK = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	statusWarning = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	statusError = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	statusInfo = lipgloss.NewStyle().
			Foreground(colorInfo).
			Bold(true)
)

// =============================================================================
// Layout Styles
// =============================================================================

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorPrimary).
			Bold(true).
			Padding(0, 1).
			MarginBottom(1)

	sectionHeaderStyle = lipgloss.NewStyle().
				Foreground(colorSecondary).
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(colorBorder)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted).
			MarginTop(1)
)

// =============================================================================
// Value Styles
// =============================================================================

var (
	valueStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Bold(true)

	valueGoodStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	valueBadStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	valueWarnStyle = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted).
			Width(20)
)

// =============================================================================
// Progress Bar Styles
// =============================================================================

var (
	progressBarStyle = lipgloss.NewStyle().
				Foreground(colorPrimary)

	progressBarEmptyStyle = lipgloss.NewStyle().
				Foreground(colorBorder)

	progressPercentStyle = lipgloss.NewStyle().
				Foreground(colorText).
				Bold(true)
)

// =============================================================================
// Speed Status Indicator
// =============================================================================

// GetSpeedStyle returns a style based on processing speed.
func GetSpeedStyle(speed float64) lipgloss.Style {
	switch {
	case speed >= 1.0:
		return valueGoodStyle
	case speed >= 0.9:
		return valueWarnStyle
	default:
		return valueBadStyle
	}
}

// GetSpeedLabel returns a styled speed value.
func GetSpeedLabel(speed float64) string {
	style := GetSpeedStyle(speed)
	return style.Render(formatSpeedValue(speed))
}

func formatSpeedValue(speed float64) string {
	if speed == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.2fx", speed)
}

// =============================================================================
// Level and State Indicators
// =============================================================================

// GetLevelStyle returns the style of a log line at level.
func GetLevelStyle(level slog.Level) lipgloss.Style {
	switch {
	case level >= slog.LevelError:
		return statusError
	case level >= slog.LevelWarn:
		return statusWarning
	case level >= slog.LevelInfo:
		return valueStyle
	default:
		return dimStyle
	}
}

// GetStateLabel returns a styled label for the process state.
func GetStateLabel(state process.State, stopping string) string {
	switch {
	case state == process.StateRunning && stopping != "":
		return statusWarning.Render("● Stopping (" + stopping + ")")
	case state == process.StateRunning:
		return statusOK.Render("● Running")
	case state == process.StateTerminating:
		return statusWarning.Render("● Terminating")
	case state == process.StateExited:
		return mutedStyle.Render("● Exited")
	default:
		return statusInfo.Render("● Starting")
	}
}

// GetOutcomeStyle returns the style of a terminal outcome.
func GetOutcomeStyle(kind process.OutcomeKind) lipgloss.Style {
	switch kind {
	case process.OutcomeSuccess:
		return statusOK
	case process.OutcomeAbnormalExit:
		return statusError
	default:
		return statusWarning
	}
}

// =============================================================================
// Helper Functions
// =============================================================================

// RenderKeyValue renders a label-value pair.
func RenderKeyValue(label string, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		labelStyle.Render(label+":"),
		valueStyle.Render(value),
	)
}

// RenderProgressBar renders a progress bar.
func RenderProgressBar(progress float64, width int) string {
	if width < 10 {
		width = 10
	}

	filled := int(progress * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	bar := progressBarStyle.Render(repeatChar('█', filled)) +
		progressBarEmptyStyle.Render(repeatChar('░', width-filled))

	percent := progressPercentStyle.Render(fmt.Sprintf(" %3.0f%%", progress*100))

	return bar + percent
}

func repeatChar(char rune, count int) string {
	if count <= 0 {
		return ""
	}
	result := make([]rune, count)
	for i := range result {
		result[i] = char
	}
	return string(result)
}
