package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/ffexec/internal/parser"
	"github.com/randomizedcoder/ffexec/internal/process"
	"github.com/randomizedcoder/ffexec/internal/stats"
)

// =============================================================================
// Main View Rendering
// =============================================================================

// renderDashboard renders the whole dashboard.
func (m Model) renderDashboard() string {
	var sections []string

	sections = append(sections, m.renderHeader())
	if m.exit != nil {
		sections = append(sections, m.renderExit())
	}
	if !m.detailedView {
		sections = append(sections, m.renderProgress())
		sections = append(sections, m.renderRecords())
	}
	sections = append(sections, m.renderLog())
	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	header := fmt.Sprintf(
		" ffexec │ %s │ Elapsed: %s ",
		GetStateLabel(m.state, m.stopping),
		stats.FormatDuration(m.Elapsed()),
	)
	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Exit
// =============================================================================

func (m Model) renderExit() string {
	e := m.exit
	style := GetOutcomeStyle(e.Kind)

	rows := []string{
		RenderKeyValue("Outcome", style.Render(e.Kind.String())),
		RenderKeyValue("Exit Code", fmt.Sprint(e.ExitCode)),
	}
	if e.Err != nil {
		rows = append(rows, statusError.Render(truncate(e.Err.Error(), m.width-6)))
	}
	rows = append(rows, dimStyle.Render("press q to close"))

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Finished")}, rows...)...,
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Progress Section
// =============================================================================

func (m Model) renderProgress() string {
	var rows []string

	var p *parser.ProgressUpdate
	if m.snapshot != nil {
		p = m.snapshot.Progress
	}
	if p == nil {
		rows = append(rows, mutedStyle.Render("Waiting for progress..."))
	} else {
		if progress := m.Progress(); progress >= 0 {
			barWidth := m.width - 30
			if barWidth < 20 {
				barWidth = 20
			}
			rows = append(rows, RenderProgressBar(progress, barWidth))
		}
		rows = append(rows,
			RenderKeyValue("Frame", fmt.Sprintf("%d", p.Frame)),
			RenderKeyValue("FPS", fmt.Sprintf("%.1f", p.FPS)),
			lipgloss.JoinHorizontal(lipgloss.Left, labelStyle.Render("Speed:"), GetSpeedLabel(p.Speed)),
			RenderKeyValue("Output Time", stats.FormatDuration(p.OutTimeDuration())),
		)
		if p.TotalSize > 0 {
			rows = append(rows, RenderKeyValue("Output Size", stats.FormatBytes(p.TotalSize)))
		}
		if p.Bitrate != "" {
			rows = append(rows, RenderKeyValue("Bitrate", p.Bitrate))
		}
		if p.DropFrames > 0 || p.DupFrames > 0 {
			rows = append(rows, RenderKeyValue("Drop/Dup", fmt.Sprintf("%d/%d", p.DropFrames, p.DupFrames)))
		}
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Progress")}, rows...)...,
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Log Records
// =============================================================================

func (m Model) renderRecords() string {
	s := m.snapshot
	if s == nil || s.TotalRecords == 0 {
		return ""
	}

	var counts []string
	for _, sev := range process.Severities() {
		n := s.Records[sev]
		if n == 0 {
			continue
		}
		counts = append(counts, GetLevelStyle(sev.Level()).Render(fmt.Sprintf("%s %s", sev, stats.FormatNumber(n))))
	}

	rows := []string{
		strings.Join(counts, mutedStyle.Render("  ")),
	}
	if s.GapMax > 0 {
		rows = append(rows, RenderKeyValue("Gap P50/P95/Max", fmt.Sprintf("%s / %s / %s",
			stats.FormatMs(s.GapP50), stats.FormatMs(s.GapP95), stats.FormatMs(s.GapMax))))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Log Records")}, rows...)...,
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Log Tail
// =============================================================================

func (m Model) renderLog() string {
	if len(m.entries) == 0 {
		return ""
	}

	rows := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		// continuation lines of multi-line records share the first line's row
		msg := strings.ReplaceAll(e.Message, "\n", " ⏎ ")
		line := fmt.Sprintf("%s %s", e.Time.Format("15:04:05"), truncate(msg, m.width-15))
		rows = append(rows, GetLevelStyle(e.Level).Render(line))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Log")}, rows...)...,
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	shortcuts := []string{
		"q: stop gracefully",
		"k: kill",
		"d: toggle log view",
	}
	if m.exit != nil {
		shortcuts = []string{"q: quit", "d: toggle log view"}
	}

	right := truncate(m.command, m.width-60)
	if m.metricsAddr != "" {
		right = "Metrics: http://" + m.metricsAddr + "/metrics"
	}

	left := dimStyle.Render(strings.Join(shortcuts, " │ "))
	rightStyled := dimStyle.Render(right)

	// Pad to fill width
	padding := m.width - lipgloss.Width(left) - lipgloss.Width(rightStyled) - 2
	if padding < 1 {
		padding = 1
	}

	return footerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Left,
			left,
			strings.Repeat(" ", padding),
			rightStyled,
		),
	)
}

// =============================================================================
// Helpers
// =============================================================================

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	switch {
	case len(r) <= n:
		return s
	case n <= 0:
		return ""
	case n <= 3:
		return string(r[:n])
	default:
		return string(r[:n-3]) + "..."
	}
}
