package stats

import (
	"fmt"
	"strings"
	"time"

	"github.com/randomizedcoder/ffexec/internal/process"
)

// maxSummaryErrors is how many error records the summary shows.
const maxSummaryErrors = 5

const (
	rule    = "═══════════════════════════════════════════════════════════════════════════════\n"
	subRule = "───────────────────────────────────────────────────────────────────────────────\n"
)

// OutputSize is one line of the FFmpeg final size report.
type OutputSize struct {
	Name  string
	Bytes int64
}

// SummaryConfig holds what the summary reports besides the Recorder
// snapshot.
type SummaryConfig struct {
	// Command is the command line that was run
	Command string

	// ExecTag identifies the execution in the logs
	ExecTag string

	Outcome process.OutcomeKind

	// ExitCode is -1 when the process never started
	ExitCode int

	Duration time.Duration

	// Err is the error of the outcome, nil on success
	Err error

	// ErrorLog holds the records of severity error or higher
	ErrorLog []process.LogRecord

	// Output lists the stream sizes of the FFmpeg size report
	Output         []OutputSize
	MuxingOverhead *float64

	// MetricsAddr is the Prometheus metrics endpoint address
	MetricsAddr string
}

// FormatExitSummary formats the statistics of one execution for display
// at program exit.
func FormatExitSummary(snap *Snapshot, cfg SummaryConfig) string {
	if snap == nil {
		return formatBasicSummary(cfg)
	}

	var b strings.Builder
	writeHeader(&b)
	writeRunInfo(&b, cfg)

	// Log records
	if snap.TotalRecords > 0 {
		writeSection(&b, "Log Records")
		fmt.Fprintf(&b, "  %-12s %12s\n", "Severity", "Count")
		b.WriteString("  " + strings.Repeat("─", 25) + "\n")
		for _, sev := range process.Severities() {
			if n := snap.Records[sev]; n > 0 {
				fmt.Fprintf(&b, "  %-12s %12s\n", sev, FormatNumber(n))
			}
		}
		fmt.Fprintf(&b, "  %-12s %12s\n\n", "total", FormatNumber(snap.TotalRecords))

		if snap.GapMax > 0 {
			fmt.Fprintf(&b, "  Gap P50:              %s\n", FormatMs(snap.GapP50))
			fmt.Fprintf(&b, "  Gap P95:              %s\n", FormatMs(snap.GapP95))
			fmt.Fprintf(&b, "  Gap P99:              %s\n", FormatMs(snap.GapP99))
			fmt.Fprintf(&b, "  Gap Max:              %s\n\n", FormatMs(snap.GapMax))
		}
	}

	// Progress
	if p := snap.Progress; p != nil {
		writeSection(&b, "Progress")
		fmt.Fprintf(&b, "  Frames:               %d\n", p.Frame)
		fmt.Fprintf(&b, "  Output Time:          %s\n", FormatDuration(p.OutTimeDuration()))
		if p.TotalSize > 0 {
			fmt.Fprintf(&b, "  Output Size:          %s\n", FormatBytes(p.TotalSize))
		}
		if p.DropFrames > 0 || p.DupFrames > 0 {
			fmt.Fprintf(&b, "  Dropped/Duplicated:   %d/%d\n", p.DropFrames, p.DupFrames)
		}
		if snap.SpeedMax > 0 {
			fmt.Fprintf(&b, "  Speed P50:            %.2fx (min %.2fx, max %.2fx)\n",
				snap.SpeedP50, snap.SpeedMin, snap.SpeedMax)
		}
		fmt.Fprintf(&b, "  Updates:              %d\n\n", snap.ProgressUpdates)
	}

	writeOutput(&b, cfg)
	writeErrors(&b, cfg)
	writeFooter(&b, cfg)
	return b.String()
}

// formatBasicSummary formats a summary when no statistics were recorded.
func formatBasicSummary(cfg SummaryConfig) string {
	var b strings.Builder
	writeHeader(&b)
	writeRunInfo(&b, cfg)
	writeOutput(&b, cfg)
	writeErrors(&b, cfg)
	writeFooter(&b, cfg)
	return b.String()
}

func writeHeader(b *strings.Builder) {
	b.WriteString("\n")
	b.WriteString(rule)
	b.WriteString("                              ffexec Exit Summary\n")
	b.WriteString(rule)
	b.WriteString("\n")
}

func writeSection(b *strings.Builder, title string) {
	b.WriteString(subRule)
	pad := (len([]rune(subRule)) - 1 - len(title)) / 2
	if pad < 0 {
		pad = 0
	}
	b.WriteString(strings.Repeat(" ", pad) + title + "\n")
	b.WriteString(subRule)
	b.WriteString("\n")
}

func writeRunInfo(b *strings.Builder, cfg SummaryConfig) {
	if cfg.Command != "" {
		fmt.Fprintf(b, "Command:                %s\n", cfg.Command)
	}
	if cfg.ExecTag != "" {
		fmt.Fprintf(b, "Exec Tag:               %s\n", cfg.ExecTag)
	}
	fmt.Fprintf(b, "Outcome:                %s\n", cfg.Outcome)
	if cfg.ExitCode >= 0 {
		fmt.Fprintf(b, "Exit Code:              %d %s\n", cfg.ExitCode, exitCodeLabel(cfg.ExitCode))
	}
	fmt.Fprintf(b, "Run Duration:           %s\n\n", FormatDuration(cfg.Duration))
}

func writeOutput(b *strings.Builder, cfg SummaryConfig) {
	if len(cfg.Output) == 0 && cfg.MuxingOverhead == nil {
		return
	}
	writeSection(b, "Output")
	for _, o := range cfg.Output {
		fmt.Fprintf(b, "  %-20s %12s\n", o.Name+":", FormatBytes(o.Bytes))
	}
	if cfg.MuxingOverhead != nil {
		fmt.Fprintf(b, "  %-20s %11.3f%%\n", "muxing overhead:", *cfg.MuxingOverhead*100)
	}
	b.WriteString("\n")
}

func writeErrors(b *strings.Builder, cfg SummaryConfig) {
	if cfg.Err == nil && len(cfg.ErrorLog) == 0 {
		return
	}
	writeSection(b, "Errors")
	if cfg.Err != nil {
		fmt.Fprintf(b, "  %s\n", cfg.Err)
	}

	records := cfg.ErrorLog
	if len(records) > maxSummaryErrors {
		fmt.Fprintf(b, "  (%d earlier error records not shown)\n", len(records)-maxSummaryErrors)
		records = records[len(records)-maxSummaryErrors:]
	}
	for _, rec := range records {
		lines := strings.Split(rec.Message, "\n")
		fmt.Fprintf(b, "  [%s] %s\n", rec.Severity, lines[0])
		for _, l := range lines[1:] {
			fmt.Fprintf(b, "          %s\n", l)
		}
	}
	b.WriteString("\n")
}

func writeFooter(b *strings.Builder, cfg SummaryConfig) {
	if cfg.MetricsAddr != "" {
		fmt.Fprintf(b, "Metrics endpoint was: http://%s/metrics\n", cfg.MetricsAddr)
	}
	b.WriteString(rule)
}

// exitCodeLabel returns a human-readable label for common exit codes.
func exitCodeLabel(code int) string {
	switch code {
	case 0:
		return "(clean)"
	case 1:
		return "(error)"
	case 130:
		return "(SIGINT)"
	case 137:
		return "(SIGKILL)"
	case 143:
		return "(SIGTERM)"
	default:
		return ""
	}
}

// =============================================================================
// Formatting Helper Functions (exported for reuse)
// =============================================================================

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatNumber formats a number with K/M suffixes for readability.
func FormatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

// FormatBytes formats bytes with KiB/MiB/GiB suffixes, the units FFmpeg
// reports sizes in.
func FormatBytes(n int64) string {
	const (
		kib = 1 << 10
		mib = 1 << 20
		gib = 1 << 30
	)
	switch {
	case n >= gib:
		return fmt.Sprintf("%.2f GiB", float64(n)/gib)
	case n >= mib:
		return fmt.Sprintf("%.2f MiB", float64(n)/mib)
	case n >= kib:
		return fmt.Sprintf("%.2f KiB", float64(n)/kib)
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// FormatMs formats a duration as milliseconds.
func FormatMs(d time.Duration) string {
	ms := d.Milliseconds()
	if ms == 0 && d > 0 {
		// Sub-millisecond, show microseconds
		return fmt.Sprintf("%d µs", d.Microseconds())
	}
	return fmt.Sprintf("%d ms", ms)
}
