// Package preflight provides startup validation checks.
package preflight

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/randomizedcoder/ffexec/internal/supervisor"
	"github.com/randomizedcoder/ffexec/internal/version"
)

// requiredFDs covers the three pipes, the progress socket and a few
// inputs and outputs of one FFmpeg process, plus ffexec's own files.
const requiredFDs = 64

// versionTimeout bounds "ffmpeg -version".
const versionTimeout = 10 * time.Second

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// Options selects what RunAll checks.
type Options struct {
	FFmpegPath  string
	FFprobePath string

	// NeedFFprobe makes a missing ffprobe fatal instead of a warning.
	NeedFFprobe bool

	// ProgressSocket checks that a Unix socket can be created in the
	// temp directory.
	ProgressSocket bool

	// Supervisor runs "ffmpeg -version". Defaults to a new one.
	Supervisor *supervisor.Supervisor
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// RunAll executes all preflight checks.
func RunAll(ctx context.Context, opts Options) *Result {
	if opts.Supervisor == nil {
		opts.Supervisor = supervisor.New(supervisor.Config{})
	}

	result := &Result{
		Checks: make([]Check, 0, 4),
		Passed: true,
	}
	add := func(c Check) {
		result.Checks = append(result.Checks, c)
		if !c.Passed {
			result.Passed = false
		}
	}

	add(checkFileDescriptors())
	add(checkFFmpeg(ctx, opts.Supervisor, opts.FFmpegPath))
	add(checkFFprobe(opts.FFprobePath, opts.NeedFFprobe))
	if opts.ProgressSocket {
		add(checkProgressSocket())
	}
	return result
}

// checkFileDescriptors warns when the open file limit is low.
func checkFileDescriptors() Check {
	actual, ok := fileDescriptorLimit()
	if !ok {
		return Check{
			Name:    "file_descriptors",
			Passed:  true,
			Warning: true,
			Message: "unable to check (unsupported platform)",
		}
	}
	return Check{
		Name:     "file_descriptors",
		Required: requiredFDs,
		Actual:   actual,
		Passed:   true, // Don't fail on this
		Warning:  actual < requiredFDs,
		Message:  fmt.Sprintf("ulimit -n %d (recommend %d)", actual, requiredFDs),
	}
}

// checkFFmpeg verifies FFmpeg is available and reports its version.
func checkFFmpeg(ctx context.Context, sup *supervisor.Supervisor, path string) Check {
	if _, err := exec.LookPath(path); err != nil {
		return Check{
			Name:    "ffmpeg",
			Passed:  false,
			Message: fmt.Sprintf("not found at %s: %v", path, err),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	info, err := version.Query(ctx, sup, path)
	if err != nil {
		return Check{
			Name:    "ffmpeg",
			Passed:  false,
			Message: fmt.Sprintf("%s -version failed: %v", path, err),
		}
	}

	return Check{
		Name:    "ffmpeg",
		Passed:  true,
		Message: fmt.Sprintf("found at %s (version %s)", path, info.Version),
	}
}

// checkFFprobe verifies ffprobe is available.
func checkFFprobe(path string, required bool) Check {
	resolved, err := exec.LookPath(path)
	if err != nil {
		return Check{
			Name:    "ffprobe",
			Passed:  !required,
			Warning: !required,
			Message: fmt.Sprintf("not found at %s", path),
		}
	}
	return Check{
		Name:    "ffprobe",
		Passed:  true,
		Message: fmt.Sprintf("found at %s", resolved),
	}
}

// checkProgressSocket creates and removes a Unix socket in the temp
// directory, where the progress socket lives by default.
func checkProgressSocket() Check {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("ffexec-preflight-%d.sock", os.Getpid()))
	l, err := net.Listen("unix", path)
	if err != nil {
		return Check{
			Name:    "progress_socket",
			Passed:  true, // progress is optional
			Warning: true,
			Message: fmt.Sprintf("cannot listen on %s: %v", path, err),
		}
	}
	l.Close()
	os.Remove(path)

	return Check{
		Name:    "progress_socket",
		Passed:  true,
		Message: fmt.Sprintf("unix sockets usable in %s", os.TempDir()),
	}
}

// PrintResults writes the preflight check results to w.
func PrintResults(w io.Writer, result *Result) {
	fmt.Fprintln(w, "Preflight checks:")
	for _, check := range result.Checks {
		fmt.Fprintln(w, check.String())
		if !check.Passed || check.Warning {
			fmt.Fprintf(w, "    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Fprintln(w)
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "file_descriptors":
		return "ulimit -n 1024 (or edit /etc/security/limits.conf)"
	case "ffmpeg":
		return "install ffmpeg (apt install ffmpeg / brew install ffmpeg) or pass --ffmpeg"
	case "ffprobe":
		return "install ffprobe (ships with ffmpeg) or pass --ffprobe"
	case "progress_socket":
		return "set TMPDIR to a short, writable path or pass --progress=false"
	default:
		return "see documentation"
	}
}
