// Package version reads the version and build configuration of an FFmpeg
// tool from its "-version" output.
package version

import (
	"context"
	"errors"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/randomizedcoder/ffexec/internal/process"
	"github.com/randomizedcoder/ffexec/internal/supervisor"
)

// ErrNoVersion is returned when the output holds no version number.
var ErrNoVersion = errors.New("no version number found")

var versionPattern = regexp.MustCompile(`(\d+)(?:\.(\d+))?(?:\.(\d+))?`)

// Info describes an FFmpeg build.
type Info struct {
	// Version is the matched version text, e.g. "6.1.1" or "7.0".
	Version string

	Major int
	Minor int
	Patch int

	// Enabled and Disabled list the --enable-X and --disable-X
	// configure flags, sorted, without the prefix.
	Enabled  []string
	Disabled []string
}

// String returns "major.minor.patch".
func (i Info) String() string {
	return strconv.Itoa(i.Major) + "." + strconv.Itoa(i.Minor) + "." + strconv.Itoa(i.Patch)
}

// HasFeature reports whether the build was configured with --enable-name.
func (i Info) HasFeature(name string) bool {
	_, found := slices.BinarySearch(i.Enabled, name)
	return found
}

// AtLeast reports whether the version is major.minor or newer.
func (i Info) AtLeast(major, minor int) bool {
	if i.Major != major {
		return i.Major > major
	}
	return i.Minor >= minor
}

// Command returns "<binary> -version".
func Command(binaryPath string) (process.Command, error) {
	if binaryPath == "" {
		binaryPath = "ffmpeg"
	}
	return process.NewCommand(binaryPath, "-version")
}

// Handler extracts Info from "-version" output. Both channels are read
// the same way.
type Handler struct {
	mu       sync.Mutex
	match    []string
	enabled  map[string]struct{}
	disabled map[string]struct{}
}

// NewHandler creates a Handler.
func NewHandler() *Handler {
	return &Handler{
		enabled:  make(map[string]struct{}),
		disabled: make(map[string]struct{}),
	}
}

// OnStdoutLine implements parser.LineHandler.
func (h *Handler) OnStdoutLine(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.match == nil && strings.Contains(line, "version") {
		h.match = versionPattern.FindStringSubmatch(line)
		return
	}
	if !strings.HasPrefix(line, "configuration:") {
		return
	}
	for _, raw := range strings.Split(line, " ") {
		if name, ok := strings.CutPrefix(raw, "--enable-"); ok {
			h.enabled[name] = struct{}{}
		} else if name, ok := strings.CutPrefix(raw, "--disable-"); ok {
			h.disabled[name] = struct{}{}
		}
	}
}

// OnStderrLine implements parser.LineHandler.
func (h *Handler) OnStderrLine(line string) {
	h.OnStdoutLine(line)
}

// OnExit implements parser.LineHandler.
func (h *Handler) OnExit() {}

// Result implements supervisor.Handler.
func (h *Handler) Result(int) (Info, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.match == nil {
		return Info{}, ErrNoVersion
	}
	return Info{
		Version:  h.match[0],
		Major:    atoiOrZero(h.match[1]),
		Minor:    atoiOrZero(h.match[2]),
		Patch:    atoiOrZero(h.match[3]),
		Enabled:  sortedKeys(h.enabled),
		Disabled: sortedKeys(h.disabled),
	}, nil
}

// ErrorLog implements supervisor.Handler. Version output has no log
// records.
func (h *Handler) ErrorLog() []process.LogRecord {
	return nil
}

// Query runs "<binary> -version" on sup.
func Query(ctx context.Context, sup *supervisor.Supervisor, binaryPath string) (Info, error) {
	cmd, err := Command(binaryPath)
	if err != nil {
		return Info{}, err
	}
	return supervisor.Execute(ctx, sup, cmd, NewHandler()).Get(ctx)
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

var _ supervisor.Handler[Info] = (*Handler)(nil)
