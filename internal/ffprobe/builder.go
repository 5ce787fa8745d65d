package ffprobe

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/randomizedcoder/ffexec/internal/process"
)

// ErrNoInput is returned when no input is configured.
var ErrNoInput = errors.New("ffprobe: no input configured")

// Builder assembles an ffprobe command line.
type Builder struct {
	BinaryPath string

	// LogLevel is passed as "-loglevel level+<LogLevel>".
	LogLevel string

	ShowFormat   bool
	ShowStreams  bool
	ShowPrograms bool

	// UserAgent is sent for network inputs.
	UserAgent string

	// Args are placed before the input.
	Args []string

	Input string
}

// NewBuilder returns a Builder that shows format and streams.
func NewBuilder(binaryPath, input string) *Builder {
	if binaryPath == "" {
		binaryPath = "ffprobe"
	}
	return &Builder{
		BinaryPath:  binaryPath,
		LogLevel:    "error",
		ShowFormat:  true,
		ShowStreams: true,
		Input:       input,
	}
}

// Name implements process.Builder.
func (b *Builder) Name() string {
	return "ffprobe"
}

// Command implements process.Builder.
func (b *Builder) Command(_ context.Context) (process.Command, error) {
	if b.Input == "" {
		return process.Command{}, ErrNoInput
	}
	return process.NewCommand(b.BinaryPath, b.buildArgs()...)
}

func (b *Builder) buildArgs() []string {
	logLevel := "level"
	if b.LogLevel != "" {
		logLevel += "+" + strings.ToLower(b.LogLevel)
	}
	args := []string{"-loglevel", logLevel, "-hide_banner", "-print_format", "json"}

	if b.ShowFormat {
		args = append(args, "-show_format")
	}
	if b.ShowStreams {
		args = append(args, "-show_streams")
	}
	if b.ShowPrograms {
		args = append(args, "-show_programs")
	}
	if b.UserAgent != "" {
		args = append(args, "-user_agent", b.UserAgent)
	}
	args = append(args, b.Args...)
	return append(args, b.Input)
}

// FindBinary returns the ffprobe next to ffmpegPath when there is one,
// e.g. /usr/local/bin/ffmpeg gives /usr/local/bin/ffprobe. Otherwise it
// returns "ffprobe" for a PATH lookup.
func FindBinary(ffmpegPath string) string {
	dir, base := filepath.Split(ffmpegPath)
	if dir != "" && base == "ffmpeg" {
		candidate := filepath.Join(dir, "ffprobe")
		if _, err := exec.LookPath(candidate); err == nil {
			return candidate
		}
	}
	return "ffprobe"
}

// Available reports whether path resolves to an executable.
func Available(path string) bool {
	if path == "" {
		path = "ffprobe"
	}
	_, err := exec.LookPath(path)
	return err == nil
}

var _ process.Builder = (*Builder)(nil)
