// Package logging provides structured logging for ffexec.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Levels below slog.LevelDebug used for the chattiest child-process output.
const (
	LevelTrace   slog.Level = -8
	LevelVerbose slog.Level = -6
)

// NewLogger creates a new structured logger with the specified format and level.
// Format should be "json" or "text".
// Level should be "trace", "verbose", "debug", "info", "warn", or "error".
func NewLogger(format, level string, verbose bool) *slog.Logger {
	return newLogger(os.Stderr, format, level, verbose)
}

// NewLoggerWithWriter creates a logger that writes to a custom writer.
// Useful for testing.
func NewLoggerWithWriter(w io.Writer, format, level string) *slog.Logger {
	if !strings.EqualFold(format, "json") {
		format = "text"
	}
	return newLogger(w, format, level, false)
}

func newLogger(w io.Writer, format, level string, verbose bool) *slog.Logger {
	logLevel := parseLevel(level)
	if verbose && logLevel > slog.LevelDebug {
		logLevel = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
		// Add source location for debug level and below
		AddSource:   logLevel <= slog.LevelDebug,
		ReplaceAttr: replaceLevelNames,
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		// Default to JSON for structured logging
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}

// parseLevel converts a string level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return LevelTrace
	case "verbose":
		return LevelVerbose
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// replaceLevelNames prints the custom levels by name instead of "DEBUG-4".
func replaceLevelNames(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	level, ok := a.Value.Any().(slog.Level)
	if !ok {
		return a
	}
	switch level {
	case LevelTrace:
		a.Value = slog.StringValue("TRACE")
	case LevelVerbose:
		a.Value = slog.StringValue("VERBOSE")
	}
	return a
}

// ToolLogger derives a logger for the records of a child tool whose
// channels share one accumulator.
func ToolLogger(base *slog.Logger, tool string) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.With("tool", tool)
}

// ChannelLogger derives a logger for one output channel of a child tool,
// e.g. ChannelLogger(base, "ffprobe", "stderr").
func ChannelLogger(base *slog.Logger, tool, channel string) *slog.Logger {
	return ToolLogger(base, tool).With("channel", channel)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Enabled reports whether logger would emit a record at level.
func Enabled(logger *slog.Logger, level slog.Level) bool {
	return logger != nil && logger.Enabled(context.Background(), level)
}

// SetDefault sets the default logger for the slog package.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}
