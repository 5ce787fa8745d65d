package process

import (
	"log/slog"

	"github.com/randomizedcoder/ffexec/internal/logging"
)

// Severity is the log level a child process attached to a message.
// Values are ordered: Trace < Verbose < Debug < Info < Warning < Quiet <
// Panic < Fatal < Error.
type Severity int

const (
	SeverityTrace Severity = iota
	SeverityVerbose
	SeverityDebug
	SeverityInfo
	SeverityWarning
	SeverityQuiet
	SeverityPanic
	SeverityFatal
	SeverityError
)

var severityNames = map[Severity]string{
	SeverityTrace:   "trace",
	SeverityVerbose: "verbose",
	SeverityDebug:   "debug",
	SeverityInfo:    "info",
	SeverityWarning: "warning",
	SeverityQuiet:   "quiet",
	SeverityPanic:   "panic",
	SeverityFatal:   "fatal",
	SeverityError:   "error",
}

// severityTags maps the bracketed tag text to a severity. Matching is
// case-sensitive; an empty tag ("[]") means trace.
var severityTags = map[string]Severity{
	"info":    SeverityInfo,
	"verbose": SeverityVerbose,
	"debug":   SeverityDebug,
	"warning": SeverityWarning,
	"error":   SeverityError,
	"trace":   SeverityTrace,
	"":        SeverityTrace,
	"quiet":   SeverityQuiet,
	"panic":   SeverityPanic,
	"fatal":   SeverityFatal,
}

// SeverityFromTag returns the severity for the contents of a "[tag]".
func SeverityFromTag(tag string) (Severity, bool) {
	s, ok := severityTags[tag]
	return s, ok
}

// Severities returns all severities in ascending order.
func Severities() []Severity {
	return []Severity{
		SeverityTrace, SeverityVerbose, SeverityDebug, SeverityInfo, SeverityWarning,
		SeverityQuiet, SeverityPanic, SeverityFatal, SeverityError,
	}
}

// String returns the tag name of the severity.
func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return "unknown"
}

// AtLeastInfo reports whether s is info or more severe.
func (s Severity) AtLeastInfo() bool {
	return s >= SeverityInfo
}

// AtLeastError reports whether s belongs to the error class
// (quiet, panic, fatal, error).
func (s Severity) AtLeastError() bool {
	return s >= SeverityQuiet
}

// Level maps the severity onto a slog level.
func (s Severity) Level() slog.Level {
	switch {
	case s == SeverityTrace:
		return logging.LevelTrace
	case s == SeverityVerbose:
		return logging.LevelVerbose
	case s == SeverityDebug:
		return slog.LevelDebug
	case s == SeverityInfo:
		return slog.LevelInfo
	case s == SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// LogRecord is one possibly multi-line message reconstructed from child output.
type LogRecord struct {
	Severity Severity
	Message  string
}

// String formats the record as "[severity] message".
func (r LogRecord) String() string {
	return "[" + r.Severity.String() + "] " + r.Message
}
