// Package process provides the identity and control of one external process
// execution: the command line, the live handle, lifecycle listeners, and the
// terminal outcome with its error taxonomy.
package process

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyCommand is returned when a command has no executable.
var ErrEmptyCommand = errors.New("command must name an executable")

// Command is an executable path followed by its arguments.
// It is immutable once created.
type Command struct {
	argv []string
}

// NewCommand creates a command from an executable path and its arguments.
func NewCommand(executable string, args ...string) (Command, error) {
	if strings.TrimSpace(executable) == "" {
		return Command{}, ErrEmptyCommand
	}
	argv := make([]string, 0, len(args)+1)
	argv = append(argv, executable)
	argv = append(argv, args...)
	return Command{argv: argv}, nil
}

// Executable returns the path of the program to run.
func (c Command) Executable() string {
	if len(c.argv) == 0 {
		return ""
	}
	return c.argv[0]
}

// Args returns a copy of the arguments, without the executable.
func (c Command) Args() []string {
	if len(c.argv) < 2 {
		return nil
	}
	return append([]string(nil), c.argv[1:]...)
}

// Argv returns a copy of the full command line.
func (c Command) Argv() []string {
	return append([]string(nil), c.argv...)
}

// IsZero reports whether the command was never initialized.
func (c Command) IsZero() bool {
	return len(c.argv) == 0
}

// String returns the command line for diagnostics, quoting arguments
// that contain whitespace.
func (c Command) String() string {
	parts := make([]string, len(c.argv))
	for i, arg := range c.argv {
		if arg == "" || strings.ContainsAny(arg, " \t\r\n") {
			parts[i] = `"` + arg + `"`
		} else {
			parts[i] = arg
		}
	}
	return strings.Join(parts, " ")
}

// Builder produces the command for one tool invocation.
// This interface allows the supervisor to stay tool-agnostic.
type Builder interface {
	// Command returns the command to run. It must not start anything.
	Command(ctx context.Context) (Command, error)

	// Name returns a human-readable name for the tool, e.g. "ffmpeg".
	Name() string
}
