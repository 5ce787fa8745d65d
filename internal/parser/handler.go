// Package parser turns the raw output of a child process into lines and
// structured log records.
//
// Two layers:
//
//	Demuxer:        raw byte chunks -> complete, non-empty lines
//	LogAccumulator: lines -> LogRecords, logged and routed by severity
//
// Tool-specific behavior lives in LineHandler implementations that sit
// between the two.
package parser

import "github.com/randomizedcoder/ffexec/internal/process"

// Channel identifies one output stream of a child process.
type Channel int

const (
	Stdout Channel = iota
	Stderr
)

// String returns "stdout" or "stderr".
func (c Channel) String() string {
	switch c {
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	default:
		return "unknown"
	}
}

// LineHandler consumes complete lines from both channels of one execution.
// Line callbacks run on the reader goroutine of their channel and must be
// fast. OnExit runs once, after both channels reached end of stream.
type LineHandler interface {
	OnStdoutLine(line string)
	OnStderrLine(line string)
	OnExit()
}

// LineHandlerFuncs adapts plain functions to LineHandler. Nil fields
// drop the corresponding events.
type LineHandlerFuncs struct {
	Stdout func(line string)
	Stderr func(line string)
	Exit   func()
}

// OnStdoutLine implements LineHandler.
func (f LineHandlerFuncs) OnStdoutLine(line string) {
	if f.Stdout != nil {
		f.Stdout(line)
	}
}

// OnStderrLine implements LineHandler.
func (f LineHandlerFuncs) OnStderrLine(line string) {
	if f.Stderr != nil {
		f.Stderr(line)
	}
}

// OnExit implements LineHandler.
func (f LineHandlerFuncs) OnExit() {
	if f.Exit != nil {
		f.Exit()
	}
}

// Dispatch routes a line to the callback of its channel.
func Dispatch(h LineHandler, ch Channel, line string) {
	switch ch {
	case Stdout:
		h.OnStdoutLine(line)
	case Stderr:
		h.OnStderrLine(line)
	}
}

// OutputListener receives every finalized record of severity info or
// higher, together with the controller of the emitting process.
type OutputListener interface {
	OnOutput(message string, h process.Controller)
}

// OutputListenerFunc adapts a function to OutputListener.
type OutputListenerFunc func(message string, h process.Controller)

// OnOutput implements OutputListener.
func (f OutputListenerFunc) OnOutput(message string, h process.Controller) {
	f(message, h)
}

// LineParser consumes lines of a single stream, e.g. -progress output.
type LineParser interface {
	ParseLine(line string)
}
