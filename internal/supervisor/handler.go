package supervisor

import (
	"sync"

	"github.com/randomizedcoder/ffexec/internal/parser"
	"github.com/randomizedcoder/ffexec/internal/process"
)

// Output is the result of an OutputHandler.
type Output struct {
	// Stdout holds the stdout lines in order.
	Stdout []string

	// Records counts the finalized stderr records per severity.
	Records map[process.Severity]int64
}

// OutputHandler is a Handler for tools without a dedicated one: stdout
// lines are collected, stderr goes through a LogAccumulator.
type OutputHandler struct {
	acc *parser.LogAccumulator

	mu     sync.Mutex
	stdout []string
}

// NewOutputHandler creates a handler. A nil accumulator gets a default
// one that discards its log output.
func NewOutputHandler(acc *parser.LogAccumulator) *OutputHandler {
	if acc == nil {
		acc = parser.NewLogAccumulator(parser.AccumulatorConfig{})
	}
	return &OutputHandler{acc: acc}
}

// SetHandle implements process.HandleAware.
func (o *OutputHandler) SetHandle(h process.Controller) {
	o.acc.SetHandle(h)
}

// OnStdoutLine implements parser.LineHandler.
func (o *OutputHandler) OnStdoutLine(line string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stdout = append(o.stdout, line)
}

// OnStderrLine implements parser.LineHandler.
func (o *OutputHandler) OnStderrLine(line string) {
	o.acc.Accept(line)
}

// OnExit implements parser.LineHandler.
func (o *OutputHandler) OnExit() {
	o.acc.Finish()
}

// Result implements Handler. The output is returned whatever the exit
// code; the supervisor decides what a non-zero code means.
func (o *OutputHandler) Result(int) (Output, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Output{
		Stdout:  append([]string(nil), o.stdout...),
		Records: o.acc.Counts(),
	}, nil
}

// ErrorLog implements Handler.
func (o *OutputHandler) ErrorLog() []process.LogRecord {
	return o.acc.ErrorLog()
}

var (
	_ Handler[Output]     = (*OutputHandler)(nil)
	_ process.HandleAware = (*OutputHandler)(nil)
)
