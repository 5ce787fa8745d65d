package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/randomizedcoder/ffexec/internal/logging"
	"github.com/randomizedcoder/ffexec/internal/process"
)

// RecordHook observes every finalized record, after it was logged and
// routed.
type RecordHook func(rec process.LogRecord)

// AccumulatorConfig configures a LogAccumulator.
type AccumulatorConfig struct {
	// Logger receives every record at its mapped level. Defaults to a
	// discarding logger.
	Logger *slog.Logger

	// Listener receives records of severity info or higher. Optional.
	Listener OutputListener

	// Hook observes all finalized records. Optional.
	Hook RecordHook
}

// LogAccumulator rebuilds multi-line log messages. A line with a level
// tag opens a record; untagged lines that follow are continuation lines
// of that record. The record is finalized when the next tagged line
// arrives or on Finish.
//
// Thread-safe: both reader goroutines may feed the same accumulator.
type LogAccumulator struct {
	logger   *slog.Logger
	listener OutputListener
	hook     RecordHook

	mu         sync.Mutex
	handle     process.Controller
	open       bool
	openSev    process.Severity
	openMsg    strings.Builder
	errorLog   []process.LogRecord
	finalError string
	hasFinal   bool
	counts     map[process.Severity]int64
}

// NewLogAccumulator creates an accumulator with no open record.
func NewLogAccumulator(cfg AccumulatorConfig) *LogAccumulator {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &LogAccumulator{
		logger:   logger,
		listener: cfg.Listener,
		hook:     cfg.Hook,
		counts:   make(map[process.Severity]int64),
	}
}

// SetHandle implements process.HandleAware. The handle is passed to the
// output listener.
func (a *LogAccumulator) SetHandle(h process.Controller) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handle = h
}

// Accept consumes one line.
func (a *LogAccumulator) Accept(line string) {
	if rec, ok := ParseLogMessage(line); ok {
		a.mu.Lock()
		prev, hadPrev := a.takeOpen()
		a.open = true
		a.openSev = rec.Severity
		a.openMsg.WriteString(strings.TrimSpace(rec.Message))
		a.mu.Unlock()

		if hadPrev {
			a.dispatch(prev)
		}
		return
	}

	a.mu.Lock()
	if a.open {
		a.openMsg.WriteByte('\n')
		a.openMsg.WriteString(strings.TrimSpace(line))
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	// Untagged output before any tagged line: not a record.
	a.logger.Info(strings.TrimSpace(line))
}

// Finish finalizes the open record, if any. Call once at end of stream.
func (a *LogAccumulator) Finish() {
	a.mu.Lock()
	rec, ok := a.takeOpen()
	a.mu.Unlock()
	if ok {
		a.dispatch(rec)
	}
}

// takeOpen closes the open record and applies its bookkeeping.
// Callers must hold a.mu.
func (a *LogAccumulator) takeOpen() (process.LogRecord, bool) {
	if !a.open {
		return process.LogRecord{}, false
	}
	rec := process.LogRecord{Severity: a.openSev, Message: a.openMsg.String()}
	a.open = false
	a.openMsg.Reset()

	a.counts[rec.Severity]++
	if rec.Severity.AtLeastError() {
		a.errorLog = append(a.errorLog, rec)
		a.finalError = rec.Message
		a.hasFinal = true
	}
	return rec, true
}

func (a *LogAccumulator) dispatch(rec process.LogRecord) {
	a.logger.Log(context.Background(), rec.Severity.Level(), rec.Message,
		"severity", rec.Severity.String(),
	)

	if rec.Severity.AtLeastInfo() && a.listener != nil {
		a.notifyListener(rec)
	}

	if a.hook != nil {
		a.hook(rec)
	}
}

func (a *LogAccumulator) notifyListener(rec process.LogRecord) {
	a.mu.Lock()
	h := a.handle
	a.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("output_listener_failed", "error", fmt.Sprint(r))
		}
	}()
	a.listener.OnOutput(rec.Message, h)
}

// ErrorLog returns the error-class records in emission order.
func (a *LogAccumulator) ErrorLog() []process.LogRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]process.LogRecord(nil), a.errorLog...)
}

// FinalErrorMessage returns the message of the latest error-class record
// unless it was cleared since.
func (a *LogAccumulator) FinalErrorMessage() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.finalError, a.hasFinal
}

// ClearFinalError forgets the final error message. Tool handlers call it
// when output proves the run succeeded after all.
func (a *LogAccumulator) ClearFinalError() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finalError = ""
	a.hasFinal = false
}

// Counts returns the number of finalized records per severity.
func (a *LogAccumulator) Counts() map[process.Severity]int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[process.Severity]int64, len(a.counts))
	for k, v := range a.counts {
		out[k] = v
	}
	return out
}

var _ process.HandleAware = (*LogAccumulator)(nil)
