package process

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrMissingResult is reported when a process exited with status 0 but its
// handler produced neither a value nor an error.
var ErrMissingResult = errors.New("process exited successfully but produced no result")

// SpawnError means the OS could not start the process. It is never retried.
type SpawnError struct {
	ExecTag    string
	Executable string
	Err        error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("[%s] failed to start %s: %v", e.ExecTag, e.Executable, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// NotRunningError is returned when a process property is read while no
// process is running.
type NotRunningError struct {
	ExecTag string
}

func (e *NotRunningError) Error() string {
	return fmt.Sprintf("[%s] process not running, can't retrieve PID", e.ExecTag)
}

// AbnormalExitError reports a non-zero exit status. ErrorLog holds the
// error-class records the process emitted, in emission order. Secondary holds
// failures that happened alongside, e.g. the handler failing to compute a
// result.
type AbnormalExitError struct {
	ExecTag   string
	ExitCode  int
	ErrorLog  []LogRecord
	Secondary []error
}

func (e *AbnormalExitError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] process execution has ended with non-zero status: %d. Check logs for detailed error message.",
		e.ExecTag, e.ExitCode)
	if n := len(e.ErrorLog); n > 0 {
		fmt.Fprintf(&b, " Last error: %s", e.ErrorLog[n-1].Message)
	}
	return b.String()
}

// Unwrap exposes the secondary causes to errors.Is and errors.As.
func (e *AbnormalExitError) Unwrap() []error {
	return e.Secondary
}

// Failure accumulates the errors of one execution. The first error added
// is the primary cause; later errors are kept as secondary causes and
// never replace it. Safe for concurrent use.
type Failure struct {
	mu        sync.Mutex
	primary   error
	secondary []error
}

// Add records err. Nil errors are ignored.
func (f *Failure) Add(err error) {
	if err == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.primary == nil {
		f.primary = err
		return
	}
	f.secondary = append(f.secondary, err)
}

// Primary returns the first recorded error.
func (f *Failure) Primary() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.primary
}

// Secondary returns the errors recorded after the primary one.
func (f *Failure) Secondary() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error(nil), f.secondary...)
}

// All returns the primary error followed by the secondary ones.
func (f *Failure) All() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.primary == nil {
		return nil
	}
	return append([]error{f.primary}, f.secondary...)
}

// Err returns nil when nothing was recorded, the primary error when it is
// alone, and a *ChainedError otherwise.
func (f *Failure) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case f.primary == nil:
		return nil
	case len(f.secondary) == 0:
		return f.primary
	default:
		return &ChainedError{
			Primary:   f.primary,
			Secondary: append([]error(nil), f.secondary...),
		}
	}
}

// ChainedError is a primary error with secondary causes attached.
type ChainedError struct {
	Primary   error
	Secondary []error
}

func (e *ChainedError) Error() string {
	return fmt.Sprintf("%v (and %d more)", e.Primary, len(e.Secondary))
}

func (e *ChainedError) Unwrap() []error {
	return append([]error{e.Primary}, e.Secondary...)
}
