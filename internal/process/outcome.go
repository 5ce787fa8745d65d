package process

import "fmt"

// OutcomeKind tells which terminal result an execution produced.
type OutcomeKind int

const (
	// OutcomeSuccess means exit status 0 and a computed value.
	OutcomeSuccess OutcomeKind = iota

	// OutcomeAbnormalExit means a non-zero exit status.
	OutcomeAbnormalExit

	// OutcomeInternalFailure means a failure not attributable to the child:
	// spawn failure, result computation failure, missing result.
	OutcomeInternalFailure
)

// String returns a label usable in logs and metrics.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeAbnormalExit:
		return "abnormal_exit"
	case OutcomeInternalFailure:
		return "internal_failure"
	default:
		return "unknown"
	}
}

// Outcome is the single terminal result of one execution.
type Outcome[T any] struct {
	Kind     OutcomeKind
	Value    T
	ExitCode int
	Err      error
}

// Success builds a successful outcome.
func Success[T any](value T) Outcome[T] {
	return Outcome[T]{Kind: OutcomeSuccess, Value: value}
}

// AbnormalExit builds an outcome for a non-zero exit status.
func AbnormalExit[T any](err *AbnormalExitError) Outcome[T] {
	return Outcome[T]{Kind: OutcomeAbnormalExit, ExitCode: err.ExitCode, Err: err}
}

// InternalFailure builds an outcome for a failure of the machinery around
// the child process.
func InternalFailure[T any](exitCode int, err error) Outcome[T] {
	if err == nil {
		err = fmt.Errorf("internal failure without cause")
	}
	return Outcome[T]{Kind: OutcomeInternalFailure, ExitCode: exitCode, Err: err}
}

// Unpack returns the value and the error of the outcome.
func (o Outcome[T]) Unpack() (T, error) {
	if o.Kind == OutcomeSuccess {
		return o.Value, nil
	}
	var zero T
	return zero, o.Err
}
