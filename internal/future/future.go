// Package future provides Future, the cancellable handle on the result of
// one process execution.
package future

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/randomizedcoder/ffexec/internal/process"
)

// ErrCancelled is the error of a future that was cancelled before the
// execution produced an outcome.
var ErrCancelled = errors.New("execution cancelled")

// WaitError means the caller stopped waiting. The process keeps running.
type WaitError struct {
	Cause error
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("interrupted while waiting for process result: %v", e.Cause)
}

func (e *WaitError) Unwrap() error {
	return e.Cause
}

// Future is the pending outcome of an execution together with the
// Controller of its process.
type Future[T any] struct {
	ctrl process.Controller
	done chan struct{}

	mu        sync.Mutex
	outcome   process.Outcome[T]
	settled   bool
	cancelled bool
}

// New creates a pending future. The returned function resolves it; only
// the first resolution or cancellation takes effect, later calls return
// false.
func New[T any](ctrl process.Controller) (*Future[T], func(process.Outcome[T]) bool) {
	f := &Future[T]{
		ctrl: ctrl,
		done: make(chan struct{}),
	}
	return f, f.resolve
}

// Completed returns a future already resolved with value.
func Completed[T any](value T) *Future[T] {
	f, resolve := New[T](nil)
	resolve(process.Success(value))
	return f
}

// Failed returns a future already resolved with an internal failure.
func Failed[T any](err error) *Future[T] {
	f, resolve := New[T](nil)
	resolve(process.InternalFailure[T](0, err))
	return f
}

func (f *Future[T]) resolve(o process.Outcome[T]) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settled {
		return false
	}
	f.outcome = o
	f.settled = true
	close(f.done)
	return true
}

// Handle returns the Controller of the underlying process. It is nil for
// futures not backed by a process.
func (f *Future[T]) Handle() process.Controller {
	return f.ctrl
}

// Cancel stops the process, forcefully or gracefully, and then settles
// the future with ErrCancelled. The stop request reaches the process even
// when the future is already settled, so Cancel(false) followed by
// Cancel(true) kills a process that ignores the graceful request. It
// returns true only when this call settled the future.
//
// The execution itself settles in the background; wait on
// Handle().Done() to observe the process exit.
func (f *Future[T]) Cancel(forceful bool) bool {
	if f.ctrl != nil {
		if forceful {
			f.ctrl.StopForcefully()
		} else {
			f.ctrl.StopGracefully()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settled {
		return false
	}
	f.outcome = process.InternalFailure[T](0, ErrCancelled)
	f.settled = true
	f.cancelled = true
	close(f.done)
	return true
}

// Done is closed once the future is settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// IsDone reports whether the future is settled.
func (f *Future[T]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// IsCancelled reports whether the future was settled by Cancel.
func (f *Future[T]) IsCancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

// Get waits for the outcome. If ctx ends first it returns *WaitError and
// leaves the process running. An abnormal exit anywhere in the error
// chain is returned as the *process.AbnormalExitError itself.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
	case <-ctx.Done():
		var zero T
		return zero, &WaitError{Cause: ctx.Err()}
	}

	value, err := f.snapshot().Unpack()
	var abnormal *process.AbnormalExitError
	if errors.As(err, &abnormal) {
		return value, abnormal
	}
	return value, err
}

// GetTimeout is Get with a deadline of d.
func (f *Future[T]) GetTimeout(d time.Duration) (T, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return f.Get(ctx)
}

// Wait blocks until the future is settled and returns its outcome.
func (f *Future[T]) Wait() process.Outcome[T] {
	<-f.done
	return f.snapshot()
}

// Outcome returns the outcome if the future is settled.
func (f *Future[T]) Outcome() (process.Outcome[T], bool) {
	if !f.IsDone() {
		return process.Outcome[T]{}, false
	}
	return f.snapshot(), true
}

func (f *Future[T]) snapshot() process.Outcome[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outcome
}
