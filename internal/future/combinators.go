package future

import (
	"github.com/randomizedcoder/ffexec/internal/process"
)

// The combinators below build derived futures. A derived future shares
// the Controller of its source, so cancelling it stops the same process.
// Cancelling a derived future does not settle the source.

// derive resolves a new future from the outcome of src.
func derive[T, U any](src *Future[T], fn func(process.Outcome[T]) process.Outcome[U]) *Future[U] {
	dst, resolve := New[U](src.ctrl)
	go func() {
		select {
		case <-src.done:
			resolve(fn(src.snapshot()))
		case <-dst.done:
		}
	}()
	return dst
}

// propagate carries a failed outcome over to another value type.
func propagate[T, U any](o process.Outcome[T]) process.Outcome[U] {
	return process.Outcome[U]{Kind: o.Kind, ExitCode: o.ExitCode, Err: o.Err}
}

// Map applies fn to a successful value. Failures pass through unchanged;
// an error from fn becomes an internal failure.
func Map[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	return derive(f, func(o process.Outcome[T]) process.Outcome[U] {
		if o.Kind != process.OutcomeSuccess {
			return propagate[T, U](o)
		}
		v, err := fn(o.Value)
		if err != nil {
			return process.InternalFailure[U](o.ExitCode, err)
		}
		return process.Success(v)
	})
}

// Then chains a second asynchronous step after a successful value.
func Then[T, U any](f *Future[T], fn func(T) *Future[U]) *Future[U] {
	dst, resolve := New[U](f.ctrl)
	go func() {
		select {
		case <-f.done:
		case <-dst.done:
			return
		}

		o := f.snapshot()
		if o.Kind != process.OutcomeSuccess {
			resolve(propagate[T, U](o))
			return
		}

		next := fn(o.Value)
		if next == nil {
			resolve(process.Success(*new(U)))
			return
		}
		select {
		case <-next.done:
			resolve(next.snapshot())
		case <-dst.done:
		}
	}()
	return dst
}

// Combine waits for both futures and merges their values. The first
// failure, in argument order, wins.
func Combine[T, U, V any](a *Future[T], b *Future[U], fn func(T, U) (V, error)) *Future[V] {
	dst, resolve := New[V](a.ctrl)
	go func() {
		for _, done := range []<-chan struct{}{a.done, b.done} {
			select {
			case <-done:
			case <-dst.done:
				return
			}
		}

		oa, ob := a.snapshot(), b.snapshot()
		switch {
		case oa.Kind != process.OutcomeSuccess:
			resolve(propagate[T, V](oa))
		case ob.Kind != process.OutcomeSuccess:
			resolve(propagate[U, V](ob))
		default:
			v, err := fn(oa.Value, ob.Value)
			if err != nil {
				resolve(process.InternalFailure[V](0, err))
				return
			}
			resolve(process.Success(v))
		}
	}()
	return dst
}

// Handle sees every outcome, success or failure, and produces a new one.
func Handle[T, U any](f *Future[T], fn func(T, error) (U, error)) *Future[U] {
	return derive(f, func(o process.Outcome[T]) process.Outcome[U] {
		v, err := fn(o.Unpack())
		if err != nil {
			return process.Outcome[U]{Kind: kindOnError(o), ExitCode: o.ExitCode, Err: err}
		}
		return process.Success(v)
	})
}

// Recover turns a failure into a value. Successful outcomes pass through.
func Recover[T any](f *Future[T], fn func(error) (T, error)) *Future[T] {
	return derive(f, func(o process.Outcome[T]) process.Outcome[T] {
		if o.Kind == process.OutcomeSuccess {
			return o
		}
		v, err := fn(o.Err)
		if err != nil {
			return process.Outcome[T]{Kind: o.Kind, ExitCode: o.ExitCode, Err: err}
		}
		return process.Success(v)
	})
}

// WhenComplete runs fn with the outcome and passes the outcome on.
func WhenComplete[T any](f *Future[T], fn func(T, error)) *Future[T] {
	return derive(f, func(o process.Outcome[T]) process.Outcome[T] {
		fn(o.Unpack())
		return o
	})
}

func kindOnError[T any](o process.Outcome[T]) process.OutcomeKind {
	if o.Kind == process.OutcomeSuccess {
		return process.OutcomeInternalFailure
	}
	return o.Kind
}
