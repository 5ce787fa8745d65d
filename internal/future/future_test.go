package future

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/randomizedcoder/ffexec/internal/process"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeController records stop requests.
type fakeController struct {
	mu       sync.Mutex
	graceful int
	forceful int
	done     chan struct{}
}

func newFakeController() *fakeController {
	return &fakeController{done: make(chan struct{})}
}

func (c *fakeController) ExecTag() string       { return "fake" }
func (c *fakeController) CommandLine() string   { return "fake" }
func (c *fakeController) PID() (int, error)     { return 42, nil }
func (c *fakeController) State() process.State  { return process.StateRunning }
func (c *fakeController) Done() <-chan struct{} { return c.done }

func (c *fakeController) StopGracefully() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.graceful++
}

func (c *fakeController) StopForcefully() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forceful++
}

func (c *fakeController) stops() (graceful, forceful int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graceful, c.forceful
}

func TestFuture_Resolve(t *testing.T) {
	f, resolve := New[string](nil)
	assert.False(t, f.IsDone())

	_, ok := f.Outcome()
	assert.False(t, ok)

	require.True(t, resolve(process.Success("ok")))
	assert.False(t, resolve(process.Success("again")), "second resolution must be ignored")

	v, err := f.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.True(t, f.IsDone())
	assert.False(t, f.IsCancelled())

	o, ok := f.Outcome()
	require.True(t, ok)
	assert.Equal(t, process.OutcomeSuccess, o.Kind)
}

func TestFuture_GetTimeoutDoesNotStopProcess(t *testing.T) {
	ctrl := newFakeController()
	f, resolve := New[int](ctrl)
	defer resolve(process.Success(0))

	_, err := f.GetTimeout(10 * time.Millisecond)

	var waitErr *WaitError
	require.ErrorAs(t, err, &waitErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	g, fc := ctrl.stops()
	assert.Zero(t, g)
	assert.Zero(t, fc)
	assert.False(t, f.IsDone())
}

func TestFuture_GetContextCancelled(t *testing.T) {
	f, resolve := New[int](nil)
	defer resolve(process.Success(0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Get(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFuture_GetAbnormalExit(t *testing.T) {
	abnormal := &process.AbnormalExitError{ExecTag: "t", ExitCode: 1}
	f, resolve := New[int](nil)
	resolve(process.Outcome[int]{
		Kind: process.OutcomeAbnormalExit,
		Err:  &process.ChainedError{Primary: abnormal, Secondary: []error{errors.New("x")}},
	})

	_, err := f.Get(context.Background())
	assert.Same(t, abnormal, err)
}

func TestFuture_Cancel(t *testing.T) {
	tests := []struct {
		name         string
		forceful     bool
		wantGraceful int
		wantForceful int
	}{
		{"graceful", false, 1, 0},
		{"forceful", true, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := newFakeController()
			f, resolve := New[string](ctrl)

			assert.True(t, f.Cancel(tt.forceful))
			assert.False(t, resolve(process.Success("late")), "late resolution must not override cancel")

			g, fc := ctrl.stops()
			assert.Equal(t, tt.wantGraceful, g)
			assert.Equal(t, tt.wantForceful, fc)

			assert.True(t, f.IsCancelled())
			_, err := f.Get(context.Background())
			assert.ErrorIs(t, err, ErrCancelled)
		})
	}
}

func TestFuture_CancelEscalates(t *testing.T) {
	ctrl := newFakeController()
	f, _ := New[string](ctrl)

	assert.True(t, f.Cancel(false))
	assert.False(t, f.Cancel(true), "second cancel must not settle again")

	g, fc := ctrl.stops()
	assert.Equal(t, 1, g)
	assert.Equal(t, 1, fc, "forceful cancel must reach the process after a graceful one")

	_, err := f.Get(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestFuture_CancelDerivedEscalates(t *testing.T) {
	ctrl := newFakeController()
	src, _ := New[int](ctrl)
	derived := Map(src, func(v int) (string, error) { return "x", nil })

	assert.True(t, src.Cancel(false))
	<-derived.Done()

	derived.Cancel(true)
	_, fc := ctrl.stops()
	assert.Equal(t, 1, fc, "cancel of a settled derived future must still kill")
}

func TestFuture_CancelAfterResolve(t *testing.T) {
	ctrl := newFakeController()
	f, resolve := New[int](ctrl)
	resolve(process.Success(5))

	assert.False(t, f.Cancel(true), "settled future keeps its outcome")
	_, fc := ctrl.stops()
	assert.Equal(t, 1, fc, "the stop request is forwarded regardless")

	v, err := f.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, v)
}

func TestMap(t *testing.T) {
	ctrl := newFakeController()
	src, resolve := New[int](ctrl)
	mapped := Map(src, func(v int) (string, error) { return strconv.Itoa(v * 2), nil })
	assert.Equal(t, process.Controller(ctrl), mapped.Handle())

	resolve(process.Success(21))
	v, err := mapped.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "42", v)
}

func TestMap_Failures(t *testing.T) {
	abnormal := &process.AbnormalExitError{ExecTag: "t", ExitCode: 3}
	src, resolve := New[int](nil)
	mapped := Map(src, func(v int) (int, error) { return v, nil })
	resolve(process.AbnormalExit[int](abnormal))

	o := mapped.Wait()
	assert.Equal(t, process.OutcomeAbnormalExit, o.Kind)
	assert.Equal(t, 3, o.ExitCode)

	boom := errors.New("boom")
	failing := Map(Completed(1), func(int) (int, error) { return 0, boom })
	o = failing.Wait()
	assert.Equal(t, process.OutcomeInternalFailure, o.Kind)
	assert.ErrorIs(t, o.Err, boom)
}

func TestMap_CancelDerived(t *testing.T) {
	ctrl := newFakeController()
	src, resolve := New[int](ctrl)
	mapped := Map(src, func(v int) (int, error) { return v, nil })

	assert.True(t, mapped.Cancel(true))
	_, fc := ctrl.stops()
	assert.Equal(t, 1, fc, "derived cancel stops the shared process")
	assert.False(t, src.IsDone(), "source settles on its own")

	resolve(process.Success(1))
	_, err := mapped.Get(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestThen(t *testing.T) {
	ctrl := newFakeController()
	src, resolve := New[int](ctrl)
	chained := Then(src, func(v int) *Future[string] {
		return Completed("value " + strconv.Itoa(v))
	})
	assert.Equal(t, process.Controller(ctrl), chained.Handle())

	resolve(process.Success(7))
	v, err := chained.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "value 7", v)

	failed := Then(Failed[int](errors.New("first step")), func(int) *Future[string] {
		t.Error("next step must not run after a failure")
		return nil
	})
	_, err = failed.Get(context.Background())
	assert.EqualError(t, err, "first step")

	empty := Then(Completed(1), func(int) *Future[int] { return nil })
	v2, err := empty.Get(context.Background())
	require.NoError(t, err)
	assert.Zero(t, v2)
}

func TestCombine(t *testing.T) {
	a, resolveA := New[int](newFakeController())
	b, resolveB := New[string](nil)
	combined := Combine(a, b, func(n int, s string) (string, error) {
		return s + strconv.Itoa(n), nil
	})
	assert.Equal(t, a.Handle(), combined.Handle())

	resolveB(process.Success("n="))
	resolveA(process.Success(3))

	v, err := combined.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "n=3", v)

	errA := errors.New("a failed")
	errB := errors.New("b failed")
	first := Combine(Failed[int](errA), Failed[int](errB), func(int, int) (int, error) { return 0, nil })
	_, err = first.Get(context.Background())
	assert.ErrorIs(t, err, errA)
}

func TestHandleAndRecover(t *testing.T) {
	boom := errors.New("boom")

	handled := Handle(Failed[int](boom), func(v int, err error) (string, error) {
		if err != nil {
			return "fallback", nil
		}
		return strconv.Itoa(v), nil
	})
	v, err := handled.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)

	rethrown := Handle(Completed(1), func(int, error) (int, error) { return 0, boom })
	o := rethrown.Wait()
	assert.Equal(t, process.OutcomeInternalFailure, o.Kind)

	recovered := Recover(Failed[int](boom), func(err error) (int, error) {
		assert.ErrorIs(t, err, boom)
		return -1, nil
	})
	n, err := recovered.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -1, n)

	passthrough := Recover(Completed(9), func(error) (int, error) { return 0, nil })
	n, err = passthrough.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, n)

	stillFailing := Recover(Failed[int](boom), func(err error) (int, error) { return 0, err })
	_, err = stillFailing.Get(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestWhenComplete(t *testing.T) {
	var seen string
	f := WhenComplete(Completed("x"), func(v string, err error) {
		seen = v
	})
	v, err := f.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "x", v)
	assert.Equal(t, "x", seen)
}

func TestWaitError(t *testing.T) {
	err := &WaitError{Cause: context.DeadlineExceeded}
	assert.Contains(t, err.Error(), "interrupted while waiting")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
