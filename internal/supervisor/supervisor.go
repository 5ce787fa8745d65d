// Package supervisor runs one external process at a time and turns its
// output and exit status into a single outcome.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/randomizedcoder/ffexec/internal/future"
	"github.com/randomizedcoder/ffexec/internal/logging"
	"github.com/randomizedcoder/ffexec/internal/parser"
	"github.com/randomizedcoder/ffexec/internal/process"
)

// noColorEnv keeps FFmpeg from wrapping log lines in ANSI escapes.
const noColorEnv = "AV_LOG_FORCE_NOCOLOR=1"

// DefaultWaitDelay bounds how long output is still read after the process
// exited while something else, such as a grandchild, holds its pipes open.
const DefaultWaitDelay = 2 * time.Second

// Handler is the tool-specific strategy for one execution: it consumes
// lines and computes the result once the process has exited.
type Handler[T any] interface {
	parser.LineHandler

	// Result is called once, after OnExit, with the exit code.
	// Return process.ErrMissingResult when no result was produced.
	Result(exitCode int) (T, error)

	// ErrorLog returns the error-class records seen so far.
	ErrorLog() []process.LogRecord
}

// Helper runs next to the process for the length of one execution, e.g.
// a progress socket reader. Helpers that also implement io.Closer are
// closed after the process exits; process.HandleAware helpers receive the
// handle before they start.
type Helper interface {
	Run(ctx context.Context) error
}

// ReadyHelper is a Helper that must be ready before the process spawns.
type ReadyHelper interface {
	Helper
	Ready() <-chan struct{}
}

// PoolFactory creates the worker pool for the helpers of one execution.
type PoolFactory func(ctx context.Context, size int) (*errgroup.Group, context.Context)

// DefaultPoolFactory returns an errgroup limited to size goroutines.
func DefaultPoolFactory(ctx context.Context, size int) (*errgroup.Group, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	if size > 0 {
		g.SetLimit(size)
	}
	return g, gctx
}

// Callbacks contains optional callback functions for supervisor events.
type Callbacks struct {
	// OnStart is called when a process starts.
	OnStart func(execTag string, pid int)

	// OnLine is called for every line, on the reader goroutine.
	OnLine func(execTag string, ch parser.Channel, line string)

	// OnOutput is called once per channel when it has been drained.
	OnOutput func(execTag string, ch parser.Channel, bytesRead, linesRead int64)

	// OnExit is called when a process exits.
	OnExit func(execTag string, exitCode int, uptime time.Duration)

	// OnOutcome is called once per execution with its terminal kind.
	OnOutcome func(execTag string, kind process.OutcomeKind, exitCode int, wall time.Duration)
}

// Config holds configuration for creating a new Supervisor.
type Config struct {
	Logger *slog.Logger

	// Env holds KEY=VALUE pairs added to the parent environment.
	Env []string

	// Dir is the working directory of the process. Empty means the
	// current directory.
	Dir string

	// Shutdown is used by StopGracefully. Defaults to SIGTERM.
	Shutdown process.ShutdownStrategy

	// Listener observes process start and stop. Optional.
	Listener process.Listener

	// PoolFactory defaults to DefaultPoolFactory.
	PoolFactory PoolFactory

	// WaitDelay defaults to DefaultWaitDelay.
	WaitDelay time.Duration

	Callbacks Callbacks
}

// Supervisor runs executions one at a time. Overlapping Execute calls
// queue behind the one in flight.
type Supervisor struct {
	cfg    Config
	logger *slog.Logger

	// held for the whole of an execution
	mu sync.Mutex

	currentMu sync.Mutex
	current   *process.Handle
	startTime time.Time
}

// New creates a new Supervisor with the given configuration.
func New(cfg Config) *Supervisor {
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.Shutdown == nil {
		cfg.Shutdown = process.DefaultShutdown()
	}
	if cfg.PoolFactory == nil {
		cfg.PoolFactory = DefaultPoolFactory
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = DefaultWaitDelay
	}
	return &Supervisor{
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

// Execute starts cmd in the background and returns the future of its
// outcome. The returned future's Handle can stop the process.
//
// Execute is a function rather than a method because methods cannot
// declare type parameters.
func Execute[T any](ctx context.Context, s *Supervisor, cmd process.Command, h Handler[T], helpers ...Helper) *future.Future[T] {
	execTag := uuid.NewString()
	handle := process.NewHandle(execTag, cmd, s.cfg.Shutdown, s.logger)
	f, resolve := future.New[T](handle)

	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		start := time.Now()
		o := run(ctx, s, f, handle, cmd, h, helpers)
		resolve(o)

		s.logger.Debug("execution_settled",
			"exec_tag", execTag,
			"outcome", o.Kind.String(),
			"exit_code", o.ExitCode,
		)
		if s.cfg.Callbacks.OnOutcome != nil {
			s.cfg.Callbacks.OnOutcome(execTag, o.Kind, o.ExitCode, time.Since(start))
		}
	}()

	return f
}

// run performs one execution. It returns only after the process exited,
// both channels were drained and all helpers finished.
func run[T any](ctx context.Context, s *Supervisor, f *future.Future[T], handle *process.Handle,
	command process.Command, h Handler[T], helpers []Helper) process.Outcome[T] {

	execTag := handle.ExecTag()
	if f.IsCancelled() {
		handle.Release()
		return process.InternalFailure[T](0, future.ErrCancelled)
	}
	if err := ctx.Err(); err != nil {
		handle.Release()
		return process.InternalFailure[T](0, err)
	}

	setHandle(h, handle)
	for _, helper := range helpers {
		setHandle(helper, handle)
	}

	cmd := exec.Command(command.Executable(), command.Args()...)
	cmd.Env = append(append(os.Environ(), noColorEnv), s.cfg.Env...)
	cmd.Dir = s.cfg.Dir
	cmd.SysProcAttr = process.SysProcAttr()
	cmd.WaitDelay = s.cfg.WaitDelay

	stdin, stdout, stderr, err := pipes(cmd)
	if err != nil {
		handle.Release()
		return process.InternalFailure[T](0, fmt.Errorf("[%s] %w", execTag, err))
	}

	// Helpers run on their own pool so that a slow helper never holds
	// up the readers.
	helperCtx, cancelHelpers := context.WithCancel(ctx)
	defer cancelHelpers()
	pool := startHelpers(helperCtx, s.cfg.PoolFactory, helpers)

	if err := waitReady(ctx, helpers); err != nil {
		closePipes(stdin, stdout.r, stderr.r)
		handle.Release()
		helperErr := stopHelpers(helpers, cancelHelpers, pool)
		return process.InternalFailure[T](0, joinFailure(err, helperErr))
	}

	if err := cmd.Start(); err != nil {
		s.logger.Error("failed_to_start_process",
			"exec_tag", execTag,
			"executable", command.Executable(),
			"error", err,
		)
		handle.Release()
		spawnErr := &process.SpawnError{ExecTag: execTag, Executable: command.Executable(), Err: err}
		helperErr := stopHelpers(helpers, cancelHelpers, pool)
		return process.InternalFailure[T](0, joinFailure(spawnErr, helperErr))
	}

	startTime := time.Now()
	handle.Attach(cmd.Process, stdin)
	s.setCurrent(handle, startTime)
	defer s.setCurrent(nil, time.Time{})

	pid := cmd.Process.Pid
	s.logger.Info("process_started",
		"exec_tag", execTag,
		"pid", pid,
		"command", command.String(),
	)
	process.NotifyStart(s.cfg.Listener, handle, s.logger)
	if s.cfg.Callbacks.OnStart != nil {
		s.cfg.Callbacks.OnStart(execTag, pid)
	}

	// Cancelled while waiting for the spawn: Cancel found nothing to stop.
	if f.IsCancelled() {
		handle.StopForcefully()
	}

	// A cancelled context kills the process.
	exited := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			handle.StopForcefully()
		case <-exited:
		}
	}()

	var failure process.Failure
	var readers sync.WaitGroup
	for _, r := range []struct {
		ch  parser.Channel
		src io.Reader
	}{{parser.Stdout, stdout.r}, {parser.Stderr, stderr.r}} {
		readers.Add(1)
		go func(ch parser.Channel, src io.Reader) {
			defer readers.Done()
			reader := parser.NewPipeReader(src, ch, func(line string) {
				parser.Dispatch(h, ch, line)
				if s.cfg.Callbacks.OnLine != nil {
					s.cfg.Callbacks.OnLine(execTag, ch, line)
				}
			})
			if err := reader.Run(); err != nil {
				failure.Add(fmt.Errorf("[%s] reading %s: %w", execTag, ch, err))
			}
			if s.cfg.Callbacks.OnOutput != nil {
				bytesRead, linesRead := reader.Stats()
				s.cfg.Callbacks.OnOutput(execTag, ch, bytesRead, linesRead)
			}
		}(r.ch, r.src)
	}

	// Wait returns once the output was copied, or WaitDelay after the
	// exit when the pipes are held open by another process.
	waitErr := cmd.Wait()
	if errors.Is(waitErr, exec.ErrWaitDelay) {
		s.logger.Warn("output_pipes_held_open",
			"exec_tag", execTag,
			"wait_delay", s.cfg.WaitDelay.String(),
		)
		waitErr = nil
	}
	close(exited)
	stdout.w.Close()
	stderr.w.Close()
	readers.Wait()
	uptime := time.Since(startTime)
	exitCode := extractExitCode(waitErr)

	h.OnExit()
	value, resultErr := computeResult(h, exitCode)

	handle.Release()
	s.logger.Info("process_exited",
		"exec_tag", execTag,
		"pid", pid,
		"exit_code", exitCode,
		"uptime", uptime.String(),
	)
	process.NotifyStop(s.cfg.Listener, handle, exitCode, s.logger)
	if s.cfg.Callbacks.OnExit != nil {
		s.cfg.Callbacks.OnExit(execTag, exitCode, uptime)
	}

	helperErr := stopHelpers(helpers, cancelHelpers, pool)

	if exitCode != 0 {
		var secondary []error
		for _, err := range []error{resultErr, failure.Err(), helperErr} {
			if err != nil {
				secondary = append(secondary, err)
			}
		}
		return process.AbnormalExit[T](&process.AbnormalExitError{
			ExecTag:   execTag,
			ExitCode:  exitCode,
			ErrorLog:  h.ErrorLog(),
			Secondary: secondary,
		})
	}

	failure.Add(helperErr)
	if resultErr != nil {
		return process.InternalFailure[T](0, joinFailure(resultErr, failure.Err()))
	}
	if err := failure.Err(); err != nil {
		return process.InternalFailure[T](0, err)
	}
	return process.Success(value)
}

// computeResult calls h.Result, turning a panic into an error.
func computeResult[T any](h Handler[T], exitCode int) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("result computation panicked: %v", r)
		}
	}()
	return h.Result(exitCode)
}

// outputPipe carries one output channel of the child. exec.Cmd copies
// into w, so WaitDelay applies to it; w is closed once Wait returned.
type outputPipe struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func newOutputPipe() outputPipe {
	r, w := io.Pipe()
	return outputPipe{r: r, w: w}
}

func pipes(cmd *exec.Cmd) (io.WriteCloser, outputPipe, outputPipe, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, outputPipe{}, outputPipe{}, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, stderr := newOutputPipe(), newOutputPipe()
	cmd.Stdout = stdout.w
	cmd.Stderr = stderr.w
	return stdin, stdout, stderr, nil
}

func closePipes(closers ...io.Closer) {
	for _, c := range closers {
		c.Close()
	}
}

func setHandle(v any, h process.Controller) {
	if aware, ok := v.(process.HandleAware); ok {
		aware.SetHandle(h)
	}
}

func startHelpers(ctx context.Context, factory PoolFactory, helpers []Helper) *errgroup.Group {
	if len(helpers) == 0 {
		return nil
	}
	g, gctx := factory(ctx, len(helpers))
	for _, helper := range helpers {
		g.Go(func() error {
			return helper.Run(gctx)
		})
	}
	return g
}

func waitReady(ctx context.Context, helpers []Helper) error {
	for _, helper := range helpers {
		rh, ok := helper.(ReadyHelper)
		if !ok {
			continue
		}
		select {
		case <-rh.Ready():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// stopHelpers closes the helpers, cancels their context and joins them.
// Cancellation errors caused by the shutdown itself are dropped.
func stopHelpers(helpers []Helper, cancel context.CancelFunc, pool *errgroup.Group) error {
	var failure process.Failure
	for _, helper := range helpers {
		if c, ok := helper.(io.Closer); ok {
			failure.Add(c.Close())
		}
	}
	cancel()
	if pool != nil {
		if err := pool.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			failure.Add(err)
		}
	}
	return failure.Err()
}

func joinFailure(primary error, rest ...error) error {
	var failure process.Failure
	failure.Add(primary)
	for _, err := range rest {
		failure.Add(err)
	}
	return failure.Err()
}

func (s *Supervisor) setCurrent(h *process.Handle, start time.Time) {
	s.currentMu.Lock()
	defer s.currentMu.Unlock()
	s.current = h
	s.startTime = start
}

// Current returns the handle of the running process, or nil.
func (s *Supervisor) Current() process.Controller {
	s.currentMu.Lock()
	defer s.currentMu.Unlock()
	if s.current == nil {
		return nil
	}
	return s.current
}

// Uptime returns how long the current process has been running, or 0.
func (s *Supervisor) Uptime() time.Duration {
	s.currentMu.Lock()
	defer s.currentMu.Unlock()
	if s.current == nil {
		return 0
	}
	return time.Since(s.startTime)
}

// Stop asks the running process to stop gracefully and kills it if it
// has not exited after timeout. It returns nil when nothing was running.
func (s *Supervisor) Stop(timeout time.Duration) error {
	return StopWithin(s.Current(), timeout, s.logger)
}

// StopWithin stops h gracefully, escalating to a forceful stop after
// timeout.
func StopWithin(h process.Controller, timeout time.Duration, logger *slog.Logger) error {
	if h == nil || !h.State().IsAlive() {
		return nil
	}

	h.StopGracefully()
	select {
	case <-h.Done():
		return nil
	case <-time.After(timeout):
		if logger != nil {
			logger.Warn("graceful_stop_timeout",
				"exec_tag", h.ExecTag(),
				"timeout", timeout.String(),
			)
		}
		h.StopForcefully()
		return errors.New("process did not exit gracefully")
	}
}

// extractExitCode extracts the exit code from a Wait() error.
func extractExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				// Signal exit: 128 + signal number
				return 128 + int(status.Signal())
			}
			return status.ExitStatus()
		}
		return exitErr.ExitCode()
	}

	// Unknown error, assume exit code 1
	return 1
}
