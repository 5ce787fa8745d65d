package process

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/randomizedcoder/ffexec/internal/logging"
)

// Controller is the view of a running process handed to callers,
// listeners and helpers. It can observe the process and stop it.
type Controller interface {
	// ExecTag identifies one execution in logs and errors.
	ExecTag() string

	// CommandLine is the command as a single diagnostic string.
	CommandLine() string

	// PID returns the OS process id, or *NotRunningError.
	PID() (int, error)

	// State returns the current lifecycle state.
	State() State

	// StopGracefully asks the process to finish on its own terms.
	StopGracefully()

	// StopForcefully kills the process group.
	StopForcefully()

	// Done is closed once the process has exited and been released.
	Done() <-chan struct{}
}

// HandleAware is implemented by handlers and helpers that want the
// Controller of the execution they belong to.
type HandleAware interface {
	SetHandle(h Controller)
}

// Handle is the Controller for one execution.
type Handle struct {
	execTag     string
	commandLine string
	shutdown    ShutdownStrategy
	logger      *slog.Logger

	mu    sync.Mutex
	state State
	proc  *os.Process
	stdin io.WriteCloser

	done     chan struct{}
	doneOnce sync.Once
}

// NewHandle creates a handle in the NotStarted state. A nil shutdown
// strategy falls back to SIGTERM.
func NewHandle(execTag string, cmd Command, shutdown ShutdownStrategy, logger *slog.Logger) *Handle {
	if shutdown == nil {
		shutdown = DefaultShutdown()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handle{
		execTag:     execTag,
		commandLine: cmd.String(),
		shutdown:    shutdown,
		logger:      logger.With("exec_tag", execTag),
		state:       StateNotStarted,
		done:        make(chan struct{}),
	}
}

// ExecTag implements Controller.
func (h *Handle) ExecTag() string {
	return h.execTag
}

// CommandLine implements Controller.
func (h *Handle) CommandLine() string {
	return h.commandLine
}

// PID implements Controller.
func (h *Handle) PID() (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.state.IsAlive() || h.proc == nil {
		return 0, &NotRunningError{ExecTag: h.execTag}
	}
	return h.proc.Pid, nil
}

// State implements Controller.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Done implements Controller.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Attach records the spawned process and moves the handle to Running.
func (h *Handle) Attach(proc *os.Process, stdin io.WriteCloser) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.proc = proc
	h.stdin = stdin
	h.state = StateRunning
}

// Release marks the process as exited, forgets its pid and closes Done.
// Safe to call more than once.
func (h *Handle) Release() {
	h.mu.Lock()
	h.proc = nil
	h.stdin = nil
	h.state = StateExited
	h.mu.Unlock()

	h.doneOnce.Do(func() { close(h.done) })
}

// StopGracefully implements Controller. It only acts on a Running process.
func (h *Handle) StopGracefully() {
	h.mu.Lock()
	if h.state != StateRunning {
		state := h.state
		h.mu.Unlock()
		h.logger.Debug("graceful_stop_ignored", "state", state.String())
		return
	}
	h.state = StateTerminating
	proc, stdin := h.proc, h.stdin
	h.mu.Unlock()

	h.logger.Info("graceful_stop", "pid", proc.Pid, "strategy", h.shutdown.Name())
	if err := h.shutdown.Shutdown(stdin, proc); err != nil {
		h.logger.Warn("graceful_stop_failed", "pid", proc.Pid, "error", err)
	}
}

// StopForcefully implements Controller. It acts on a Running or
// Terminating process.
func (h *Handle) StopForcefully() {
	h.mu.Lock()
	if !h.state.IsAlive() || h.proc == nil {
		state := h.state
		h.mu.Unlock()
		h.logger.Debug("forceful_stop_ignored", "state", state.String())
		return
	}
	h.state = StateTerminating
	proc := h.proc
	h.mu.Unlock()

	h.logger.Warn("force_killing_process", "pid", proc.Pid)
	if err := killGroup(proc); err != nil {
		h.logger.Warn("force_kill_failed", "pid", proc.Pid, "error", err)
	}
}

var _ Controller = (*Handle)(nil)
