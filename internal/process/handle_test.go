package process

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"
)

// startHandle spawns a real shell process and attaches it to a new handle.
func startHandle(t *testing.T, script string, shutdown ShutdownStrategy) (*Handle, *exec.Cmd) {
	t.Helper()

	command, err := NewCommand("sh", "-c", script)
	if err != nil {
		t.Fatal(err)
	}
	cmd := exec.Command("sh", "-c", script)
	cmd.SysProcAttr = SysProcAttr()
	stdin, err := cmd.StdinPipe()
	if err != nil {
		t.Fatal(err)
	}
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	h := NewHandle("test-tag", command, shutdown, nil)
	h.Attach(cmd.Process, stdin)
	return h, cmd
}

// waitExit waits for cmd and releases the handle, returning the exit code.
func waitExit(t *testing.T, h *Handle, cmd *exec.Cmd) int {
	t.Helper()

	errCh := make(chan error, 1)
	go func() { errCh <- cmd.Wait() }()

	select {
	case err := <-errCh:
		h.Release()
		if err == nil {
			return 0
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
				return 128 + int(status.Signal())
			}
			return exitErr.ExitCode()
		}
		t.Fatalf("wait: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
	return -1
}

func TestHandle_NotStarted(t *testing.T) {
	cmd, _ := NewCommand("ffmpeg", "-i", "in.mp4")
	h := NewHandle("tag-1", cmd, nil, nil)

	if h.State() != StateNotStarted {
		t.Errorf("State() = %v, want not_started", h.State())
	}
	if h.CommandLine() != "ffmpeg -i in.mp4" {
		t.Errorf("CommandLine() = %q", h.CommandLine())
	}

	_, err := h.PID()
	var notRunning *NotRunningError
	if !errors.As(err, &notRunning) || notRunning.ExecTag != "tag-1" {
		t.Errorf("PID() error = %v, want NotRunningError naming the exec tag", err)
	}

	// Stop requests before start are no-ops.
	h.StopGracefully()
	h.StopForcefully()
	if h.State() != StateNotStarted {
		t.Errorf("State() after stop = %v, want not_started", h.State())
	}
}

func TestHandle_StopForcefully(t *testing.T) {
	h, cmd := startHandle(t, "sleep 30", nil)

	pid, err := h.PID()
	if err != nil || pid != cmd.Process.Pid {
		t.Fatalf("PID() = %d, %v, want %d", pid, err, cmd.Process.Pid)
	}

	h.StopForcefully()
	if h.State() != StateTerminating {
		t.Errorf("State() = %v, want terminating", h.State())
	}

	code := waitExit(t, h, cmd)
	if code != 128+int(syscall.SIGKILL) {
		t.Errorf("exit code = %d, want %d", code, 128+int(syscall.SIGKILL))
	}

	select {
	case <-h.Done():
	default:
		t.Error("Done() should be closed after Release()")
	}
	if _, err := h.PID(); err == nil {
		t.Error("PID() after exit should fail")
	}

	// Stopping an exited process is a no-op.
	h.StopForcefully()
	h.StopGracefully()
	if h.State() != StateExited {
		t.Errorf("State() = %v, want exited", h.State())
	}
}

func TestHandle_StopGracefully_Signal(t *testing.T) {
	h, cmd := startHandle(t, "sleep 30", SignalShutdown{Signal: syscall.SIGTERM})

	h.StopGracefully()
	code := waitExit(t, h, cmd)
	if code != 128+int(syscall.SIGTERM) {
		t.Errorf("exit code = %d, want %d", code, 128+int(syscall.SIGTERM))
	}
}

func TestHandle_StopGracefully_StdinPayload(t *testing.T) {
	// The child exits 0 once it reads "q" and stdin closes.
	h, cmd := startHandle(t, `read x; [ "$x" = "q" ] && exit 0; exit 3`, StdinPayload("q"))

	h.StopGracefully()
	if code := waitExit(t, h, cmd); code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
}

func TestHandle_StopGracefullyOnlyOnce(t *testing.T) {
	calls := 0
	strategy := countingShutdown{calls: &calls}
	h, cmd := startHandle(t, "sleep 30", strategy)

	h.StopGracefully()
	h.StopGracefully() // Terminating: ignored
	if calls != 1 {
		t.Errorf("shutdown strategy called %d times, want 1", calls)
	}

	// Forceful stop still works while terminating.
	h.StopForcefully()
	waitExit(t, h, cmd)
}

func TestHandle_ReleaseIdempotent(t *testing.T) {
	cmd, _ := NewCommand("true")
	h := NewHandle("t", cmd, nil, nil)
	h.Release()
	h.Release()
	if !h.State().IsTerminal() {
		t.Errorf("State() = %v, want exited", h.State())
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
		alive bool
	}{
		{StateNotStarted, "not_started", false},
		{StateRunning, "running", true},
		{StateTerminating, "terminating", true},
		{StateExited, "exited", false},
		{State(99), "unknown", false},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			if got := tt.state.IsAlive(); got != tt.alive {
				t.Errorf("IsAlive() = %v, want %v", got, tt.alive)
			}
		})
	}
}

func TestShutdownStrategy_Names(t *testing.T) {
	if got := StdinPayload("q").Name(); got != `stdin:"q"` {
		t.Errorf("StdinPayload.Name() = %q", got)
	}
	if got := DefaultShutdown().Name(); got != "signal:terminated" {
		t.Errorf("DefaultShutdown().Name() = %q", got)
	}
	if err := StdinPayload("q").Shutdown(nil, nil); err == nil {
		t.Error("StdinPayload without stdin should fail")
	}
}

func TestNotifyListener_PanicIsolated(t *testing.T) {
	cmd, _ := NewCommand("true")
	h := NewHandle("t", cmd, nil, nil)

	var stopped int
	l := ListenerFuncs{
		Start: func(Controller) { panic("boom") },
		Stop:  func(_ Controller, code int) { stopped = code },
	}

	NotifyStart(l, h, nil)
	NotifyStop(l, h, 7, nil)
	NotifyStart(nil, h, nil)

	if stopped != 7 {
		t.Errorf("OnStop exit code = %d, want 7", stopped)
	}
}

type countingShutdown struct {
	calls *int
}

func (c countingShutdown) Shutdown(_ io.WriteCloser, _ *os.Process) error {
	*c.calls++
	return nil
}

func (c countingShutdown) Name() string { return "counting" }
