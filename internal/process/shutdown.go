package process

import (
	"fmt"
	"io"
	"os"
	"syscall"
)

// ShutdownStrategy asks a running process to exit on its own.
type ShutdownStrategy interface {
	// Shutdown delivers the request. stdin may be nil when the
	// process was started without a stdin pipe.
	Shutdown(stdin io.WriteCloser, proc *os.Process) error

	// Name is used in logs.
	Name() string
}

// DefaultShutdown returns the strategy used when none is configured.
func DefaultShutdown() ShutdownStrategy {
	return SignalShutdown{Signal: syscall.SIGTERM}
}

// StdinPayload writes its bytes to the process stdin and then closes it.
// FFmpeg stops encoding and finalizes its outputs on "q".
type StdinPayload []byte

// Shutdown implements ShutdownStrategy.
func (p StdinPayload) Shutdown(stdin io.WriteCloser, _ *os.Process) error {
	if stdin == nil {
		return fmt.Errorf("stdin payload shutdown: stdin not available")
	}
	if _, err := stdin.Write(p); err != nil {
		stdin.Close()
		return fmt.Errorf("stdin payload shutdown: %w", err)
	}
	return stdin.Close()
}

// Name implements ShutdownStrategy.
func (p StdinPayload) Name() string {
	return fmt.Sprintf("stdin:%q", string(p))
}

// SignalShutdown sends a signal to the process group.
type SignalShutdown struct {
	Signal os.Signal
}

// Shutdown implements ShutdownStrategy.
func (s SignalShutdown) Shutdown(_ io.WriteCloser, proc *os.Process) error {
	if proc == nil {
		return fmt.Errorf("signal shutdown: no process")
	}
	return signalGroup(proc, s.Signal)
}

// Name implements ShutdownStrategy.
func (s SignalShutdown) Name() string {
	if s.Signal == nil {
		return "signal:none"
	}
	return "signal:" + s.Signal.String()
}
