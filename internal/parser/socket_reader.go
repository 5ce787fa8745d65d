//go:build !windows

package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// maxUnixSocketPathLen is the safe maximum path length for Unix sockets.
	// sockaddr_un.sun_path is typically 108 bytes; we use 104 for safety.
	maxUnixSocketPathLen = 104

	// DefaultConnectGrace is how long the reader waits for the child to
	// connect before giving up.
	DefaultConnectGrace = 3 * time.Second
)

// SocketReader accepts one connection on a Unix socket and feeds its
// lines to a LineParser. FFmpeg writes -progress output to it when given
// "-progress unix://<path>".
//
// Ready() must be observed before the child is spawned, otherwise the
// child may try to connect before Accept.
type SocketReader struct {
	socketPath string
	listener   net.Listener
	parser     LineParser
	logger     *slog.Logger
	grace      time.Duration

	readyChan  chan struct{}
	closedOnce sync.Once
	cleanedUp  atomic.Bool

	failedToConnect atomic.Bool
	conn            net.Conn
	connMu          sync.Mutex

	bytesRead atomic.Int64
	linesRead atomic.Int64
}

func validateSocketPath(path string) error {
	if len(path) > maxUnixSocketPathLen {
		return fmt.Errorf("socket path too long (%d > %d bytes): use shorter TMPDIR: %s",
			len(path), maxUnixSocketPathLen, path)
	}
	return nil
}

// NewSocketReader creates the socket at socketPath. A stale socket file
// left by a crashed run is removed first.
func NewSocketReader(socketPath string, p LineParser, logger *slog.Logger) (*SocketReader, error) {
	if err := validateSocketPath(socketPath); err != nil {
		return nil, err
	}

	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil && logger != nil {
			logger.Debug("stale_socket_remove_failed", "path", socketPath, "error", err)
		}
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create socket %s: %w", socketPath, err)
	}

	return &SocketReader{
		socketPath: socketPath,
		listener:   listener,
		parser:     p,
		logger:     logger,
		grace:      DefaultConnectGrace,
		readyChan:  make(chan struct{}),
	}, nil
}

// SetConnectGrace overrides DefaultConnectGrace. Call before Run.
func (r *SocketReader) SetConnectGrace(d time.Duration) {
	if d > 0 {
		r.grace = d
	}
}

// Ready is closed once Accept is about to block.
func (r *SocketReader) Ready() <-chan struct{} {
	return r.readyChan
}

// FailedToConnect reports whether the child never connected.
func (r *SocketReader) FailedToConnect() bool {
	return r.failedToConnect.Load()
}

// Run accepts one connection and reads it until EOF. A timed-out accept
// is not an error: the child may simply not report progress. Closing the
// reader unblocks Run.
func (r *SocketReader) Run() error {
	defer r.cleanup()

	close(r.readyChan)

	if ul, ok := r.listener.(*net.UnixListener); ok {
		if err := ul.SetDeadline(time.Now().Add(r.grace)); err != nil {
			r.debug("accept_deadline_failed", "error", err)
		}
	}

	conn, err := r.listener.Accept()
	if err != nil {
		r.failedToConnect.Store(true)
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		if r.logger != nil {
			r.logger.Warn("progress_socket_accept_timeout",
				"path", r.socketPath,
				"grace", r.grace,
				"error", err,
			)
		}
		return nil
	}

	r.connMu.Lock()
	r.conn = conn
	r.connMu.Unlock()

	defer func() {
		r.connMu.Lock()
		if r.conn != nil {
			r.conn.Close()
			r.conn = nil
		}
		r.connMu.Unlock()
	}()

	if err := conn.SetDeadline(time.Time{}); err != nil {
		r.debug("read_deadline_clear_failed", "error", err)
	}

	reader := NewPipeReader(conn, Stdout, func(line string) {
		r.linesRead.Add(1)
		if r.parser != nil {
			r.parser.ParseLine(line)
		}
	})
	err = reader.Run()
	bytesRead, _ := reader.Stats()
	r.bytesRead.Store(bytesRead)

	r.debug("progress_socket_finished",
		"bytes_read", r.bytesRead.Load(),
		"lines_read", r.linesRead.Load(),
	)
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (r *SocketReader) debug(msg string, args ...any) {
	if r.logger == nil {
		return
	}
	r.logger.Debug(msg, append([]any{"path", r.socketPath}, args...)...)
}

// cleanup closes the listener and removes the socket file. Idempotent.
func (r *SocketReader) cleanup() {
	if r.cleanedUp.Swap(true) {
		return
	}
	if r.listener != nil {
		r.listener.Close()
	}
	if err := os.Remove(r.socketPath); err != nil && !os.IsNotExist(err) {
		r.debug("socket_remove_failed", "error", err)
	}
}

// Close stops the reader and cleans up. Idempotent.
func (r *SocketReader) Close() error {
	r.closedOnce.Do(func() {
		r.connMu.Lock()
		if r.conn != nil {
			r.conn.Close()
			r.conn = nil
		}
		r.connMu.Unlock()

		// Unblocks Accept.
		if r.listener != nil {
			r.listener.Close()
		}
		r.cleanup()
	})
	return nil
}

// Stats returns (bytesRead, linesRead, healthy).
func (r *SocketReader) Stats() (bytesRead int64, linesRead int64, healthy bool) {
	return r.bytesRead.Load(),
		r.linesRead.Load(),
		!r.failedToConnect.Load() && !r.cleanedUp.Load()
}

// SocketPath returns the path to the socket file.
func (r *SocketReader) SocketPath() string {
	return r.socketPath
}
