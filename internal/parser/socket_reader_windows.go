//go:build windows

package parser

import (
	"errors"
	"log/slog"
	"time"
)

// ErrUnixSocketsNotSupported is returned on Windows.
var ErrUnixSocketsNotSupported = errors.New("unix sockets not supported on Windows")

// DefaultConnectGrace mirrors the unix constant.
const DefaultConnectGrace = 3 * time.Second

// SocketReader is a stub for Windows compilation.
type SocketReader struct{}

// NewSocketReader always fails on Windows.
func NewSocketReader(socketPath string, p LineParser, logger *slog.Logger) (*SocketReader, error) {
	return nil, ErrUnixSocketsNotSupported
}

func (r *SocketReader) SetConnectGrace(time.Duration) {}
func (r *SocketReader) Run() error                     { return nil }
func (r *SocketReader) Close() error                   { return nil }
func (r *SocketReader) Stats() (int64, int64, bool)    { return 0, 0, false }
func (r *SocketReader) SocketPath() string             { return "" }
func (r *SocketReader) FailedToConnect() bool          { return true }

// Ready returns a closed channel.
func (r *SocketReader) Ready() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
