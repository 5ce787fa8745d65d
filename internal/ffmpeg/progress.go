package ffmpeg

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randomizedcoder/ffexec/internal/parser"
	"github.com/randomizedcoder/ffexec/internal/process"
	"github.com/randomizedcoder/ffexec/internal/supervisor"
)

// drainTimeout bounds how long Close waits for FFmpeg's last progress
// block after the process exited.
const drainTimeout = 500 * time.Millisecond

// ProgressSocket receives FFmpeg's -progress stream on a Unix socket and
// hands each complete block to a ProgressListener. It runs as a
// supervisor helper:
//
//	ps, _ := ffmpeg.NewProgressSocket("", listener, logger)
//	ps.Attach(builder)
//	f := supervisor.Execute(ctx, sup, cmd, handler, ps)
type ProgressSocket struct {
	reader   *parser.SocketReader
	parser   *parser.ProgressParser
	listener ProgressListener
	logger   *slog.Logger

	mu     sync.Mutex
	handle process.Controller

	finished chan struct{}
	once     sync.Once
}

// NewProgressSocket creates the socket. An empty path picks a unique one
// in the temp directory.
func NewProgressSocket(path string, l ProgressListener, logger *slog.Logger) (*ProgressSocket, error) {
	if path == "" {
		path = filepath.Join(os.TempDir(), fmt.Sprintf("ffexec-%s.sock", uuid.NewString()[:8]))
	}
	ps := &ProgressSocket{
		listener: l,
		logger:   logger,
		finished: make(chan struct{}),
	}
	ps.parser = parser.NewProgressParser(ps.onUpdate)
	reader, err := parser.NewSocketReader(path, ps.parser, logger)
	if err != nil {
		return nil, err
	}
	ps.reader = reader
	return ps, nil
}

// URL returns the value for -progress.
func (ps *ProgressSocket) URL() string {
	return "unix://" + ps.reader.SocketPath()
}

// Attach points b's -progress at the socket.
func (ps *ProgressSocket) Attach(b *Builder) {
	b.ProgressURL = ps.URL()
}

// SetConnectGrace overrides how long to wait for FFmpeg to connect.
func (ps *ProgressSocket) SetConnectGrace(d time.Duration) {
	ps.reader.SetConnectGrace(d)
}

// SetHandle implements process.HandleAware.
func (ps *ProgressSocket) SetHandle(c process.Controller) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.handle = c
}

// Ready implements supervisor.ReadyHelper.
func (ps *ProgressSocket) Ready() <-chan struct{} {
	return ps.reader.Ready()
}

// Run implements supervisor.Helper. It returns when FFmpeg closes the
// connection, when the socket is closed or when ctx is done.
func (ps *ProgressSocket) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		errc <- ps.reader.Run()
		ps.once.Do(func() { close(ps.finished) })
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		ps.reader.Close()
		<-errc
		return ctx.Err()
	}
}

// Close gives FFmpeg's final block a moment to arrive, then closes the
// socket. Idempotent.
func (ps *ProgressSocket) Close() error {
	select {
	case <-ps.finished:
	case <-ps.reader.Ready():
		select {
		case <-ps.finished:
		case <-time.After(drainTimeout):
		}
	default:
		// Run never started.
	}
	return ps.reader.Close()
}

// Blocks returns the number of complete progress blocks received.
func (ps *ProgressSocket) Blocks() int64 {
	blocks, _ := ps.parser.Stats()
	return blocks
}

// Connected reports whether FFmpeg connected to the socket.
func (ps *ProgressSocket) Connected() bool {
	return !ps.reader.FailedToConnect()
}

func (ps *ProgressSocket) onUpdate(u *parser.ProgressUpdate) {
	if ps.listener == nil {
		return
	}
	ps.mu.Lock()
	handle := ps.handle
	ps.mu.Unlock()
	notifyProgress(ps.listener, *u, handle, ps.logger)
}

var (
	_ supervisor.ReadyHelper = (*ProgressSocket)(nil)
	_ process.HandleAware    = (*ProgressSocket)(nil)
)
