package ffmpeg

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func skipWithoutUnixSockets(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("unix sockets not supported")
	}
}

func shortSocketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "ffx")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "p.sock")
}

func TestProgressSocket_Blocks(t *testing.T) {
	skipWithoutUnixSockets(t)

	rec := &progressRecorder{}
	ps, err := NewProgressSocket(shortSocketPath(t), rec, nil)
	if err != nil {
		t.Fatalf("NewProgressSocket() error = %v", err)
	}

	b := NewBuilder("ffmpeg")
	ps.Attach(b)
	if !strings.HasPrefix(b.ProgressURL, "unix://") {
		t.Errorf("ProgressURL = %q", b.ProgressURL)
	}

	done := make(chan error, 1)
	go func() { done <- ps.Run(context.Background()) }()
	<-ps.Ready()

	conn, err := net.Dial("unix", strings.TrimPrefix(ps.URL(), "unix://"))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	for i, state := range []string{"continue", "end"} {
		fmt.Fprintf(conn, "frame=%d\nfps=25.0\nout_time_us=%d\nspeed=1.0x\nprogress=%s\n", (i+1)*25, (i+1)*1000000, state)
	}
	conn.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after the connection closed")
	}
	if err := ps.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	updates := rec.snapshot()
	if len(updates) != 2 {
		t.Fatalf("updates = %d, want 2", len(updates))
	}
	if !updates[1].IsEnd() || updates[1].Frame != 50 || updates[1].OutTimeDuration() != 2*time.Second {
		t.Errorf("last update = %+v", updates[1])
	}
	if ps.Blocks() != 2 || !ps.Connected() {
		t.Errorf("Blocks() = %d, Connected() = %v", ps.Blocks(), ps.Connected())
	}
	if _, err := os.Stat(strings.TrimPrefix(ps.URL(), "unix://")); !os.IsNotExist(err) {
		t.Errorf("socket file not removed: %v", err)
	}
}

func TestProgressSocket_NoConnection(t *testing.T) {
	skipWithoutUnixSockets(t)

	ps, err := NewProgressSocket(shortSocketPath(t), nil, nil)
	if err != nil {
		t.Fatalf("NewProgressSocket() error = %v", err)
	}
	ps.SetConnectGrace(50 * time.Millisecond)

	if err := ps.Run(context.Background()); err != nil {
		t.Errorf("Run() error = %v, want nil after accept timeout", err)
	}
	if ps.Connected() {
		t.Error("Connected() = true, want false")
	}
	ps.Close()
}

func TestProgressSocket_ContextCancel(t *testing.T) {
	skipWithoutUnixSockets(t)

	ps, err := NewProgressSocket(shortSocketPath(t), nil, nil)
	if err != nil {
		t.Fatalf("NewProgressSocket() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ps.Run(ctx) }()
	<-ps.Ready()
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestProgressSocket_CloseBeforeRun(t *testing.T) {
	skipWithoutUnixSockets(t)

	ps, err := NewProgressSocket(shortSocketPath(t), nil, nil)
	if err != nil {
		t.Fatalf("NewProgressSocket() error = %v", err)
	}
	start := time.Now()
	if err := ps.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if time.Since(start) > drainTimeout {
		t.Error("Close() before Run should not wait for a drain")
	}
}

func TestProgressSocket_DefaultPath(t *testing.T) {
	skipWithoutUnixSockets(t)

	ps, err := NewProgressSocket("", nil, nil)
	if err != nil {
		t.Skipf("temp dir unusable for sockets: %v", err)
	}
	defer ps.Close()
	if !strings.Contains(ps.URL(), "ffexec-") {
		t.Errorf("URL() = %q", ps.URL())
	}
}
