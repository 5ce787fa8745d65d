package logging

import (
	"log/slog"
	"sync"
	"time"
)

const (
	// MaxLineLength is the maximum length of a single message before truncation.
	MaxLineLength = 4096

	// DefaultTailSize is the number of entries kept when NewTail gets size <= 0.
	DefaultTailSize = 100
)

// Entry is one message remembered by a Tail.
type Entry struct {
	Time    time.Time
	Level   slog.Level
	Channel string
	Message string
}

// Tail keeps the most recent log entries of an execution in a circular
// buffer, for the dashboard and the exit summary.
type Tail struct {
	mu     sync.Mutex
	buffer []Entry
	next   int
	filled bool
	counts map[slog.Level]int
}

// NewTail creates a tail holding up to size entries.
func NewTail(size int) *Tail {
	if size <= 0 {
		size = DefaultTailSize
	}
	return &Tail{
		buffer: make([]Entry, size),
		counts: make(map[slog.Level]int),
	}
}

// Add stores an entry, overwriting the oldest one when full.
func (t *Tail) Add(level slog.Level, channel, message string) {
	// Truncate if too long
	if len(message) > MaxLineLength {
		message = message[:MaxLineLength] + "...(truncated)"
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.buffer[t.next] = Entry{
		Time:    time.Now(),
		Level:   level,
		Channel: channel,
		Message: message,
	}
	t.next = (t.next + 1) % len(t.buffer)
	if t.next == 0 {
		t.filled = true
	}
	t.counts[level]++
}

// Recent returns up to n of the newest entries, oldest first.
func (t *Tail) Recent(n int) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	size := t.next
	if t.filled {
		size = len(t.buffer)
	}
	if n > size {
		n = size
	}
	if n <= 0 {
		return nil
	}

	entries := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		idx := (t.next - n + i + len(t.buffer)) % len(t.buffer)
		entries = append(entries, t.buffer[idx])
	}
	return entries
}

// AtLeast returns up to n of the newest entries with level >= min.
func (t *Tail) AtLeast(min slog.Level, n int) []Entry {
	all := t.Recent(len(t.buffer))
	var out []Entry
	for i := len(all) - 1; i >= 0 && len(out) < n; i-- {
		if all[i].Level >= min {
			out = append(out, all[i])
		}
	}
	// restore oldest-first order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Counts returns how many entries were added per level, including ones
// that have since been overwritten.
func (t *Tail) Counts() map[slog.Level]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	counts := make(map[slog.Level]int, len(t.counts))
	for level, n := range t.counts {
		counts[level] = n
	}
	return counts
}
