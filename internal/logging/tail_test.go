package logging

import (
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestNewTail_DefaultSize(t *testing.T) {
	tail := NewTail(0)
	for i := 0; i < DefaultTailSize+10; i++ {
		tail.Add(slog.LevelInfo, "stderr", fmt.Sprintf("line %d", i))
	}
	if got := len(tail.Recent(1000)); got != DefaultTailSize {
		t.Errorf("len(Recent) = %d, want %d", got, DefaultTailSize)
	}
}

func TestTail_RecentOrder(t *testing.T) {
	tail := NewTail(3)
	for i := 1; i <= 5; i++ {
		tail.Add(slog.LevelInfo, "stderr", fmt.Sprintf("line %d", i))
	}

	entries := tail.Recent(3)
	want := []string{"line 3", "line 4", "line 5"}
	if len(entries) != len(want) {
		t.Fatalf("len(entries) = %d, want %d", len(entries), len(want))
	}
	for i, e := range entries {
		if e.Message != want[i] {
			t.Errorf("entries[%d] = %q, want %q", i, e.Message, want[i])
		}
	}

	if got := tail.Recent(2); got[0].Message != "line 4" || got[1].Message != "line 5" {
		t.Errorf("Recent(2) = %v", got)
	}
}

func TestTail_RecentEmpty(t *testing.T) {
	tail := NewTail(10)
	if got := tail.Recent(5); len(got) != 0 {
		t.Errorf("Recent on empty tail = %v, want empty", got)
	}
}

func TestTail_Truncation(t *testing.T) {
	tail := NewTail(2)
	tail.Add(slog.LevelInfo, "stdout", strings.Repeat("x", MaxLineLength+100))

	got := tail.Recent(1)[0].Message
	if !strings.HasSuffix(got, "...(truncated)") {
		t.Errorf("long message was not truncated")
	}
	if len(got) != MaxLineLength+len("...(truncated)") {
		t.Errorf("len = %d", len(got))
	}
}

func TestTail_AtLeastAndCounts(t *testing.T) {
	tail := NewTail(4)
	tail.Add(slog.LevelInfo, "stderr", "a")
	tail.Add(slog.LevelError, "stderr", "b")
	tail.Add(slog.LevelWarn, "stderr", "c")
	tail.Add(slog.LevelError, "stderr", "d")
	tail.Add(slog.LevelInfo, "stderr", "e") // overwrites "a"

	errs := tail.AtLeast(slog.LevelError, 10)
	if len(errs) != 2 || errs[0].Message != "b" || errs[1].Message != "d" {
		t.Errorf("AtLeast(error) = %v", errs)
	}

	counts := tail.Counts()
	if counts[slog.LevelInfo] != 2 || counts[slog.LevelError] != 2 || counts[slog.LevelWarn] != 1 {
		t.Errorf("Counts = %v", counts)
	}
}
