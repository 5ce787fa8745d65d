package preflight

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestCheck_String(t *testing.T) {
	t.Run("passed_with_required", func(t *testing.T) {
		c := Check{
			Name:     "test_check",
			Required: 100,
			Actual:   200,
			Passed:   true,
		}
		s := c.String()
		if !strings.Contains(s, "✓") {
			t.Error("Passed check should have ✓")
		}
		if !strings.Contains(s, "200") || !strings.Contains(s, "100") {
			t.Errorf("Should contain actual and required values: %s", s)
		}
	})

	t.Run("failed_check", func(t *testing.T) {
		c := Check{Name: "test_check", Required: 100, Actual: 50, Passed: false}
		if !strings.Contains(c.String(), "✗") {
			t.Error("Failed check should have ✗")
		}
	})

	t.Run("warning_check", func(t *testing.T) {
		c := Check{Name: "test_check", Passed: true, Warning: true, Message: "warning message"}
		s := c.String()
		if !strings.Contains(s, "⚠") {
			t.Error("Warning check should have ⚠")
		}
		if !strings.Contains(s, "warning message") {
			t.Error("Should contain message")
		}
	})
}

// fakeFFmpeg writes a script that answers -version like FFmpeg does.
func fakeFFmpeg(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\necho 'ffmpeg version 6.1.1 Copyright (c) 2000-2023 the FFmpeg developers'\necho 'configuration: --enable-gpl'\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func findCheck(t *testing.T, r *Result, name string) Check {
	t.Helper()
	for _, c := range r.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no %s check in %+v", name, r.Checks)
	return Check{}
}

func TestRunAll_WithFFmpeg(t *testing.T) {
	result := RunAll(context.Background(), Options{
		FFmpegPath:  fakeFFmpeg(t),
		FFprobePath: "/nonexistent/ffprobe",
	})

	ff := findCheck(t, result, "ffmpeg")
	if !ff.Passed {
		t.Errorf("ffmpeg check should pass: %s", ff.Message)
	}
	if !strings.Contains(ff.Message, "6.1.1") {
		t.Errorf("Message should carry the version: %s", ff.Message)
	}

	probe := findCheck(t, result, "ffprobe")
	if !probe.Passed || !probe.Warning {
		t.Errorf("missing ffprobe should only warn: %+v", probe)
	}
	if !result.Passed {
		t.Error("Result should pass when only warnings are present")
	}
}

func TestRunAll_FFprobeRequired(t *testing.T) {
	result := RunAll(context.Background(), Options{
		FFmpegPath:  fakeFFmpeg(t),
		FFprobePath: "/nonexistent/ffprobe",
		NeedFFprobe: true,
	})
	if result.Passed {
		t.Error("Result should fail when a required ffprobe is missing")
	}
}

func TestRunAll_WithInvalidFFmpegPath(t *testing.T) {
	result := RunAll(context.Background(), Options{FFmpegPath: "/nonexistent/ffmpeg/path"})

	ff := findCheck(t, result, "ffmpeg")
	if ff.Passed {
		t.Error("FFmpeg check should fail with invalid path")
	}
	if !strings.Contains(ff.Message, "not found") {
		t.Errorf("Message should mention 'not found': %s", ff.Message)
	}
	if result.Passed {
		t.Error("Result should fail when ffmpeg is not found")
	}
}

func TestRunAll_ProgressSocket(t *testing.T) {
	result := RunAll(context.Background(), Options{
		FFmpegPath:     fakeFFmpeg(t),
		ProgressSocket: true,
	})
	c := findCheck(t, result, "progress_socket")
	if !c.Passed {
		t.Errorf("progress_socket check should never fail: %+v", c)
	}
}

func TestCheckFFmpeg_NoVersion(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\necho hello\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	result := RunAll(context.Background(), Options{FFmpegPath: path})
	ff := findCheck(t, result, "ffmpeg")
	if ff.Passed {
		t.Error("ffmpeg without a version line should fail")
	}
	if !strings.Contains(ff.Message, "-version failed") {
		t.Errorf("Message = %s", ff.Message)
	}
}

func TestCheckFFmpeg_EdgeCases(t *testing.T) {
	for _, path := range []string{"", os.TempDir()} {
		t.Run(path, func(t *testing.T) {
			result := RunAll(context.Background(), Options{FFmpegPath: path})
			if findCheck(t, result, "ffmpeg").Passed {
				t.Errorf("ffmpeg path %q should fail", path)
			}
		})
	}
}

func TestCheckFileDescriptors(t *testing.T) {
	check := checkFileDescriptors()

	if check.Name != "file_descriptors" {
		t.Errorf("Name = %q, want file_descriptors", check.Name)
	}
	if !check.Passed {
		t.Error("file_descriptors should only ever warn")
	}
	if runtime.GOOS != "windows" && check.Actual <= 0 {
		t.Errorf("Actual should be positive: %d", check.Actual)
	}
}

func TestSuggestFix(t *testing.T) {
	testCases := []struct {
		name     string
		expected string
	}{
		{"file_descriptors", "ulimit -n"},
		{"ffmpeg", "install ffmpeg"},
		{"ffprobe", "--ffprobe"},
		{"progress_socket", "TMPDIR"},
		{"unknown", "documentation"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fix := suggestFix(tc.name)
			if !strings.Contains(fix, tc.expected) {
				t.Errorf("suggestFix(%q) = %q, should contain %q", tc.name, fix, tc.expected)
			}
		})
	}
}

func TestPrintResults(t *testing.T) {
	result := &Result{
		Checks: []Check{
			{Name: "test1", Passed: true, Message: "ok"},
			{Name: "ffmpeg", Passed: false, Message: "not found"},
			{Name: "progress_socket", Passed: true, Warning: true, Message: "cannot listen"},
		},
		Passed: false,
	}

	var buf bytes.Buffer
	PrintResults(&buf, result)

	out := buf.String()
	if !strings.HasPrefix(out, "Preflight checks:") {
		t.Errorf("output = %q", out)
	}
	if strings.Count(out, "Fix:") != 2 {
		t.Errorf("want a fix for the failure and the warning: %q", out)
	}
}
