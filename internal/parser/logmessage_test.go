package parser

import (
	"testing"

	"github.com/randomizedcoder/ffexec/internal/process"
)

func TestParseLogMessage(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantOK  bool
		wantSev process.Severity
		wantMsg string
	}{
		{"info", "[info] Stream mapping:", true, process.SeverityInfo, " Stream mapping:"},
		{"error", "[error] Conversion failed!", true, process.SeverityError, " Conversion failed!"},
		{"second pair", "[h264 @ 0x55d] [warning] non-existing PPS", true, process.SeverityWarning, "[h264 @ 0x55d]  non-existing PPS"},
		{"short component first", "[mp4] [debug] box", true, process.SeverityDebug, "[mp4]  box"},
		{"empty tag is trace", "[] something", true, process.SeverityTrace, " something"},
		{"fatal", "[fatal] boom", true, process.SeverityFatal, " boom"},
		{"quiet", "[quiet] q", true, process.SeverityQuiet, " q"},
		{"panic", "[panic] p", true, process.SeverityPanic, " p"},
		{"verbose", "[verbose] v", true, process.SeverityVerbose, " v"},
		{"no brackets", "Input #0, mov,mp4", false, 0, ""},
		{"unknown tag", "[foo] bar", false, 0, ""},
		{"case sensitive", "[INFO] bar", false, 0, ""},
		{"tag too wide", "[information] x", false, 0, ""},
		{"third pair ignored", "[a] [b] [error] x", false, 0, ""},
		{"unclosed", "[info x", false, 0, ""},
		{"tag beyond limit", "01234567890123456789012345678901234567890123456789[error] late", false, 0, ""},
		{"closing beyond limit", "0123456789012345678901234567890123456789012345[error] x", false, 0, ""},
		{"tag mid line", "prefix [error] suffix", true, process.SeverityError, "prefix  suffix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := ParseLogMessage(tt.line)
			if ok != tt.wantOK {
				t.Fatalf("ParseLogMessage(%q) ok = %v, want %v", tt.line, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if rec.Severity != tt.wantSev {
				t.Errorf("severity = %s, want %s", rec.Severity, tt.wantSev)
			}
			if rec.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", rec.Message, tt.wantMsg)
			}
		})
	}
}

func TestParseLogMessage_BracketAtLimit(t *testing.T) {
	// Opening bracket at 42, closing at 48: both within the limit.
	line := "012345678901234567890123456789012345678901[error] ok"
	rec, ok := ParseLogMessage(line)
	if !ok || rec.Severity != process.SeverityError {
		t.Errorf("ParseLogMessage() = %+v, %v", rec, ok)
	}
}
