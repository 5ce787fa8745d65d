package parser

import (
	"strings"

	"github.com/randomizedcoder/ffexec/internal/process"
)

const (
	// maxBracketPairs is how many "[...]" pairs are inspected per line.
	// FFmpeg prints the component prefix ("[h264 @ 0x...]") before the
	// level tag, so the tag is usually the first or second pair.
	maxBracketPairs = 2

	// maxBracketDistance bounds close-open for a pair to qualify as a tag.
	maxBracketDistance = 8

	// bracketIndexLimit is the last byte offset a tag bracket may sit at.
	bracketIndexLimit = 50
)

// ParseLogMessage recognizes a line that opens a new log message, i.e.
// one carrying a level tag such as "[error]". The tag is removed from the
// returned message; the rest of the line is kept as is.
func ParseLogMessage(line string) (process.LogRecord, bool) {
	open, closing, sev, ok := findSeverityTag(line)
	if !ok {
		return process.LogRecord{}, false
	}
	return process.LogRecord{
		Severity: sev,
		Message:  line[:open] + line[closing+1:],
	}, true
}

func findSeverityTag(line string) (open, closing int, sev process.Severity, ok bool) {
	from := 0
	for pair := 0; pair < maxBracketPairs; pair++ {
		open = indexFrom(line, '[', from)
		if open < 0 || open > bracketIndexLimit {
			return 0, 0, 0, false
		}
		closing = indexFrom(line, ']', open)
		if closing < 0 || closing > bracketIndexLimit {
			return 0, 0, 0, false
		}
		if closing-open <= maxBracketDistance {
			if sev, ok = process.SeverityFromTag(line[open+1 : closing]); ok {
				return open, closing, sev, true
			}
		}
		from = closing
	}
	return 0, 0, 0, false
}

func indexFrom(s string, c byte, from int) int {
	if from >= len(s) {
		return -1
	}
	i := strings.IndexByte(s[from:], c)
	if i < 0 {
		return -1
	}
	return from + i
}
