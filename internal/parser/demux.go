package parser

import (
	"strings"
)

// Demuxer splits a byte stream into lines. CR and LF both terminate a
// line and any run of them counts as a single boundary, so empty lines
// are never produced. FFmpeg redraws its status line with bare CRs,
// which makes this the natural unit for its output.
//
// A Demuxer is owned by one reader goroutine and is not safe for
// concurrent use.
type Demuxer struct {
	// fragments of the current line, copied out of the caller's chunks
	runs [][]byte
	size int
}

// NewDemuxer creates an empty demuxer.
func NewDemuxer() *Demuxer {
	return &Demuxer{}
}

// Feed consumes chunk and returns the lines it completed. With final set,
// whatever is buffered afterwards is returned as a last line.
func (d *Demuxer) Feed(chunk []byte, final bool) []string {
	var lines []string
	d.Push(chunk, final, func(line string) {
		lines = append(lines, line)
	})
	return lines
}

// Push is Feed with a callback instead of a returned slice.
func (d *Demuxer) Push(chunk []byte, final bool, emit func(line string)) {
	start := 0
	for i, b := range chunk {
		if b != '\r' && b != '\n' {
			continue
		}
		d.append(chunk[start:i])
		start = i + 1
		d.flush(emit)
	}
	d.append(chunk[start:])
	if final {
		d.flush(emit)
	}
}

// Pending returns the number of buffered bytes not yet emitted.
func (d *Demuxer) Pending() int {
	return d.size
}

func (d *Demuxer) append(run []byte) {
	if len(run) == 0 {
		return
	}
	d.runs = append(d.runs, append([]byte(nil), run...))
	d.size += len(run)
}

func (d *Demuxer) flush(emit func(string)) {
	if d.size == 0 {
		return
	}

	var line string
	if len(d.runs) == 1 {
		line = string(d.runs[0])
	} else {
		var b strings.Builder
		b.Grow(d.size)
		for _, run := range d.runs {
			b.Write(run)
		}
		line = b.String()
	}

	d.runs = d.runs[:0]
	d.size = 0
	emit(strings.ToValidUTF8(line, "\uFFFD"))
}
