package parser

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// ProgressUpdate is one progress report of an FFmpeg run. It is filled
// either from a -progress block (ProgressParser) or from the status line
// FFmpeg redraws on stderr (ParseStatusLine).
//
// Example -progress block:
//
//	frame=60
//	fps=30.00
//	stream_0_0_q=28.0
//	bitrate= 512.0kbits/s
//	total_size=51324
//	out_time_us=2000000
//	dup_frames=0
//	drop_frames=0
//	speed=1.00x
//	progress=continue
type ProgressUpdate struct {
	Frame   int64
	FPS     float64
	Quality float64

	// Bitrate as printed, e.g. "512.0kbits/s" or "N/A".
	Bitrate string

	// TotalSize is the output size in bytes so far. Zero when unknown.
	TotalSize int64

	// OutTimeUS is the output timestamp in microseconds.
	OutTimeUS int64

	DupFrames  int64
	DropFrames int64

	// Speed relative to realtime. Zero when FFmpeg prints "N/A".
	Speed float64

	// Progress is "continue" or "end" for -progress blocks, empty for
	// status lines.
	Progress string

	ReceivedAt time.Time
}

// ProgressCallback receives a copy of each complete update.
type ProgressCallback func(*ProgressUpdate)

// ProgressParser parses FFmpeg -progress output, one key=value per line,
// each block terminated by a "progress=" line.
//
// Thread-safe.
type ProgressParser struct {
	callback ProgressCallback

	mu      sync.Mutex
	current *ProgressUpdate

	blocksReceived int64
	linesProcessed int64
}

// NewProgressParser creates a parser. cb may be nil.
func NewProgressParser(cb ProgressCallback) *ProgressParser {
	return &ProgressParser{
		callback: cb,
		current:  &ProgressUpdate{},
	}
}

// ParseLine implements LineParser.
func (p *ProgressParser) ParseLine(line string) {
	key, value, ok := parseKeyValue(line)
	if !ok {
		return
	}
	value = strings.TrimSpace(value)

	p.mu.Lock()
	p.linesProcessed++
	if key != "progress" {
		applyProgressField(p.current, key, value)
		p.mu.Unlock()
		return
	}

	p.current.Progress = value
	p.current.ReceivedAt = time.Now()
	p.blocksReceived++
	update := *p.current
	p.current = &ProgressUpdate{}
	cb := p.callback
	p.mu.Unlock()

	if cb != nil {
		cb(&update)
	}
}

// applyProgressField sets the field named by a -progress key.
// Unknown keys are ignored.
func applyProgressField(u *ProgressUpdate, key, value string) {
	switch key {
	case "frame":
		u.Frame, _ = strconv.ParseInt(value, 10, 64)
	case "fps":
		u.FPS, _ = strconv.ParseFloat(value, 64)
	case "bitrate":
		u.Bitrate = value
	case "total_size":
		if value != "N/A" {
			u.TotalSize, _ = strconv.ParseInt(value, 10, 64)
		}
	case "out_time_us":
		u.OutTimeUS, _ = strconv.ParseInt(value, 10, 64)
	case "out_time_ms":
		// Despite the name FFmpeg reports microseconds here as well.
		if u.OutTimeUS == 0 {
			u.OutTimeUS, _ = strconv.ParseInt(value, 10, 64)
		}
	case "dup_frames":
		u.DupFrames, _ = strconv.ParseInt(value, 10, 64)
	case "drop_frames":
		u.DropFrames, _ = strconv.ParseInt(value, 10, 64)
	case "speed":
		u.Speed = parseSpeed(value)
	default:
		if strings.HasPrefix(key, "stream_") && strings.HasSuffix(key, "_q") {
			u.Quality, _ = strconv.ParseFloat(value, 64)
		}
	}
}

// Stats returns parser statistics.
func (p *ProgressParser) Stats() (blocksReceived, linesProcessed int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.blocksReceived, p.linesProcessed
}

// Current returns a copy of the incomplete block.
func (p *ProgressParser) Current() *ProgressUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()
	u := *p.current
	return &u
}

func parseKeyValue(line string) (key, value string, ok bool) {
	idx := strings.Index(line, "=")
	if idx < 0 {
		return "", "", false
	}
	return line[:idx], line[idx+1:], true
}

// parseSpeed converts "1.25x" to 1.25; "N/A" and garbage give 0.
func parseSpeed(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "x")
	if s == "N/A" || s == "" {
		return 0
	}
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

// OutTimeDuration returns the output timestamp as a time.Duration.
func (u *ProgressUpdate) OutTimeDuration() time.Duration {
	return time.Duration(u.OutTimeUS) * time.Microsecond
}

// IsEnd reports whether this is the last block of the run.
func (u *ProgressUpdate) IsEnd() bool {
	return u.Progress == "end"
}

var _ LineParser = (*ProgressParser)(nil)
