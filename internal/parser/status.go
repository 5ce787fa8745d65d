package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var statusValueSpace = regexp.MustCompile(`=\s+`)

// IsStatusLine reports whether line is the status line FFmpeg redraws on
// stderr while encoding, e.g.
//
//	frame=  120 fps= 30 q=28.0 size=     256kB time=00:00:04.00 bitrate= 524.3kbits/s speed=1.01x
func IsStatusLine(line string) bool {
	return strings.Contains(line, "frame=") &&
		strings.Contains(line, "bitrate=") &&
		strings.Contains(line, "speed=")
}

// ParseStatusLine extracts a ProgressUpdate from a status line.
// Fields FFmpeg prints as "N/A" stay zero.
func ParseStatusLine(line string) (ProgressUpdate, bool) {
	if !IsStatusLine(line) {
		return ProgressUpdate{}, false
	}

	u := ProgressUpdate{ReceivedAt: time.Now()}
	for _, field := range strings.Fields(statusValueSpace.ReplaceAllString(line, "=")) {
		key, value, ok := parseKeyValue(field)
		if !ok {
			continue
		}
		switch key {
		case "frame":
			u.Frame, _ = strconv.ParseInt(value, 10, 64)
		case "fps":
			u.FPS, _ = strconv.ParseFloat(value, 64)
		case "q":
			u.Quality, _ = strconv.ParseFloat(value, 64)
		case "size", "Lsize":
			if n, ok := ParseSize(value); ok {
				u.TotalSize = n
			}
		case "time":
			if d, ok := ParseTimestamp(value); ok {
				u.OutTimeUS = d.Microseconds()
			}
		case "bitrate":
			u.Bitrate = value
		case "dup":
			u.DupFrames, _ = strconv.ParseInt(value, 10, 64)
		case "drop":
			u.DropFrames, _ = strconv.ParseInt(value, 10, 64)
		case "speed":
			u.Speed = parseSpeed(value)
		}
	}
	return u, true
}

// ParseSize converts FFmpeg sizes ("256kB", "1.5KiB", "1024B", "3MiB")
// to bytes. FFmpeg's kB is 1024 bytes.
func ParseSize(s string) (int64, bool) {
	units := []struct {
		suffix string
		scale  float64
	}{
		{"KiB", 1 << 10},
		{"kB", 1 << 10},
		{"MiB", 1 << 20},
		{"MB", 1 << 20},
		{"GiB", 1 << 30},
		{"GB", 1 << 30},
		{"B", 1},
	}
	for _, u := range units {
		if num, ok := strings.CutSuffix(s, u.suffix); ok {
			f, err := strconv.ParseFloat(num, 64)
			if err != nil {
				return 0, false
			}
			return int64(f * u.scale), true
		}
	}
	return 0, false
}

// ParseTimestamp converts "[-]HH:MM:SS.ff" to a duration.
func ParseTimestamp(s string) (time.Duration, bool) {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, false
	}
	hours, err1 := strconv.Atoi(parts[0])
	minutes, err2 := strconv.Atoi(parts[1])
	seconds, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}

	d := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds*float64(time.Second))
	if neg {
		d = -d
	}
	return d, true
}
