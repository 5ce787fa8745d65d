package ffmpeg

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/randomizedcoder/ffexec/internal/parser"
)

// Result is the size summary FFmpeg prints when it finishes, e.g.
//
//	video:1417kB audio:113kB subtitle:0kB other streams:0kB global headers:0kB muxing overhead: unknown
//
// Sizes are in bytes. A nil field was not reported.
type Result struct {
	VideoSize         *int64
	AudioSize         *int64
	SubtitleSize      *int64
	OtherStreamsSize  *int64
	GlobalHeadersSize *int64

	// MuxingOverheadRatio is the overhead as a ratio, 0.01 for "1%".
	// Nil when FFmpeg prints "unknown".
	MuxingOverheadRatio *float64
}

// IsEmpty reports whether no field was reported.
func (r Result) IsEmpty() bool {
	return r.VideoSize == nil && r.AudioSize == nil && r.SubtitleSize == nil &&
		r.OtherStreamsSize == nil && r.GlobalHeadersSize == nil && r.MuxingOverheadRatio == nil
}

var (
	resultKeyFixer = strings.NewReplacer(
		"other streams", "other_streams",
		"global headers", "global_headers",
		"muxing overhead", "muxing_overhead",
	)
	resultColonSpace = regexp.MustCompile(`:\s+`)
)

// ParseResult parses the size summary. It reports false when line holds
// none of the summary fields.
func ParseResult(line string) (Result, bool) {
	if !strings.Contains(line, ":") {
		return Result{}, false
	}
	line = resultColonSpace.ReplaceAllString(resultKeyFixer.Replace(line), ":")

	var r Result
	for _, field := range strings.Fields(line) {
		key, value, ok := strings.Cut(field, ":")
		if !ok {
			continue
		}
		switch key {
		case "video":
			r.VideoSize = parseSize(value)
		case "audio":
			r.AudioSize = parseSize(value)
		case "subtitle":
			r.SubtitleSize = parseSize(value)
		case "other_streams":
			r.OtherStreamsSize = parseSize(value)
		case "global_headers":
			r.GlobalHeadersSize = parseSize(value)
		case "muxing_overhead":
			r.MuxingOverheadRatio = parseRatio(value)
		}
	}
	if r.IsEmpty() {
		return Result{}, false
	}
	return r, true
}

func parseSize(value string) *int64 {
	n, ok := parser.ParseSize(value)
	if !ok {
		return nil
	}
	return &n
}

func parseRatio(value string) *float64 {
	pct, ok := strings.CutSuffix(value, "%")
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(pct, 64)
	if err != nil {
		return nil
	}
	ratio := f / 100
	return &ratio
}
