// Package ffprobe runs ffprobe with JSON output and decodes the result.
package ffprobe

import (
	"sort"
	"strconv"
	"time"
)

// ProbeResult is the JSON document printed by
// "ffprobe -print_format json -show_format -show_streams -show_programs".
type ProbeResult struct {
	Format   *Format   `json:"format,omitempty"`
	Streams  []Stream  `json:"streams,omitempty"`
	Programs []Program `json:"programs,omitempty"`
}

// Format describes the container.
type Format struct {
	Filename       string            `json:"filename"`
	NumStreams     int               `json:"nb_streams"`
	NumPrograms    int               `json:"nb_programs"`
	FormatName     string            `json:"format_name"`
	FormatLongName string            `json:"format_long_name"`
	StartTime      string            `json:"start_time"`
	Duration       string            `json:"duration"`
	Size           string            `json:"size"`
	BitRate        string            `json:"bit_rate"`
	ProbeScore     int               `json:"probe_score"`
	Tags           map[string]string `json:"tags,omitempty"`
}

// Stream describes one elementary stream.
type Stream struct {
	Index         int               `json:"index"`
	CodecName     string            `json:"codec_name"`
	CodecLongName string            `json:"codec_long_name"`
	CodecType     string            `json:"codec_type"`
	Profile       string            `json:"profile,omitempty"`
	Width         int               `json:"width,omitempty"`
	Height        int               `json:"height,omitempty"`
	PixFmt        string            `json:"pix_fmt,omitempty"`
	SampleRate    string            `json:"sample_rate,omitempty"`
	Channels      int               `json:"channels,omitempty"`
	ChannelLayout string            `json:"channel_layout,omitempty"`
	RFrameRate    string            `json:"r_frame_rate"`
	AvgFrameRate  string            `json:"avg_frame_rate"`
	TimeBase      string            `json:"time_base"`
	Duration      string            `json:"duration,omitempty"`
	BitRate       string            `json:"bit_rate,omitempty"`
	Tags          map[string]string `json:"tags,omitempty"`
}

// Program is an MPEG-TS program or an HLS variant.
type Program struct {
	ProgramID  int               `json:"program_id"`
	ProgramNum int               `json:"program_num"`
	NumStreams int               `json:"nb_streams"`
	Tags       map[string]string `json:"tags,omitempty"`
	Streams    []Stream          `json:"streams,omitempty"`
}

// ProgramInfo is a program with its advertised bitrate.
type ProgramInfo struct {
	ProgramID int
	Bitrate   int64
}

// DurationValue parses Format.Duration, which ffprobe prints in seconds.
func (f *Format) DurationValue() (time.Duration, bool) {
	if f == nil || f.Duration == "" || f.Duration == "N/A" {
		return 0, false
	}
	secs, err := strconv.ParseFloat(f.Duration, 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

// StreamsOfType returns the streams whose codec_type is codecType,
// e.g. "video" or "audio".
func (r *ProbeResult) StreamsOfType(codecType string) []Stream {
	var out []Stream
	for _, s := range r.Streams {
		if s.CodecType == codecType {
			out = append(out, s)
		}
	}
	return out
}

// Variants returns the programs sorted by ascending variant_bitrate.
func (r *ProbeResult) Variants() []ProgramInfo {
	programs := make([]ProgramInfo, 0, len(r.Programs))
	for _, p := range r.Programs {
		bitrate, _ := strconv.ParseInt(p.Tags["variant_bitrate"], 10, 64)
		programs = append(programs, ProgramInfo{
			ProgramID: p.ProgramID,
			Bitrate:   bitrate,
		})
	}
	sort.SliceStable(programs, func(i, j int) bool {
		return programs[i].Bitrate < programs[j].Bitrate
	})
	return programs
}

// SelectProgram returns the highest or lowest bitrate program.
func (r *ProbeResult) SelectProgram(highest bool) (ProgramInfo, bool) {
	programs := r.Variants()
	if len(programs) == 0 {
		return ProgramInfo{}, false
	}
	if highest {
		return programs[len(programs)-1], true
	}
	return programs[0], true
}
