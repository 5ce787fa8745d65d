package orchestrator

import (
	"strings"

	"github.com/randomizedcoder/ffexec/internal/config"
	"github.com/randomizedcoder/ffexec/internal/ffmpeg"
)

// networkSchemes are the input protocols that take NetworkOptions.
var networkSchemes = []string{"http://", "https://", "rtmp://", "rtmps://", "rtsp://", "srt://", "tcp://", "udp://"}

// BuildCommand turns the arguments after "--" into an FFmpeg builder.
// Every "-i URL" becomes an Input carrying the options in front of it,
// so network inputs get the configured protocol options. The remaining
// arguments (output options and outputs) follow the inputs unchanged.
func BuildCommand(cfg *config.Config, args []string) *ffmpeg.Builder {
	b := ffmpeg.NewBuilder(cfg.FFmpegPath)
	b.LogLevel = cfg.FFmpegLogLevel
	b.Overwrite = cfg.Overwrite
	b.StatsPeriod = cfg.StatsPeriod

	network := cfg.NetworkOptions()

	var pending []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-y":
			b.Overwrite = true
		case arg == "-n":
			b.Overwrite = false
		case arg == "-i" && i+1 < len(args):
			in := ffmpeg.Input{URL: args[i+1], Options: pending}
			if isNetworkURL(in.URL) {
				in.Network = network
			}
			b.AddInput(in)
			pending = nil
			i++
		default:
			pending = append(pending, arg)
		}
	}
	b.Args = pending
	return b
}

// FirstInput returns the URL of the first input, or "".
func FirstInput(b *ffmpeg.Builder) string {
	if len(b.Inputs) == 0 {
		return ""
	}
	return b.Inputs[0].URL
}

func isNetworkURL(u string) bool {
	lower := strings.ToLower(u)
	for _, scheme := range networkSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}
