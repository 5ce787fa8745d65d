// Package ffmpeg builds FFmpeg command lines and interprets FFmpeg output:
// the leveled log on stderr, the status line, the closing size summary and
// the -progress stream.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/randomizedcoder/ffexec/internal/process"
)

// ErrNoInput is returned when a Builder has neither inputs nor raw
// arguments.
var ErrNoInput = errors.New("ffmpeg: no input configured")

// NetworkOptions are protocol options placed in front of a network input.
type NetworkOptions struct {
	// UserAgent is the HTTP User-Agent header.
	UserAgent string

	// Timeout is the network read/write timeout. Zero leaves FFmpeg's
	// default.
	Timeout time.Duration

	// Reconnect enables FFmpeg's reconnection flags.
	Reconnect bool

	// ReconnectDelayMax is the maximum reconnection delay in seconds.
	ReconnectDelayMax int

	// ResolveIP connects to this IP instead of resolving the host. The
	// original host is sent in the Host header and TLS verification is
	// turned off.
	ResolveIP string

	// NoCache adds cache-busting headers.
	NoCache bool

	// Headers are additional "Name: value" HTTP headers.
	Headers []string
}

// Input is one "-i" argument with the options that precede it.
type Input struct {
	URL     string
	Options []string
	Network *NetworkOptions
}

// Output is one output URL with the options that precede it.
type Output struct {
	URL     string
	Options []string
}

// Builder assembles an FFmpeg command line in the order FFmpeg expects:
// global logging flags, inputs, global options, outputs.
type Builder struct {
	// BinaryPath is the path to the FFmpeg binary.
	BinaryPath string

	// LogLevel is the FFmpeg log level (quiet, panic, fatal, error,
	// warning, info, verbose, debug, trace). Empty leaves FFmpeg's default.
	// The "level" flag is always set so every line carries its severity.
	LogLevel string

	// HideBanner suppresses the build banner.
	HideBanner bool

	// Overwrite selects -y; otherwise -n makes FFmpeg refuse to replace
	// an existing output.
	Overwrite bool

	// ProgressURL is passed to -progress. ProgressSocket sets it.
	ProgressURL string

	// StatsPeriod sets -stats_period when non-zero.
	StatsPeriod time.Duration

	Inputs  []Input
	Outputs []Output

	// Args are placed between the inputs and the outputs, or make up the
	// whole tail of the command line when no inputs are configured.
	Args []string
}

// NewBuilder returns a Builder with the defaults ffexec uses.
func NewBuilder(binaryPath string) *Builder {
	if binaryPath == "" {
		binaryPath = "ffmpeg"
	}
	return &Builder{
		BinaryPath: binaryPath,
		LogLevel:   "info",
		HideBanner: true,
	}
}

// AddInput appends an input and returns the builder.
func (b *Builder) AddInput(in Input) *Builder {
	b.Inputs = append(b.Inputs, in)
	return b
}

// AddOutput appends an output and returns the builder.
func (b *Builder) AddOutput(out Output) *Builder {
	b.Outputs = append(b.Outputs, out)
	return b
}

// Name implements process.Builder.
func (b *Builder) Name() string {
	return "ffmpeg"
}

// Command implements process.Builder.
func (b *Builder) Command(_ context.Context) (process.Command, error) {
	if len(b.Inputs) == 0 && len(b.Args) == 0 {
		return process.Command{}, ErrNoInput
	}
	return process.NewCommand(b.BinaryPath, b.buildArgs()...)
}

// CommandString returns the command that would be executed.
func (b *Builder) CommandString() string {
	cmd, err := b.Command(context.Background())
	if err != nil {
		return b.BinaryPath + " <" + err.Error() + ">"
	}
	return cmd.String()
}

func (b *Builder) buildArgs() []string {
	logLevel := "level"
	if b.LogLevel != "" {
		logLevel += "+" + strings.ToLower(b.LogLevel)
	}
	args := []string{"-loglevel", logLevel}

	if b.HideBanner {
		args = append(args, "-hide_banner")
	}

	for _, in := range b.Inputs {
		args = append(args, in.buildArgs()...)
	}

	if b.Overwrite {
		args = append(args, "-y")
	} else {
		args = append(args, "-n")
	}

	if b.ProgressURL != "" {
		args = append(args, "-progress", b.ProgressURL)
	}
	if b.StatsPeriod > 0 {
		args = append(args, "-stats_period", strconv.FormatFloat(b.StatsPeriod.Seconds(), 'f', -1, 64))
	}

	args = append(args, b.Args...)

	for _, out := range b.Outputs {
		args = append(args, out.Options...)
		args = append(args, out.URL)
	}
	return args
}

func (in Input) buildArgs() []string {
	var args []string
	if in.Network != nil {
		args = append(args, in.Network.buildArgs(in.URL)...)
	}
	args = append(args, in.Options...)
	return append(args, "-i", in.Network.effectiveURL(in.URL))
}

func (n *NetworkOptions) buildArgs(rawURL string) []string {
	var args []string

	// Must come before the input options it qualifies.
	if n.ResolveIP != "" {
		args = append(args, "-tls_verify", "0")
	}

	if n.Reconnect {
		args = append(args,
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_on_network_error", "1",
			"-reconnect_delay_max", strconv.Itoa(n.ReconnectDelayMax),
		)
	}

	// microseconds
	if n.Timeout > 0 {
		args = append(args, "-rw_timeout", strconv.FormatInt(n.Timeout.Microseconds(), 10))
	}

	if n.UserAgent != "" {
		args = append(args, "-user_agent", n.UserAgent)
	}

	if headers := n.buildHeaders(rawURL); len(headers) > 0 {
		args = append(args, "-headers", strings.Join(headers, "\r\n")+"\r\n")
	}
	return args
}

func (n *NetworkOptions) buildHeaders(rawURL string) []string {
	var headers []string

	if n.ResolveIP != "" {
		if u, err := url.Parse(rawURL); err == nil {
			headers = append(headers, fmt.Sprintf("Host: %s", u.Host))
		}
	}

	if n.NoCache {
		headers = append(headers,
			"Cache-Control: no-cache, no-store, must-revalidate",
			"Pragma: no-cache",
		)
	}

	return append(headers, n.Headers...)
}

// effectiveURL swaps the host for ResolveIP, keeping the port.
func (n *NetworkOptions) effectiveURL(rawURL string) string {
	if n == nil || n.ResolveIP == "" {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if port := u.Port(); port != "" {
		u.Host = n.ResolveIP + ":" + port
	} else {
		u.Host = n.ResolveIP
	}
	return u.String()
}

// Shutdown returns the graceful stop FFmpeg understands: "q" on stdin.
func Shutdown() process.ShutdownStrategy {
	return process.StdinPayload("q")
}

var _ process.Builder = (*Builder)(nil)
