// Package config provides configuration management for ffexec.
package config

import (
	"syscall"
	"time"

	"github.com/randomizedcoder/ffexec/internal/ffmpeg"
	"github.com/randomizedcoder/ffexec/internal/process"
)

// Shutdown modes.
const (
	ShutdownStdinQ  = "stdin-q"
	ShutdownSIGTERM = "sigterm"
	ShutdownSIGINT  = "sigint"
)

// Config holds all configuration options for one ffexec invocation.
type Config struct {
	// Tools
	FFmpegPath     string   `json:"ffmpeg_path"`
	FFprobePath    string   `json:"ffprobe_path"` // empty = next to ffmpeg, else PATH
	FFmpegLogLevel string   `json:"ffmpeg_log_level"`
	Overwrite      bool     `json:"overwrite"`
	WorkDir        string   `json:"work_dir"`
	Env            []string `json:"env"` // KEY=VALUE, added to the parent environment

	// Network inputs
	UserAgent         string        `json:"user_agent"`
	Timeout           time.Duration `json:"timeout"` // 0 = FFmpeg default
	Reconnect         bool          `json:"reconnect"`
	ReconnectDelayMax int           `json:"reconnect_delay_max"`
	ResolveIP         string        `json:"resolve_ip"`
	DangerousMode     bool          `json:"dangerous_mode"`
	NoCache           bool          `json:"no_cache"`
	Headers           []string      `json:"headers"`

	// Stopping
	ShutdownMode    string        `json:"shutdown_mode"` // stdin-q, sigterm, sigint
	GracefulTimeout time.Duration `json:"graceful_timeout"`
	RunTimeout      time.Duration `json:"run_timeout"` // 0 = no limit

	// Progress
	Progress       bool          `json:"progress"`
	ProgressSocket string        `json:"progress_socket"` // empty = temp dir
	StatsPeriod    time.Duration `json:"stats_period"`

	// Observability
	MetricsAddr string `json:"metrics_addr"` // empty = disabled
	DumpMetrics bool   `json:"dump_metrics"` // print metrics after the summary
	LogFormat   string `json:"log_format"`   // json, text
	LogLevel    string `json:"log_level"`
	Verbose     bool   `json:"verbose"`
	TUIEnabled  bool   `json:"tui_enabled"`
	EchoOutput  bool   `json:"echo_output"` // print info+ FFmpeg records to stdout

	// Diagnostics
	SkipPreflight bool `json:"skip_preflight"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Tools
		FFmpegPath:     "ffmpeg",
		FFmpegLogLevel: "info",

		// Network
		UserAgent:         "ffexec/1.0",
		Reconnect:         false,
		ReconnectDelayMax: 5,

		// Stopping
		ShutdownMode:    ShutdownStdinQ,
		GracefulTimeout: 10 * time.Second,

		// Progress
		Progress:    true,
		StatsPeriod: time.Second,

		// Observability
		LogFormat: "text",
		LogLevel:  "info",
	}
}

// ShutdownStrategy returns the graceful stop for ShutdownMode.
// Unknown modes fall back to SIGTERM; Validate rejects them first.
func (c *Config) ShutdownStrategy() process.ShutdownStrategy {
	switch c.ShutdownMode {
	case ShutdownStdinQ:
		return ffmpeg.Shutdown()
	case ShutdownSIGINT:
		return process.SignalShutdown{Signal: syscall.SIGINT}
	default:
		return process.SignalShutdown{Signal: syscall.SIGTERM}
	}
}

// NetworkOptions returns the options for network inputs, or nil when
// none of them differs from FFmpeg's defaults.
func (c *Config) NetworkOptions() *ffmpeg.NetworkOptions {
	n := &ffmpeg.NetworkOptions{
		UserAgent:         c.UserAgent,
		Timeout:           c.Timeout,
		Reconnect:         c.Reconnect,
		ReconnectDelayMax: c.ReconnectDelayMax,
		ResolveIP:         c.ResolveIP,
		NoCache:           c.NoCache,
		Headers:           c.Headers,
	}
	if n.UserAgent == "" && n.Timeout == 0 && !n.Reconnect && n.ResolveIP == "" && !n.NoCache && len(n.Headers) == 0 {
		return nil
	}
	return n
}
