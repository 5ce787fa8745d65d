package config

import (
	"strings"

	"github.com/spf13/pflag"
)

// listValue is a repeatable string flag, e.g. --header A --header B.
type listValue []string

func (l *listValue) String() string {
	return strings.Join(*l, ", ")
}

func (l *listValue) Set(value string) error {
	*l = append(*l, value)
	return nil
}

func (l *listValue) Type() string {
	return "stringList"
}

// BindFlags registers every option on fs, writing into cfg. The current
// values of cfg are the defaults.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	BindLogFlags(fs, cfg)
	BindToolFlags(fs, cfg)
	BindRunFlags(fs, cfg)
}

// BindLogFlags registers the logging options.
func BindLogFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, `Log level: "trace", "verbose", "debug", "info", "warn", "error"`)
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose logging (at least debug)")
}

// BindToolFlags registers the options shared by every tool invocation.
func BindToolFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.FFmpegPath, "ffmpeg", cfg.FFmpegPath, "Path to FFmpeg binary")
	fs.StringVar(&cfg.FFprobePath, "ffprobe", cfg.FFprobePath, "Path to ffprobe binary (default: next to ffmpeg, else PATH)")
	fs.StringVar(&cfg.WorkDir, "workdir", cfg.WorkDir, "Working directory of the child process")
	fs.VarP((*listValue)(&cfg.Env), "env", "e", "Add KEY=VALUE to the child environment (can repeat)")

	// Network
	fs.StringVar(&cfg.UserAgent, "user-agent", cfg.UserAgent, "HTTP User-Agent header for network inputs")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Network read/write timeout (0 = FFmpeg default)")
	fs.BoolVar(&cfg.Reconnect, "reconnect", cfg.Reconnect, "Enable FFmpeg reconnect flags for network inputs")
	fs.IntVar(&cfg.ReconnectDelayMax, "reconnect-delay", cfg.ReconnectDelayMax, "Max reconnect delay in seconds")
	fs.StringVar(&cfg.ResolveIP, "resolve", cfg.ResolveIP, "Connect to this IP (requires --dangerous)")
	fs.BoolVar(&cfg.DangerousMode, "dangerous", cfg.DangerousMode, "Required for --resolve (disables TLS verification)")
	fs.BoolVar(&cfg.NoCache, "no-cache", cfg.NoCache, "Add no-cache headers (bypass CDN cache)")
	fs.Var((*listValue)(&cfg.Headers), "header", "Add custom HTTP header (can repeat)")
}

// BindRunFlags registers the options of "ffexec run".
func BindRunFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.FFmpegLogLevel, "loglevel", cfg.FFmpegLogLevel, "FFmpeg log level")
	fs.BoolVarP(&cfg.Overwrite, "overwrite", "y", cfg.Overwrite, "Overwrite existing outputs")

	fs.StringVar(&cfg.ShutdownMode, "shutdown", cfg.ShutdownMode, `Graceful stop: "stdin-q", "sigterm" or "sigint"`)
	fs.DurationVar(&cfg.GracefulTimeout, "graceful-timeout", cfg.GracefulTimeout, "Time allowed for a graceful stop before killing")
	fs.DurationVar(&cfg.RunTimeout, "run-timeout", cfg.RunTimeout, "Stop FFmpeg gracefully after this long (0 = no limit)")

	fs.BoolVar(&cfg.Progress, "progress", cfg.Progress, "Read FFmpeg -progress output over a Unix socket")
	fs.StringVar(&cfg.ProgressSocket, "progress-socket", cfg.ProgressSocket, "Path of the progress socket (default: temp dir)")
	fs.DurationVar(&cfg.StatsPeriod, "stats-period", cfg.StatsPeriod, "FFmpeg -stats_period")

	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics address, e.g. 127.0.0.1:17091 (empty = disabled)")
	fs.BoolVar(&cfg.DumpMetrics, "dump-metrics", cfg.DumpMetrics, "Print the final metrics in Prometheus text format")
	fs.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Show a live terminal dashboard")
	fs.BoolVar(&cfg.EchoOutput, "echo", cfg.EchoOutput, "Print FFmpeg messages of level info and above to stdout")
	fs.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")
}
