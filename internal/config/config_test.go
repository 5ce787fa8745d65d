package config

import (
	"errors"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/randomizedcoder/ffexec/internal/process"
)

func TestListValue_String(t *testing.T) {
	testCases := []struct {
		input    listValue
		expected string
	}{
		{listValue{}, ""},
		{listValue{"X-Test: value"}, "X-Test: value"},
		{listValue{"X-Test: value", "X-Other: foo"}, "X-Test: value, X-Other: foo"},
	}

	for _, tc := range testCases {
		result := tc.input.String()
		if result != tc.expected {
			t.Errorf("String() = %q, want %q", result, tc.expected)
		}
	}
}

func TestListValue_Set(t *testing.T) {
	var l listValue

	if err := l.Set("A=1"); err != nil {
		t.Errorf("Set returned error: %v", err)
	}
	if err := l.Set("B=2"); err != nil {
		t.Errorf("Set returned error: %v", err)
	}
	if len(l) != 2 || l[1] != "B=2" {
		t.Errorf("After two Sets: %v", l)
	}
	if l.Type() != "stringList" {
		t.Errorf("Type() = %q", l.Type())
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"FFmpegPath", cfg.FFmpegPath, "ffmpeg"},
		{"FFprobePath", cfg.FFprobePath, ""},
		{"FFmpegLogLevel", cfg.FFmpegLogLevel, "info"},
		{"ShutdownMode", cfg.ShutdownMode, ShutdownStdinQ},
		{"GracefulTimeout", cfg.GracefulTimeout, 10 * time.Second},
		{"RunTimeout", cfg.RunTimeout, time.Duration(0)},
		{"Progress", cfg.Progress, true},
		{"StatsPeriod", cfg.StatsPeriod, time.Second},
		{"MetricsAddr", cfg.MetricsAddr, ""},
		{"LogFormat", cfg.LogFormat, "text"},
		{"LogLevel", cfg.LogLevel, "info"},
		{"TUIEnabled", cfg.TUIEnabled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Errorf("DefaultConfig() should be valid: %v", err)
	}
}

// =============================================================================
// Table-Driven Tests: Validate
// =============================================================================

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"empty ffmpeg path", func(c *Config) { c.FFmpegPath = "" }, "ffmpeg_path"},
		{"bad ffmpeg log level", func(c *Config) { c.FFmpegLogLevel = "loud" }, "ffmpeg_log_level"},
		{"env without equals", func(c *Config) { c.Env = []string{"FOO"} }, "env"},
		{"env with empty key", func(c *Config) { c.Env = []string{"=bar"} }, "env"},
		{"resolve without dangerous", func(c *Config) { c.ResolveIP = "192.168.1.1" }, "dangerous"},
		{"resolve is a URL", func(c *Config) { c.ResolveIP = "http://192.168.1.1"; c.DangerousMode = true }, "resolve"},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, "timeout"},
		{"negative reconnect delay", func(c *Config) { c.ReconnectDelayMax = -1 }, "reconnect_delay_max"},
		{"unknown shutdown mode", func(c *Config) { c.ShutdownMode = "sigkill" }, "shutdown_mode"},
		{"zero graceful timeout", func(c *Config) { c.GracefulTimeout = 0 }, "graceful_timeout"},
		{"negative run timeout", func(c *Config) { c.RunTimeout = -1 }, "run_timeout"},
		{"negative stats period", func(c *Config) { c.StatsPeriod = -1 }, "stats_period"},
		{"metrics without port", func(c *Config) { c.MetricsAddr = "localhost" }, "metrics_addr"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"bad log level", func(c *Config) { c.LogLevel = "chatty" }, "log_level"},
		{"tui and echo", func(c *Config) { c.TUIEnabled = true; c.EchoOutput = true }, "tui_enabled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatalf("expected an error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error should mention %s: %v", tt.field, err)
			}
		})
	}
}

func TestValidate_Valid(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"resolve with dangerous", func(c *Config) { c.ResolveIP = "192.168.1.1"; c.DangerousMode = true }},
		{"env", func(c *Config) { c.Env = []string{"A=1", "B=", "C=x=y"} }},
		{"sigint", func(c *Config) { c.ShutdownMode = ShutdownSIGINT }},
		{"metrics", func(c *Config) { c.MetricsAddr = "127.0.0.1:17091" }},
		{"uppercase levels", func(c *Config) { c.LogLevel = "DEBUG"; c.FFmpegLogLevel = "Verbose" }},
		{"json", func(c *Config) { c.LogFormat = "json" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := Validate(cfg); err != nil {
				t.Errorf("should be valid: %v", err)
			}
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FFmpegPath = ""
	cfg.ShutdownMode = "nope"
	cfg.LogFormat = "xml"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected errors")
	}

	var count int
	for _, e := range err.(interface{ Unwrap() []error }).Unwrap() {
		var ve ValidationError
		if errors.As(e, &ve) {
			count++
		}
	}
	if count != 3 {
		t.Errorf("got %d ValidationErrors, want 3: %v", count, err)
	}
}

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{Field: "test_field", Message: "test message"}
	if got := err.Error(); got != "test_field: test message" {
		t.Errorf("Error() = %q", got)
	}
}

// =============================================================================
// Table-Driven Tests: BindFlags
// =============================================================================

func TestBindFlags(t *testing.T) {
	cfg := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs, cfg)

	err := fs.Parse([]string{
		"--ffmpeg", "/opt/ffmpeg",
		"-e", "A=1", "--env", "B=2",
		"--header", "X-One: 1",
		"--shutdown", "sigterm",
		"--graceful-timeout", "3s",
		"-y",
		"-v",
		"--log-format", "json",
		"--progress=false",
		"--metrics", ":9000",
		"--dump-metrics",
		"--", "-i", "in.mp4", "out.mp4",
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"FFmpegPath", cfg.FFmpegPath, "/opt/ffmpeg"},
		{"Env", strings.Join(cfg.Env, ","), "A=1,B=2"},
		{"Headers", strings.Join(cfg.Headers, ","), "X-One: 1"},
		{"ShutdownMode", cfg.ShutdownMode, ShutdownSIGTERM},
		{"GracefulTimeout", cfg.GracefulTimeout, 3 * time.Second},
		{"Overwrite", cfg.Overwrite, true},
		{"Verbose", cfg.Verbose, true},
		{"LogFormat", cfg.LogFormat, "json"},
		{"Progress", cfg.Progress, false},
		{"MetricsAddr", cfg.MetricsAddr, ":9000"},
		{"DumpMetrics", cfg.DumpMetrics, true},
		{"Args", strings.Join(fs.Args(), " "), "-i in.mp4 out.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}
}

// =============================================================================
// Table-Driven Tests: derived values
// =============================================================================

func TestConfig_ShutdownStrategy(t *testing.T) {
	tests := []struct {
		mode string
		want string
	}{
		{ShutdownStdinQ, `stdin:"q"`},
		{ShutdownSIGTERM, process.SignalShutdown{Signal: syscall.SIGTERM}.Name()},
		{ShutdownSIGINT, process.SignalShutdown{Signal: syscall.SIGINT}.Name()},
		{"unknown", process.SignalShutdown{Signal: syscall.SIGTERM}.Name()},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.ShutdownMode = tt.mode
			if got := cfg.ShutdownStrategy().Name(); got != tt.want {
				t.Errorf("ShutdownStrategy().Name() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfig_NetworkOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UserAgent = ""
	if cfg.NetworkOptions() != nil {
		t.Error("NetworkOptions() should be nil when nothing is set")
	}

	cfg = DefaultConfig()
	cfg.Reconnect = true
	cfg.Headers = []string{"X-A: b"}
	n := cfg.NetworkOptions()
	if n == nil {
		t.Fatal("NetworkOptions() = nil")
	}
	if !n.Reconnect || n.UserAgent != "ffexec/1.0" || len(n.Headers) != 1 {
		t.Errorf("NetworkOptions() = %+v", n)
	}
}
