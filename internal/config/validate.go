package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var (
	validLogLevels = map[string]bool{
		"trace": true, "verbose": true, "debug": true, "info": true,
		"warn": true, "warning": true, "error": true,
	}
	validFFmpegLogLevels = map[string]bool{
		"quiet": true, "panic": true, "fatal": true, "error": true, "warning": true,
		"info": true, "verbose": true, "debug": true, "trace": true,
	}
	validShutdownModes = map[string]bool{
		ShutdownStdinQ: true, ShutdownSIGTERM: true, ShutdownSIGINT: true,
	}
)

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an errors.Join of ValidationErrors.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.FFmpegPath == "" {
		errs = append(errs, ValidationError{
			Field:   "ffmpeg_path",
			Message: "must not be empty",
		})
	}

	if !validFFmpegLogLevels[strings.ToLower(cfg.FFmpegLogLevel)] {
		errs = append(errs, ValidationError{
			Field:   "ffmpeg_log_level",
			Message: fmt.Sprintf("unknown FFmpeg log level %q", cfg.FFmpegLogLevel),
		})
	}

	for _, kv := range cfg.Env {
		if err := validateEnv(kv); err != nil {
			errs = append(errs, ValidationError{
				Field:   "env",
				Message: err.Error(),
			})
		}
	}

	// -resolve requires --dangerous
	if cfg.ResolveIP != "" && !cfg.DangerousMode {
		errs = append(errs, ValidationError{
			Field:   "resolve",
			Message: "--resolve requires --dangerous flag (disables TLS verification)",
		})
	}
	if cfg.ResolveIP != "" {
		if err := validateIP(cfg.ResolveIP); err != nil {
			errs = append(errs, ValidationError{
				Field:   "resolve",
				Message: err.Error(),
			})
		}
	}

	if cfg.Timeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "timeout",
			Message: "must not be negative",
		})
	}
	if cfg.ReconnectDelayMax < 0 {
		errs = append(errs, ValidationError{
			Field:   "reconnect_delay_max",
			Message: "must not be negative",
		})
	}

	if !validShutdownModes[cfg.ShutdownMode] {
		errs = append(errs, ValidationError{
			Field:   "shutdown_mode",
			Message: fmt.Sprintf("must be one of: stdin-q, sigterm, sigint (got %q)", cfg.ShutdownMode),
		})
	}
	if cfg.GracefulTimeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "graceful_timeout",
			Message: "must be positive",
		})
	}
	if cfg.RunTimeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "run_timeout",
			Message: "must not be negative",
		})
	}
	if cfg.StatsPeriod < 0 {
		errs = append(errs, ValidationError{
			Field:   "stats_period",
			Message: "must not be negative",
		})
	}

	if cfg.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(cfg.MetricsAddr); err != nil {
			errs = append(errs, ValidationError{
				Field:   "metrics_addr",
				Message: fmt.Sprintf("must be host:port (%v)", err),
			})
		}
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}
	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		errs = append(errs, ValidationError{
			Field:   "log_level",
			Message: fmt.Sprintf("unknown log level %q", cfg.LogLevel),
		})
	}

	if cfg.TUIEnabled && cfg.EchoOutput {
		errs = append(errs, ValidationError{
			Field:   "tui_enabled",
			Message: "--tui and --echo both write to the terminal; pick one",
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// validateEnv checks a KEY=VALUE pair.
func validateEnv(kv string) error {
	key, _, ok := strings.Cut(kv, "=")
	if !ok {
		return fmt.Errorf("%q is not KEY=VALUE", kv)
	}
	if key == "" {
		return fmt.Errorf("%q has an empty key", kv)
	}
	return nil
}

// validateIP checks that ip is an address or a host name, not a URL.
func validateIP(ip string) error {
	if strings.Contains(ip, "://") {
		return errors.New("must be an IP address, not a URL")
	}
	if ip == "" {
		return errors.New("must not be empty")
	}
	return nil
}
