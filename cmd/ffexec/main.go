// Package main provides the ffexec CLI entry point.
//
// ffexec runs FFmpeg under supervision: it turns FFmpeg's leveled log into
// records, follows its progress, stops it cleanly on a signal and prints a
// summary when it exits.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/randomizedcoder/ffexec/internal/config"
	"github.com/randomizedcoder/ffexec/internal/ffprobe"
	"github.com/randomizedcoder/ffexec/internal/logging"
	"github.com/randomizedcoder/ffexec/internal/orchestrator"
	"github.com/randomizedcoder/ffexec/internal/process"
	"github.com/randomizedcoder/ffexec/internal/supervisor"
	ffversion "github.com/randomizedcoder/ffexec/internal/version"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/ffexec
var version = "dev"

var (
	cfg    = config.DefaultConfig()
	logger = logging.Discard()

	// exitCode is FFmpeg's exit code once "run" finished
	exitCode int
)

func main() {
	os.Exit(run())
}

func run() int {
	config.BindLogFlags(rootCmd.PersistentFlags(), cfg)
	config.BindToolFlags(rootCmd.PersistentFlags(), cfg)
	config.BindRunFlags(runCmd.Flags(), cfg)
	config.BindRunFlags(printCmdCmd.Flags(), cfg)

	// never print messages
	rootCmd.SilenceErrors = true

	// validate the configuration, setup logging
	rootCmd.PersistentPreRunE = initFFexec

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(printCmdCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return exitCode
}

var rootCmd = &cobra.Command{
	Use:          "ffexec",
	Short:        "Run FFmpeg under supervision",
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run [flags] -- <ffmpeg arguments>",
	Short: "run FFmpeg with the given arguments and report its outcome",
	Example: `  ffexec run -- -i in.mp4 -c:v libx264 out.mp4
  ffexec run --tui --metrics 127.0.0.1:17091 -- -i https://example.com/live.m3u8 -c copy out.ts`,
	Args: cobra.MinimumNArgs(1),
	RunE: doRun,
}

var probeCmd = &cobra.Command{
	Use:   "probe <input>",
	Short: "probe an input with ffprobe and print the result as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  doProbe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print the version of ffexec and of FFmpeg",
	RunE:  doVersion,
}

var printCmdCmd = &cobra.Command{
	Use:   "print-cmd [flags] -- <ffmpeg arguments>",
	Short: "print the FFmpeg command line that run would execute",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		b := orchestrator.BuildCommand(cfg, args)
		fmt.Println("# FFmpeg command that would be run:")
		fmt.Println()
		fmt.Println(b.CommandString())
		if cfg.Progress {
			fmt.Println()
			fmt.Println("# run adds -progress unix://<socket> when --progress is set")
		}
	},
}

func initFFexec(cmd *cobra.Command, _ []string) error {
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// The dashboard owns the terminal, so logs are dropped.
	if cfg.TUIEnabled {
		logger = logging.NewLoggerWithWriter(io.Discard, "json", "info")
	} else {
		logger = logging.NewLogger(cfg.LogFormat, cfg.LogLevel, cfg.Verbose)
	}
	logging.SetDefault(logger)
	return nil
}

func doRun(cmd *cobra.Command, args []string) error {
	logger.Info("starting",
		"version", version,
		"ffmpeg", cfg.FFmpegPath,
		"metrics_addr", cfg.MetricsAddr,
		"tui", cfg.TUIEnabled,
	)

	orch := orchestrator.New(cfg, logger, args, orchestrator.Options{})
	report, err := orch.Run(cmd.Context())
	if err != nil {
		return err
	}
	exitCode = processExitCode(report)
	return nil
}

// processExitCode passes FFmpeg's exit code through. Failures of ffexec
// itself exit with 1.
func processExitCode(r *orchestrator.Report) int {
	switch r.Kind {
	case process.OutcomeSuccess:
		return 0
	case process.OutcomeAbnormalExit:
		return r.ExitCode
	default:
		return 1
	}
}

func doProbe(cmd *cobra.Command, args []string) error {
	path := cfg.FFprobePath
	if path == "" {
		path = ffprobe.FindBinary(cfg.FFmpegPath)
	}

	b := ffprobe.NewBuilder(path, args[0])
	b.ShowPrograms = true
	b.UserAgent = cfg.UserAgent

	sup := supervisor.New(supervisor.Config{Logger: logger, Env: cfg.Env, Dir: cfg.WorkDir})
	result, err := ffprobe.Probe(cmd.Context(), sup, b, logger)
	if err != nil {
		return fmt.Errorf("probing %s: %w", args[0], err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func doVersion(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ffexec: %s\n", version)
	if info, ok := debug.ReadBuildInfo(); ok {
		fmt.Fprintf(out, "go:     %s\n", info.GoVersion)
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				fmt.Fprintf(out, "commit: %s\n", s.Value)
			}
		}
	}

	sup := supervisor.New(supervisor.Config{Logger: logger})
	info, err := ffversion.Query(cmd.Context(), sup, cfg.FFmpegPath)
	if err != nil {
		logger.Debug("version_query_failed", slog.String("ffmpeg", cfg.FFmpegPath), slog.Any("error", err))
		fmt.Fprintf(out, "ffmpeg: unavailable (%v)\n", err)
		return nil
	}
	fmt.Fprintf(out, "ffmpeg: %s (%s)\n", info.String(), cfg.FFmpegPath)
	fmt.Fprintf(out, "        %d enabled, %d disabled configure flags\n", len(info.Enabled), len(info.Disabled))
	return nil
}
