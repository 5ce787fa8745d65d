// Package orchestrator runs one FFmpeg execution for the command line:
// preflight checks, metrics, the progress socket, signal handling, the
// live dashboard and the exit summary.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/ffexec/internal/config"
	"github.com/randomizedcoder/ffexec/internal/ffmpeg"
	"github.com/randomizedcoder/ffexec/internal/ffprobe"
	"github.com/randomizedcoder/ffexec/internal/future"
	"github.com/randomizedcoder/ffexec/internal/logging"
	"github.com/randomizedcoder/ffexec/internal/metrics"
	"github.com/randomizedcoder/ffexec/internal/parser"
	"github.com/randomizedcoder/ffexec/internal/preflight"
	"github.com/randomizedcoder/ffexec/internal/process"
	"github.com/randomizedcoder/ffexec/internal/stats"
	"github.com/randomizedcoder/ffexec/internal/supervisor"
	"github.com/randomizedcoder/ffexec/internal/tui"
	"github.com/randomizedcoder/ffexec/internal/version"
)

const (
	// statsInterval is how often record gap percentiles are published.
	statsInterval = time.Second

	// probeTimeout bounds the ffprobe run that finds the input duration.
	probeTimeout = 15 * time.Second

	// shutdownTimeout bounds the metrics server shutdown.
	shutdownTimeout = 5 * time.Second
)

// Report is what Run observed of the execution.
type Report struct {
	Kind process.OutcomeKind

	// ExitCode is -1 when the process never started.
	ExitCode int

	Result   ffmpeg.Result
	Err      error
	Duration time.Duration
}

// Options replace parts of the environment, mostly for tests.
type Options struct {
	// Out receives the preflight results, echoed output and the exit
	// summary. Defaults to os.Stdout.
	Out io.Writer

	// Registry holds the metrics. Defaults to a new registry.
	Registry *prometheus.Registry

	// Signals triggers the stop sequence. Defaults to SIGINT and SIGTERM.
	Signals <-chan os.Signal
}

// Orchestrator coordinates all components of one execution.
type Orchestrator struct {
	config *config.Config
	logger *slog.Logger
	out    io.Writer

	signals <-chan os.Signal

	builder       *ffmpeg.Builder
	registry      *prometheus.Registry
	metrics       *metrics.Collector
	metricsServer *metrics.Server
	recorder      *stats.Recorder
	tail          *logging.Tail
	supervisor    *supervisor.Supervisor
	program       *tea.Program

	started   atomic.Bool
	startTime time.Time
}

// New creates an Orchestrator that runs FFmpeg with args, the arguments
// given after "--".
func New(cfg *config.Config, logger *slog.Logger, args []string, opts Options) *Orchestrator {
	if logger == nil {
		logger = logging.Discard()
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	o := &Orchestrator{
		config:   cfg,
		logger:   logger,
		out:      opts.Out,
		signals:  opts.Signals,
		builder:  BuildCommand(cfg, args),
		registry: opts.Registry,
		recorder: stats.NewRecorder(),
		tail:     logging.NewTail(logging.DefaultTailSize),
	}
	if cfg.MetricsAddr != "" {
		o.metricsServer = metrics.NewServer(cfg.MetricsAddr, o.registry, logger)
	}
	return o
}

// Run executes FFmpeg and blocks until it exited. The error is set when
// the execution could not be set up; the outcome of the execution itself
// is in the Report.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	o.startTime = time.Now()

	// Run preflight checks
	if !o.config.SkipPreflight {
		result := preflight.RunAll(ctx, preflight.Options{
			FFmpegPath:     o.config.FFmpegPath,
			FFprobePath:    o.config.FFprobePath,
			ProgressSocket: o.config.Progress,
		})
		preflight.PrintResults(o.out, result)
		if !result.Passed {
			return nil, errors.New("preflight checks failed (use --skip-preflight to override)")
		}
	}

	var helpers []supervisor.Helper
	var statusProgress ffmpeg.ProgressListener = ffmpeg.ProgressListenerFunc(o.onProgress)
	if o.config.Progress {
		ps, err := ffmpeg.NewProgressSocket(o.config.ProgressSocket, ffmpeg.ProgressListenerFunc(o.onProgress), o.logger)
		if err != nil {
			return nil, fmt.Errorf("creating progress socket: %w", err)
		}
		defer ps.Close()
		ps.Attach(o.builder)
		helpers = append(helpers, ps)
		// the socket reports the same numbers as the status line
		statusProgress = nil
	}

	cmd, err := o.builder.Command(ctx)
	if err != nil {
		return nil, fmt.Errorf("building ffmpeg command: %w", err)
	}

	o.metrics = metrics.NewCollectorWithRegistry(metrics.CollectorConfig{
		Tool:    "ffmpeg",
		Version: o.toolVersion(ctx),
	}, o.registry)
	o.supervisor = supervisor.New(supervisor.Config{
		Logger:    o.logger,
		Env:       o.config.Env,
		Dir:       o.config.WorkDir,
		Shutdown:  o.config.ShutdownStrategy(),
		Callbacks: o.callbacks(),
	})

	// Start metrics server
	if o.metricsServer != nil {
		if err := o.metricsServer.Start(); err != nil {
			return nil, fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := o.metricsServer.Shutdown(shutdownCtx); err != nil {
				o.logger.Warn("metrics_server_shutdown_error", "error", err)
			}
		}()
	}

	// Setup signal handling
	if o.signals == nil {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigCh)
		o.signals = sigCh
	}

	var inputDuration time.Duration
	if o.config.TUIEnabled {
		inputDuration = o.probeDuration(ctx)
	}

	handler := ffmpeg.NewHandler(ffmpeg.HandlerConfig{
		// stdout and stderr share the handler's accumulator
		Logger:           logging.ToolLogger(o.logger, "ffmpeg"),
		OutputListener:   o.echoListener(),
		ProgressListener: statusProgress,
		Hook:             o.onRecord,
	})

	o.logger.Info("execution_starting",
		"command", cmd.String(),
		"shutdown", o.config.ShutdownMode,
		"progress_socket", o.config.Progress,
	)
	f := supervisor.Execute(ctx, o.supervisor, cmd, handler, helpers...)

	go o.watch(f)
	go o.publishStats(f.Done())

	if o.config.TUIEnabled {
		o.runDashboard(f, inputDuration)
	}

	outcome := f.Wait()
	// a cancelled future settles before the process is released
	<-f.Handle().Done()

	snap := o.recorder.Snapshot()
	o.metrics.SetRecordGapPercentiles(snap.GapP50, snap.GapP95, snap.GapP99)

	report := &Report{
		Kind:     outcome.Kind,
		ExitCode: outcome.ExitCode,
		Result:   outcome.Value,
		Err:      outcome.Err,
		Duration: time.Since(o.startTime),
	}
	if !o.started.Load() {
		report.ExitCode = -1
	}

	o.logger.Info("execution_finished",
		"exec_tag", f.Handle().ExecTag(),
		"outcome", report.Kind.String(),
		"exit_code", report.ExitCode,
		"duration", report.Duration.String(),
	)

	fmt.Fprint(o.out, stats.FormatExitSummary(snap, stats.SummaryConfig{
		Command:        cmd.String(),
		ExecTag:        f.Handle().ExecTag(),
		Outcome:        report.Kind,
		ExitCode:       report.ExitCode,
		Duration:       report.Duration,
		Err:            report.Err,
		ErrorLog:       handler.ErrorLog(),
		Output:         outputSizes(report.Result),
		MuxingOverhead: report.Result.MuxingOverheadRatio,
		MetricsAddr:    o.config.MetricsAddr,
	}))

	if o.config.DumpMetrics {
		if err := metrics.Dump(o.out, o.registry); err != nil {
			o.logger.Warn("metrics_dump_failed", "error", err)
		}
	}

	return report, nil
}

// watch stops the process on the first signal or when the run timeout
// elapses, and kills it on a second signal.
func (o *Orchestrator) watch(f *future.Future[ffmpeg.Result]) {
	var runTimeout <-chan time.Time
	if o.config.RunTimeout > 0 {
		timer := time.NewTimer(o.config.RunTimeout)
		defer timer.Stop()
		runTimeout = timer.C
	}

	h := f.Handle()
	stopping := false
	for {
		select {
		case <-f.Done():
			return
		case sig := <-o.signals:
			if stopping {
				o.logger.Warn("received_second_signal", "signal", sig.String())
				h.StopForcefully()
				continue
			}
			o.logger.Info("received_signal", "signal", sig.String())
			stopping = true
			go o.stop(f)
		case <-runTimeout:
			o.logger.Info("run_timeout_elapsed", "timeout", o.config.RunTimeout.String())
			if !stopping {
				stopping = true
				go o.stop(f)
			}
		}
	}
}

// stop asks FFmpeg to finish and kills it after the graceful timeout.
// Before the spawn there is nothing to stop, so the future is cancelled.
func (o *Orchestrator) stop(f *future.Future[ffmpeg.Result]) {
	h := f.Handle()
	if h.State() == process.StateNotStarted {
		f.Cancel(true)
		return
	}
	if err := supervisor.StopWithin(h, o.config.GracefulTimeout, o.logger); err != nil {
		o.logger.Warn("graceful_stop_failed", "exec_tag", h.ExecTag(), "error", err)
	}
}

// publishStats copies the record gap percentiles to the metrics while the
// execution runs.
func (o *Orchestrator) publishStats(done <-chan struct{}) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			snap := o.recorder.Snapshot()
			o.metrics.SetRecordGapPercentiles(snap.GapP50, snap.GapP95, snap.GapP99)
		}
	}
}

// runDashboard shows the TUI until the user closes it after the exit.
func (o *Orchestrator) runDashboard(f *future.Future[ffmpeg.Result], inputDuration time.Duration) {
	model := tui.New(tui.Config{
		Command:       o.builder.CommandString(),
		MetricsAddr:   o.config.MetricsAddr,
		InputDuration: inputDuration,
		StatsSource:   o.recorder,
		Tail:          o.tail,
		Current:       o.supervisor.Current,
	})
	o.program = tea.NewProgram(model, tea.WithAltScreen())

	go func() {
		outcome := f.Wait()
		tui.SendExit(o.program, tui.ExitMsg{
			Kind:     outcome.Kind,
			ExitCode: outcome.ExitCode,
			Err:      outcome.Err,
		})
	}()

	if _, err := o.program.Run(); err != nil {
		o.logger.Warn("tui_failed", "error", err)
	}
}

// callbacks feeds the collector and tracks whether the process started.
func (o *Orchestrator) callbacks() supervisor.Callbacks {
	cb := o.metrics.Callbacks()

	recordStart := cb.OnStart
	cb.OnStart = func(execTag string, pid int) {
		recordStart(execTag, pid)
		o.started.Store(true)
		if o.metricsServer != nil {
			o.metricsServer.SetReady(true)
		}
	}

	recordExit := cb.OnExit
	cb.OnExit = func(execTag string, exitCode int, uptime time.Duration) {
		recordExit(execTag, exitCode, uptime)
		if o.metricsServer != nil {
			o.metricsServer.SetReady(false)
		}
	}
	return cb
}

// onRecord observes every finalized FFmpeg log record.
func (o *Orchestrator) onRecord(rec process.LogRecord) {
	o.metrics.RecordLog(rec)
	o.recorder.ObserveRecord(rec)
	o.tail.Add(rec.Severity.Level(), "ffmpeg", rec.Message)
}

// onProgress observes progress from the status line or the socket.
func (o *Orchestrator) onProgress(u parser.ProgressUpdate, _ process.Controller) {
	o.recorder.ObserveProgress(u)
	o.metrics.RecordProgress(u)
}

// echoListener prints FFmpeg's messages when --echo is set.
func (o *Orchestrator) echoListener() parser.OutputListener {
	if !o.config.EchoOutput {
		return nil
	}
	return parser.OutputListenerFunc(func(message string, _ process.Controller) {
		fmt.Fprintln(o.out, message)
	})
}

// toolVersion returns the FFmpeg version for the info metric. It is only
// queried when metrics are served.
func (o *Orchestrator) toolVersion(ctx context.Context) string {
	if o.metricsServer == nil {
		return ""
	}
	info, err := version.Query(ctx, supervisor.New(supervisor.Config{Logger: o.logger}), o.config.FFmpegPath)
	if err != nil {
		o.logger.Debug("version_query_failed", "error", err)
		return ""
	}
	return info.String()
}

// probeDuration asks ffprobe for the duration of the first input, which
// turns the dashboard's output time into a progress bar. Zero when
// unknown.
func (o *Orchestrator) probeDuration(ctx context.Context) time.Duration {
	input := FirstInput(o.builder)
	if input == "" {
		return 0
	}
	path := o.config.FFprobePath
	if path == "" {
		path = ffprobe.FindBinary(o.config.FFmpegPath)
	}
	if !ffprobe.Available(path) {
		return 0
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	sup := supervisor.New(supervisor.Config{Logger: o.logger, Env: o.config.Env, Dir: o.config.WorkDir})
	result, err := ffprobe.Probe(ctx, sup, ffprobe.NewBuilder(path, input), o.logger)
	if err != nil {
		o.logger.Warn("input_probe_failed", "input", input, "error", err)
		return 0
	}
	if result == nil {
		return 0
	}
	d, _ := result.Format.DurationValue()
	return d
}

// outputSizes lists the stream sizes FFmpeg reported.
func outputSizes(r ffmpeg.Result) []stats.OutputSize {
	var sizes []stats.OutputSize
	for _, s := range []struct {
		name  string
		bytes *int64
	}{
		{"video", r.VideoSize},
		{"audio", r.AudioSize},
		{"subtitle", r.SubtitleSize},
		{"other streams", r.OtherStreamsSize},
		{"global headers", r.GlobalHeadersSize},
	} {
		if s.bytes != nil {
			sizes = append(sizes, stats.OutputSize{Name: s.name, Bytes: *s.bytes})
		}
	}
	return sizes
}

// =============================================================================
// Accessors
// =============================================================================

// Builder returns the FFmpeg command builder.
func (o *Orchestrator) Builder() *ffmpeg.Builder {
	return o.builder
}

// Metrics returns the metrics collector. Nil before Run.
func (o *Orchestrator) Metrics() *metrics.Collector {
	return o.metrics
}

// Registry returns the registry holding the metrics.
func (o *Orchestrator) Registry() *prometheus.Registry {
	return o.registry
}

// Recorder returns the statistics recorder.
func (o *Orchestrator) Recorder() *stats.Recorder {
	return o.recorder
}

// Tail returns the recent FFmpeg log records.
func (o *Orchestrator) Tail() *logging.Tail {
	return o.tail
}
