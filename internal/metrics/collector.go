// Package metrics provides Prometheus metrics for ffexec.
//
// One Collector observes the executions of one Supervisor: process
// lifecycle, outcomes, output lines, log records by severity and the
// FFmpeg progress reported while the process runs.
package metrics

import (
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/randomizedcoder/ffexec/internal/parser"
	"github.com/randomizedcoder/ffexec/internal/process"
	"github.com/randomizedcoder/ffexec/internal/supervisor"
)

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	// Tool names the child, e.g. "ffmpeg".
	Tool string

	// Version of the tool binary, if known.
	Version string
}

// Collector manages the Prometheus metrics of ffexec executions.
type Collector struct {
	// --- Overview ---
	info              *prometheus.GaugeVec
	executionsStarted prometheus.Counter
	executionsActive  prometheus.Gauge

	// --- Outcomes ---
	outcomes *prometheus.CounterVec
	exits    *prometheus.CounterVec
	duration prometheus.Histogram

	// --- Output ---
	lines        *prometheus.CounterVec
	channelBytes *prometheus.CounterVec
	records      *prometheus.CounterVec

	// --- Progress ---
	progressUpdates prometheus.Counter
	frame           prometheus.Gauge
	fps             prometheus.Gauge
	speed           prometheus.Gauge
	outputBytes     prometheus.Gauge
	outTimeSeconds  prometheus.Gauge

	// --- Record latency (pre-calculated percentiles) ---
	recordGapP50 prometheus.Gauge
	recordGapP95 prometheus.Gauge
	recordGapP99 prometheus.Gauge

	mu          sync.Mutex
	startTime   time.Time
	totalStarts int64
	exitCodes   map[int]int64
}

// NewCollector creates a collector registered with the default registry.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector with a custom registry.
// Useful for testing.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	c := &Collector{
		info: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ffexec_info",
				Help: "Information about the supervised tool (value always 1)",
			},
			[]string{"tool", "version"},
		),
		executionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ffexec_executions_started_total",
			Help: "Total processes spawned",
		}),
		executionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ffexec_executions_active",
			Help: "Processes currently running",
		}),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ffexec_outcomes_total",
				Help: "Terminal outcomes of executions by kind",
			},
			[]string{"kind"}, // "success", "abnormal_exit", "internal_failure"
		),
		exits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ffexec_exits_total",
				Help: "Process exits by exit code category",
			},
			[]string{"category"}, // "success", "error", "signal"
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ffexec_execution_duration_seconds",
			Help:    "Wall time from spawn to exit",
			Buckets: []float64{0.1, 0.5, 1, 5, 30, 60, 300, 600, 1800, 3600, 7200},
		}),
		lines: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ffexec_lines_total",
				Help: "Output lines read from the process",
			},
			[]string{"channel"}, // "stdout" | "stderr"
		),
		channelBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ffexec_output_bytes_total",
				Help: "Bytes read from the process output, counted when a channel is drained",
			},
			[]string{"channel"},
		),
		records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ffexec_log_records_total",
				Help: "Log records rebuilt from process output, by severity",
			},
			[]string{"severity"},
		),
		progressUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ffexec_progress_updates_total",
			Help: "Progress updates received from FFmpeg",
		}),
		frame: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ffexec_progress_frame",
			Help: "Frames processed so far",
		}),
		fps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ffexec_progress_fps",
			Help: "Current frames per second",
		}),
		speed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ffexec_progress_speed",
			Help: "Processing speed (1.0 = realtime)",
		}),
		outputBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ffexec_progress_output_bytes",
			Help: "Output size written so far",
		}),
		outTimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ffexec_progress_out_time_seconds",
			Help: "Output timestamp reached",
		}),
		recordGapP50: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ffexec_record_gap_p50_seconds",
			Help: "Time between log records, 50th percentile",
		}),
		recordGapP95: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ffexec_record_gap_p95_seconds",
			Help: "Time between log records, 95th percentile",
		}),
		recordGapP99: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ffexec_record_gap_p99_seconds",
			Help: "Time between log records, 99th percentile",
		}),
		startTime: time.Now(),
		exitCodes: make(map[int]int64),
	}

	registry.MustRegister(
		c.info,
		c.executionsStarted,
		c.executionsActive,
		c.outcomes,
		c.exits,
		c.duration,
		c.lines,
		c.channelBytes,
		c.records,
		c.progressUpdates,
		c.frame,
		c.fps,
		c.speed,
		c.outputBytes,
		c.outTimeSeconds,
		c.recordGapP50,
		c.recordGapP95,
		c.recordGapP99,
	)

	tool := cfg.Tool
	if tool == "" {
		tool = "ffmpeg"
	}
	version := cfg.Version
	if version == "" {
		version = "unknown"
	}
	c.info.WithLabelValues(tool, version).Set(1)

	// Pre-create series so they export as 0 before the first event.
	for _, kind := range []process.OutcomeKind{process.OutcomeSuccess, process.OutcomeAbnormalExit, process.OutcomeInternalFailure} {
		c.outcomes.WithLabelValues(kind.String())
	}
	for _, sev := range process.Severities() {
		c.records.WithLabelValues(sev.String())
	}

	return c
}

// =============================================================================
// Event Recording Methods
// =============================================================================

// RecordStart records a process start.
func (c *Collector) RecordStart(execTag string, pid int) {
	c.executionsStarted.Inc()
	c.executionsActive.Inc()

	c.mu.Lock()
	c.totalStarts++
	c.mu.Unlock()
}

// RecordLine counts one output line.
func (c *Collector) RecordLine(execTag string, ch parser.Channel, line string) {
	c.lines.WithLabelValues(ch.String()).Inc()
}

// RecordOutput adds the bytes read from a drained channel.
func (c *Collector) RecordOutput(execTag string, ch parser.Channel, bytesRead, linesRead int64) {
	c.channelBytes.WithLabelValues(ch.String()).Add(float64(bytesRead))
}

// RecordExit records a process exit.
func (c *Collector) RecordExit(execTag string, exitCode int, uptime time.Duration) {
	c.executionsActive.Dec()
	c.exits.WithLabelValues(exitCategory(exitCode)).Inc()
	c.duration.Observe(uptime.Seconds())

	c.mu.Lock()
	c.exitCodes[exitCode]++
	c.mu.Unlock()
}

// RecordOutcome records the terminal outcome of an execution. Spawn
// failures reach here without a start or an exit.
func (c *Collector) RecordOutcome(execTag string, kind process.OutcomeKind, exitCode int, wall time.Duration) {
	c.outcomes.WithLabelValues(kind.String()).Inc()
}

// RecordLog counts a finalized log record. It has the signature of a
// parser.RecordHook.
func (c *Collector) RecordLog(rec process.LogRecord) {
	c.records.WithLabelValues(rec.Severity.String()).Inc()
}

// RecordProgress updates the progress gauges.
func (c *Collector) RecordProgress(u parser.ProgressUpdate) {
	c.progressUpdates.Inc()
	c.frame.Set(float64(u.Frame))
	c.fps.Set(u.FPS)
	c.speed.Set(u.Speed)
	if u.TotalSize > 0 {
		c.outputBytes.Set(float64(u.TotalSize))
	}
	c.outTimeSeconds.Set(u.OutTimeDuration().Seconds())
}

// SetRecordGapPercentiles publishes percentiles of the time between log
// records.
func (c *Collector) SetRecordGapPercentiles(p50, p95, p99 time.Duration) {
	c.recordGapP50.Set(p50.Seconds())
	c.recordGapP95.Set(p95.Seconds())
	c.recordGapP99.Set(p99.Seconds())
}

// Callbacks returns supervisor callbacks feeding this collector.
func (c *Collector) Callbacks() supervisor.Callbacks {
	return supervisor.Callbacks{
		OnStart:   c.RecordStart,
		OnLine:    c.RecordLine,
		OnOutput:  c.RecordOutput,
		OnExit:    c.RecordExit,
		OnOutcome: c.RecordOutcome,
	}
}

// =============================================================================
// Accessors
// =============================================================================

// TotalStarts returns the number of processes spawned.
func (c *Collector) TotalStarts() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalStarts
}

// ExitCodes returns how many processes exited with each code.
func (c *Collector) ExitCodes() map[int]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	codes := make(map[int]int64, len(c.exitCodes))
	for code, n := range c.exitCodes {
		codes[code] = n
	}
	return codes
}

// Elapsed returns the time since the collector was created.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

// Dump writes every metric family gathered from g in the Prometheus text
// format.
func Dump(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// Helper Functions
// =============================================================================

// exitCategory buckets an exit code; codes above 128 come from signals.
func exitCategory(exitCode int) string {
	switch {
	case exitCode == 0:
		return "success"
	case exitCode > 128:
		return "signal"
	default:
		return "error"
	}
}
