package ffmpeg

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/randomizedcoder/ffexec/internal/parser"
	"github.com/randomizedcoder/ffexec/internal/process"
	"github.com/randomizedcoder/ffexec/internal/supervisor"
)

// ProgressListener receives progress updates, from the status line or
// from the -progress socket. It is called on a reader goroutine.
type ProgressListener interface {
	OnProgress(u parser.ProgressUpdate, h process.Controller)
}

// ProgressListenerFunc adapts a function to ProgressListener.
type ProgressListenerFunc func(u parser.ProgressUpdate, h process.Controller)

// OnProgress implements ProgressListener.
func (f ProgressListenerFunc) OnProgress(u parser.ProgressUpdate, h process.Controller) {
	f(u, h)
}

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	// Logger receives FFmpeg's log records. Defaults to discarding them.
	Logger *slog.Logger

	// OutputListener receives records of severity info or higher.
	OutputListener parser.OutputListener

	// ProgressListener receives status line updates. Optional.
	ProgressListener ProgressListener

	// Hook observes every finalized record. Optional.
	Hook parser.RecordHook
}

// Handler interprets one FFmpeg execution. FFmpeg writes its log and
// status line to stderr; stdout is treated the same way since FFmpeg
// only writes there when logging is redirected.
type Handler struct {
	acc      *parser.LogAccumulator
	progress ProgressListener
	logger   *slog.Logger

	mu          sync.Mutex
	handle      process.Controller
	result      Result
	hasResult   bool
	statusLines int64
}

// NewHandler creates a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		progress: cfg.ProgressListener,
		logger:   cfg.Logger,
	}
	userHook := cfg.Hook
	h.acc = parser.NewLogAccumulator(parser.AccumulatorConfig{
		Logger:   cfg.Logger,
		Listener: cfg.OutputListener,
		Hook: func(rec process.LogRecord) {
			h.onRecord(rec)
			if userHook != nil {
				userHook(rec)
			}
		},
	})
	return h
}

// SetHandle implements process.HandleAware.
func (h *Handler) SetHandle(c process.Controller) {
	h.mu.Lock()
	h.handle = c
	h.mu.Unlock()
	h.acc.SetHandle(c)
}

// OnStdoutLine implements parser.LineHandler.
func (h *Handler) OnStdoutLine(line string) {
	h.acc.Accept(line)
}

// OnStderrLine implements parser.LineHandler.
func (h *Handler) OnStderrLine(line string) {
	if parser.IsStatusLine(line) {
		h.onStatusLine(line)
		return
	}
	// A tagged summary goes through the accumulator so the record before
	// it is finalized first; the record hook picks it up from there.
	if _, tagged := parser.ParseLogMessage(line); !tagged {
		if r, ok := ParseResult(line); ok {
			h.setResult(r)
			return
		}
	}
	h.acc.Accept(line)
}

// OnExit implements parser.LineHandler.
func (h *Handler) OnExit() {
	h.acc.Finish()
}

// Result implements supervisor.Handler. An error-class record that was
// not followed by the size summary fails the execution. Without a
// summary the result is empty.
func (h *Handler) Result(int) (Result, error) {
	if msg, ok := h.acc.FinalErrorMessage(); ok {
		return Result{}, errors.New(msg)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result, nil
}

// ErrorLog implements supervisor.Handler.
func (h *Handler) ErrorLog() []process.LogRecord {
	return h.acc.ErrorLog()
}

// Counts returns the number of finalized records per severity.
func (h *Handler) Counts() map[process.Severity]int64 {
	return h.acc.Counts()
}

// HasSummary reports whether the size summary was seen.
func (h *Handler) HasSummary() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hasResult
}

// StatusLines returns the number of status lines seen.
func (h *Handler) StatusLines() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.statusLines
}

func (h *Handler) onRecord(rec process.LogRecord) {
	if r, ok := ParseResult(rec.Message); ok {
		h.setResult(r)
	}
}

// setResult records the summary. The summary means FFmpeg finished its
// work, so an earlier error record no longer fails the execution.
func (h *Handler) setResult(r Result) {
	h.mu.Lock()
	h.result = r
	h.hasResult = true
	h.mu.Unlock()
	h.acc.ClearFinalError()
}

func (h *Handler) onStatusLine(line string) {
	h.mu.Lock()
	h.statusLines++
	handle := h.handle
	h.mu.Unlock()

	if h.progress == nil {
		return
	}
	u, ok := parser.ParseStatusLine(line)
	if !ok {
		return
	}
	notifyProgress(h.progress, u, handle, h.logger)
}

// notifyProgress calls l, isolating the caller from a panicking listener.
func notifyProgress(l ProgressListener, u parser.ProgressUpdate, handle process.Controller, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil && logger != nil {
			logger.Warn("progress_listener_failed", "panic", r)
		}
	}()
	l.OnProgress(u, handle)
}

var (
	_ supervisor.Handler[Result] = (*Handler)(nil)
	_ process.HandleAware        = (*Handler)(nil)
)
