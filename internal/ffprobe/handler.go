package ffprobe

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/randomizedcoder/ffexec/internal/logging"
	"github.com/randomizedcoder/ffexec/internal/parser"
	"github.com/randomizedcoder/ffexec/internal/process"
	"github.com/randomizedcoder/ffexec/internal/supervisor"
)

// Handler collects ffprobe's JSON from stdout and its log from stderr.
type Handler struct {
	acc *parser.LogAccumulator

	mu     sync.Mutex
	stdout []string
}

// NewHandler creates a Handler. logger receives ffprobe's log records;
// nil discards them.
func NewHandler(logger *slog.Logger, listener parser.OutputListener) *Handler {
	return &Handler{
		acc: parser.NewLogAccumulator(parser.AccumulatorConfig{
			Logger:   logger,
			Listener: listener,
		}),
	}
}

// SetHandle implements process.HandleAware.
func (h *Handler) SetHandle(c process.Controller) {
	h.acc.SetHandle(c)
}

// OnStdoutLine implements parser.LineHandler.
func (h *Handler) OnStdoutLine(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stdout = append(h.stdout, line)
}

// OnStderrLine implements parser.LineHandler.
func (h *Handler) OnStderrLine(line string) {
	h.acc.Accept(line)
}

// OnExit implements parser.LineHandler.
func (h *Handler) OnExit() {
	h.acc.Finish()
}

// Result implements supervisor.Handler.
func (h *Handler) Result(int) (*ProbeResult, error) {
	if msg, ok := h.acc.FinalErrorMessage(); ok {
		return nil, errors.New(msg)
	}

	h.mu.Lock()
	data := strings.Join(h.stdout, "\n")
	h.mu.Unlock()

	var result ProbeResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, errors.Wrap(err, "failed to parse probe data")
	}
	return &result, nil
}

// ErrorLog implements supervisor.Handler.
func (h *Handler) ErrorLog() []process.LogRecord {
	return h.acc.ErrorLog()
}

// Probe runs b on sup and waits for the decoded result.
func Probe(ctx context.Context, sup *supervisor.Supervisor, b *Builder, logger *slog.Logger) (*ProbeResult, error) {
	cmd, err := b.Command(ctx)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		// only stderr reaches the accumulator; stdout is the JSON document
		logger = logging.ChannelLogger(logger, "ffprobe", parser.Stderr.String())
	}
	return supervisor.Execute(ctx, sup, cmd, NewHandler(logger, nil)).Get(ctx)
}

var (
	_ supervisor.Handler[*ProbeResult] = (*Handler)(nil)
	_ process.HandleAware              = (*Handler)(nil)
)
