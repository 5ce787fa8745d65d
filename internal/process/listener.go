package process

import (
	"fmt"
	"log/slog"
)

// Listener observes process lifecycle. OnStart is called once after a
// successful spawn, OnStop once after exit. Panics are recovered and
// logged; they never affect the execution outcome.
type Listener interface {
	OnStart(h Controller)
	OnStop(h Controller, exitCode int)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Start func(h Controller)
	Stop  func(h Controller, exitCode int)
}

// OnStart implements Listener.
func (f ListenerFuncs) OnStart(h Controller) {
	if f.Start != nil {
		f.Start(h)
	}
}

// OnStop implements Listener.
func (f ListenerFuncs) OnStop(h Controller, exitCode int) {
	if f.Stop != nil {
		f.Stop(h, exitCode)
	}
}

// NotifyStart calls l.OnStart, isolating failures.
func NotifyStart(l Listener, h Controller, logger *slog.Logger) {
	if l == nil {
		return
	}
	defer recoverListener(logger, "on_start", h)
	l.OnStart(h)
}

// NotifyStop calls l.OnStop, isolating failures.
func NotifyStop(l Listener, h Controller, exitCode int, logger *slog.Logger) {
	if l == nil {
		return
	}
	defer recoverListener(logger, "on_stop", h)
	l.OnStop(h, exitCode)
}

func recoverListener(logger *slog.Logger, event string, h Controller) {
	r := recover()
	if r == nil || logger == nil {
		return
	}
	logger.Warn("listener_failed",
		"event", event,
		"exec_tag", h.ExecTag(),
		"error", fmt.Sprint(r),
	)
}
