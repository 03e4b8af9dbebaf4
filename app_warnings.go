package main

import (
	"log/slog"
	"strings"
	"time"

	"snaptext/internal/applog"
)

// GetWarnings returns recent warnings, oldest first.
func (a *App) GetWarnings() []applog.Entry {
	return a.warnings.Snapshot()
}

// onLogWarning is the applog tee callback. It must not log at Warn or
// above, which would re-enter the tee.
func (a *App) onLogWarning(ts time.Time, level slog.Level, msg string, group string) {
	a.emitWarning(a.warnings.Add(ts, level, msg, group))
}

func (a *App) addStartupWarning(message string) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return
	}
	a.startupWarnMu.Lock()
	a.startupWarnings = append(a.startupWarnings, trimmed)
	a.startupWarnMu.Unlock()
}

func (a *App) consumeStartupWarnings() []string {
	a.startupWarnMu.Lock()
	defer a.startupWarnMu.Unlock()
	out := a.startupWarnings
	a.startupWarnings = nil
	return out
}

// flushStartupWarnings moves startup warnings into the warning ring and
// notifies the page once a runtime context exists.
func (a *App) flushStartupWarnings() {
	if a.runtimeContext() == nil {
		return
	}
	for _, message := range a.consumeStartupWarnings() {
		entry := applog.Entry{
			Timestamp: time.Now().Format(time.RFC3339Nano),
			Level:     "warn",
			Message:   message,
			Source:    "startup",
		}
		entry.Seq = a.warnings.Push(entry)
		a.emitWarning(entry)
	}
}
