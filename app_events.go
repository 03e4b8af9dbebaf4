package main

import (
	"context"
	"log/slog"

	"snaptext/internal/applog"
	"snaptext/internal/settings"
)

func (a *App) emitRuntimeEvent(name string, payload any) {
	a.emitRuntimeEventWithContext(a.runtimeContext(), name, payload)
}

// emitRuntimeEventWithContext drops the event when ctx is nil, which
// happens before startup and after shutdown.
func (a *App) emitRuntimeEventWithContext(ctx context.Context, name string, payload any) {
	if ctx == nil {
		slog.Debug("[EVENT] runtime event dropped because app context is nil", "event", name)
		return
	}
	runtimeEventsEmitFn(ctx, name, payload)
}

// emitRecorderView is the controller's OnRender hook. It runs under the
// recorder lock and must not call back into the controller.
func (a *App) emitRecorderView(view settings.View) {
	a.emitRuntimeEvent("recorder:view", view)
}

// emitWarning pushes a teed log warning to the page.
func (a *App) emitWarning(entry applog.Entry) {
	a.emitRuntimeEvent("app:warning", entry)
}
