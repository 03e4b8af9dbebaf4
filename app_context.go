package main

import (
	"context"
	"errors"

	"snaptext/internal/settings"
)

func (a *App) setRuntimeContext(ctx context.Context) {
	a.ctxMu.Lock()
	a.ctx = ctx
	a.ctxMu.Unlock()
}

func (a *App) runtimeContext() context.Context {
	a.ctxMu.RLock()
	defer a.ctxMu.RUnlock()
	return a.ctx
}

func (a *App) setController(c *settings.Controller) {
	a.controllerMu.Lock()
	a.controller = c
	a.controllerMu.Unlock()
}

func (a *App) requireController() (*settings.Controller, error) {
	a.controllerMu.RLock()
	defer a.controllerMu.RUnlock()
	if a.controller == nil {
		return nil, errors.New("hotkey recorder is unavailable")
	}
	return a.controller, nil
}
