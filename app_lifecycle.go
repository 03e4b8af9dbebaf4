package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"snaptext/frontend"
	"snaptext/internal/config"
	"snaptext/internal/dom"
	"snaptext/internal/settings"
)

type appRuntimeLogger interface {
	Warningf(context.Context, string, ...any)
	Infof(context.Context, string, ...any)
}

type wailsRuntimeLogger struct{}

func (wailsRuntimeLogger) Warningf(ctx context.Context, message string, args ...any) {
	if ctx == nil {
		slog.Warn(fmt.Sprintf(message, args...))
		return
	}
	runtime.LogWarningf(ctx, message, args...)
}

func (wailsRuntimeLogger) Infof(ctx context.Context, message string, args ...any) {
	if ctx == nil {
		slog.Info(fmt.Sprintf(message, args...))
		return
	}
	runtime.LogInfof(ctx, message, args...)
}

var (
	runtimeEventsEmitFn                            = runtime.EventsEmit
	runtimeLogger                 appRuntimeLogger = wailsRuntimeLogger{}
	runtimeWindowShowFn                            = runtime.WindowShow
	runtimeWindowUnminimiseFn                      = runtime.WindowUnminimise
	runtimeWindowSetAlwaysOnTopFn                  = runtime.WindowSetAlwaysOnTop
	frontendIndexFn                                = frontend.Index
	userHomeDirFn                                  = os.UserHomeDir
)

const (
	shutdownWaitTimeout = 10 * time.Second
	pauseMarkerDir      = ".snaptext"
	pauseMarkerFile     = "recording_hotkey.lock"
)

func (a *App) startup(ctx context.Context) {
	a.setRuntimeContext(ctx)
	a.setWindowVisible(true)
	bgCtx, cancel := context.WithCancel(ctx)
	a.bgCancel = cancel

	if a.configPath == "" {
		a.configPath = config.DefaultPath()
	}
	for _, message := range config.ConsumeDefaultPathWarnings() {
		a.addStartupWarning(message)
	}
	cfg, err := config.EnsureFile(a.configPath)
	if err != nil {
		// Non-fatal: run with what Load returned and tell the user.
		a.addStartupWarning("Failed to load config file at startup. Running with defaults. Error: " + err.Error())
		runtimeLogger.Warningf(ctx, "failed to load config from %s: %v", a.configPath, err)
	}
	a.setConfigSnapshot(cfg)

	if a.pauseFilePath == "" {
		if home, homeErr := userHomeDirFn(); homeErr == nil {
			a.pauseFilePath = filepath.Join(home, pauseMarkerDir, pauseMarkerFile)
		}
	}
	// A crash mid-recording leaves the marker behind and pauses the OCR
	// service's hotkey forever.
	a.writePauseMarker(false)

	a.configureGlobalHotkey()
	a.bridge.Inject(hostBridge{app: a})

	if err := a.startController(bgCtx); err != nil {
		runtimeLogger.Warningf(ctx, "hotkey recorder unavailable: %v", err)
		a.addStartupWarning("Hotkey recorder failed to start. Error: " + err.Error())
	}
	a.startWatchers(bgCtx)
	a.flushStartupWarnings()
}

func (a *App) startController(ctx context.Context) error {
	raw, err := frontendIndexFn()
	if err != nil {
		return fmt.Errorf("read settings page: %w", err)
	}
	doc, err := dom.Parse(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("parse settings page: %w", err)
	}
	c, err := settings.New(settings.Options{
		Document: doc,
		Bridge:   a.bridge,
		OnRender: a.emitRecorderView,
	})
	if err != nil {
		return err
	}
	a.setController(c)

	a.bgWG.Go(func() {
		if err := c.Start(ctx); err != nil {
			slog.Warn("[WARN-SETTINGS] hotkey recorder start failed", "error", err)
		}
	})
	return nil
}

func (a *App) startWatchers(ctx context.Context) {
	w, err := config.Watch(ctx, a.configPath, config.DefaultWatchDebounce, a.reloadConfigFromDisk)
	if err != nil {
		slog.Warn("[WARN-CONFIG] config watcher unavailable, external edits need a restart", "error", err)
	} else {
		a.watchers = append(a.watchers, w)
	}

	activation, err := config.Watch(ctx, activationPath(a.configPath), config.DefaultWatchDebounce, a.handleActivationRequest)
	if err != nil {
		slog.Warn("[WARN-CONFIG] activation watcher unavailable", "error", err)
	} else {
		a.watchers = append(a.watchers, activation)
	}
}

func (a *App) shutdown(_ context.Context) {
	if a.shuttingDown.Swap(true) {
		return
	}
	logCtx := a.runtimeContext()

	if c, err := a.requireController(); err == nil {
		// Close drains pending saves through the bridge before the
		// watchers and context go away.
		c.Close()
	}
	for _, w := range a.watchers {
		if err := w.Close(); err != nil {
			runtimeLogger.Warningf(logCtx, "config watcher close failed: %v", err)
		}
	}
	if a.bgCancel != nil {
		a.bgCancel()
	}
	if !waitWithTimeout(a.bgWG.Wait, shutdownWaitTimeout) {
		runtimeLogger.Warningf(logCtx, "timed out waiting for background workers during shutdown")
	}
	if err := a.hotkeys.Stop(); err != nil {
		runtimeLogger.Warningf(logCtx, "hotkeys stop failed: %v", err)
	}
	a.SetHotkeyPaused(false)
	a.setRuntimeContext(nil)
}

// backgroundContext is the context for work started after startup.
func (a *App) backgroundContext() context.Context {
	if ctx := a.runtimeContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func waitWithTimeout(waitFn func(), timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		waitFn()
		close(done)
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// configureGlobalHotkey binds the configured chord, or unbinds when it is
// empty or refused.
func (a *App) configureGlobalHotkey() {
	spec := a.getConfigSnapshot().Hotkey
	logCtx := a.runtimeContext()
	if spec == "" {
		if err := a.hotkeys.Stop(); err != nil {
			runtimeLogger.Warningf(logCtx, "hotkeys stop failed: %v", err)
		}
		slog.Debug("[DEBUG-hotkey] no hotkey configured, binding cleared")
		return
	}
	if err := a.hotkeys.Start(spec, a.onGlobalHotkey); err != nil {
		runtimeLogger.Warningf(logCtx, "global hotkey registration failed: %v", err)
		_ = a.hotkeys.Stop()
		return
	}
	runtimeLogger.Infof(logCtx, "global hotkey registered: %s", a.hotkeys.ActiveBinding())
}

func (a *App) onGlobalHotkey() {
	slog.Info("[hotkey] capture requested", "binding", a.hotkeys.ActiveBinding())
	a.emitRuntimeEvent("hotkey:triggered", map[string]string{"binding": a.hotkeys.ActiveBinding()})
}

// writePauseMarker mirrors the paused state into the marker file the OCR
// service polls.
func (a *App) writePauseMarker(paused bool) {
	path := a.pauseFilePath
	if path == "" {
		return
	}
	if !paused {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("[WARN-hotkey] failed to remove pause marker", "path", path, "error", err)
		}
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		slog.Warn("[WARN-hotkey] failed to create pause marker dir", "path", path, "error", err)
		return
	}
	if err := os.WriteFile(path, []byte("locked"), 0o600); err != nil {
		slog.Warn("[WARN-hotkey] failed to write pause marker", "path", path, "error", err)
	}
}

func (a *App) raiseWindow(ctx context.Context) {
	runtimeWindowShowFn(ctx)
	runtimeWindowUnminimiseFn(ctx)
	runtimeWindowSetAlwaysOnTopFn(ctx, true)
	runtimeWindowSetAlwaysOnTopFn(ctx, false)
}

func (a *App) setWindowVisible(visible bool) {
	a.windowMu.Lock()
	a.windowVisible = visible
	a.windowMu.Unlock()
}
