package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const activationFileName = "settings.activate"

// activationPath lives next to the config file so both instances resolve
// it the same way.
func activationPath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), activationFileName)
}

// requestActivation asks the running instance to come to the front and
// switch to tab. Used by a second launch before it exits.
func requestActivation(configPath string, tab string) error {
	path := activationPath(configPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("request activation: %w", err)
	}
	if err := os.WriteFile(path, []byte(tab), 0o600); err != nil {
		return fmt.Errorf("request activation: %w", err)
	}
	return nil
}

// handleActivationRequest consumes the activation file written by a second
// launch.
func (a *App) handleActivationRequest() {
	path := activationPath(a.configPath)
	raw, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("[WARN-SINGLE] failed to read activation request", "path", path, "error", err)
		}
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Debug("[DEBUG-SINGLE] failed to remove activation request", "path", path, "error", err)
	}
	a.bringWindowToFront(normalizeTab(strings.TrimSpace(string(raw))))
}

// bringWindowToFront raises the window and switches to tab when set.
func (a *App) bringWindowToFront(tab string) {
	ctx := a.runtimeContext()
	if ctx == nil {
		slog.Debug("[DEBUG-SINGLE] activation dropped because runtime context is nil")
		return
	}
	slog.Info("[DEBUG-SINGLE] activation requested by another launch", "tab", tab)
	a.raiseWindow(ctx)
	a.setWindowVisible(true)
	if tab != "" {
		a.emitRuntimeEventWithContext(ctx, "settings:switch-tab", tab)
	}
}
