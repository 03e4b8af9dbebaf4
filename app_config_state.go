package main

import (
	"log/slog"
	"time"

	"snaptext/internal/config"
)

// Config holds only value fields, so copies are snapshots.

func (a *App) getConfigSnapshot() config.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg
}

func (a *App) setConfigSnapshot(cfg config.Config) {
	a.cfgMu.Lock()
	a.cfg = cfg
	a.cfgMu.Unlock()
}

// latestConfig re-reads the file so a set_config never overwrites counters
// the OCR service wrote since the last reload.
func (a *App) latestConfig() config.Config {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		slog.Warn("[WARN-CONFIG] reload before save failed, using in-memory config", "error", err)
		return a.getConfigSnapshot()
	}
	return cfg
}

func (a *App) nextConfigEvent(cfg config.Config) configUpdatedEvent {
	return configUpdatedEvent{
		Config:             config.Public(cfg),
		Version:            a.configEventVersion.Add(1),
		UpdatedAtUnixMilli: time.Now().UnixMilli(),
	}
}

// reloadConfigFromDisk applies a change written by another process. Saves
// made by this process reload to an identical config and are ignored.
func (a *App) reloadConfigFromDisk() {
	a.cfgSaveMu.Lock()
	cfg, err := config.Load(a.configPath)
	if err != nil {
		a.cfgSaveMu.Unlock()
		slog.Warn("[WARN-CONFIG] failed to reload config after external change", "path", a.configPath, "error", err)
		return
	}
	previous := a.getConfigSnapshot()
	if cfg == previous {
		a.cfgSaveMu.Unlock()
		return
	}
	a.setConfigSnapshot(cfg)
	event := a.nextConfigEvent(cfg)
	a.cfgSaveMu.Unlock()

	slog.Info("[DEBUG-CONFIG] config reloaded after external change", "version", event.Version)
	if cfg.Hotkey != previous.Hotkey {
		a.configureGlobalHotkey()
		if c, err := a.requireController(); err == nil {
			c.Reload(a.backgroundContext())
		}
	}
	a.emitRuntimeEvent("config:updated", event)
}
