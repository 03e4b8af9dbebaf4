package main

import (
	"log/slog"
	"strings"

	"snaptext/internal/config"
)

type configUpdatedEvent struct {
	Config             map[string]any `json:"config"`
	Version            uint64         `json:"version"`
	UpdatedAtUnixMilli int64          `json:"updated_at_unix_milli"`
}

var knownTabs = map[string]struct{}{"general": {}, "shortcuts": {}, "about": {}}

// GetConfig returns the settings shown on the page.
func (a *App) GetConfig() map[string]any {
	a.flushStartupWarnings()
	return config.Public(a.getConfigSnapshot())
}

// SetConfig validates and persists one setting, then re-applies whatever
// depends on it. The config:updated event carries the normalized config.
func (a *App) SetConfig(key string, value any) error {
	event, err := a.setConfigWithLock(key, value)
	if err != nil {
		slog.Warn("[WARN-CONFIG] set_config rejected", "key", key, "error", err)
		return err
	}
	if key == config.KeyHotkey {
		a.configureGlobalHotkey()
	}
	// Emitted outside cfgSaveMu; consumers keep the highest version.
	a.emitRuntimeEvent("config:updated", event)
	return nil
}

func (a *App) setConfigWithLock(key string, value any) (configUpdatedEvent, error) {
	a.cfgSaveMu.Lock()
	defer a.cfgSaveMu.Unlock()

	cfg := a.latestConfig()
	if err := config.Set(&cfg, key, value); err != nil {
		return configUpdatedEvent{}, err
	}
	normalized, err := config.Save(a.configPath, cfg)
	if err != nil {
		return configUpdatedEvent{}, err
	}
	a.setConfigSnapshot(normalized)
	slog.Debug("[DEBUG-CONFIG] setting saved", "key", key)
	return a.nextConfigEvent(normalized), nil
}

// GetInitialTab returns the tab requested at launch, or "" for the default.
func (a *App) GetInitialTab() string {
	return a.initialTab
}

// parseTabArg returns the value of the last --tab= argument.
func parseTabArg(args []string) string {
	tab := ""
	for _, arg := range args {
		if value, ok := strings.CutPrefix(arg, "--tab="); ok {
			tab = value
		}
	}
	return normalizeTab(tab)
}

func normalizeTab(tab string) string {
	tab = strings.ToLower(strings.TrimSpace(tab))
	if _, ok := knownTabs[tab]; !ok {
		return ""
	}
	return tab
}
