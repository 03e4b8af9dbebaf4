package main

import (
	"errors"
	"testing"

	"snaptext/internal/config"
)

func TestSetConfigEmitsUpdatedConfigEvent(t *testing.T) {
	events, _ := stubRuntime(t)
	app := newTestApp(t)

	if err := app.SetConfig(config.KeySilentMode, false); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}

	got := app.GetConfig()
	if got[config.KeySilentMode] != false {
		t.Fatalf("silent_mode = %v, want false", got[config.KeySilentMode])
	}
	updates := events.named("config:updated")
	if len(updates) != 1 {
		t.Fatalf("config:updated count = %d, want 1", len(updates))
	}
	payload, ok := updates[0].(configUpdatedEvent)
	if !ok {
		t.Fatalf("payload type = %T, want configUpdatedEvent", updates[0])
	}
	if payload.Version != 1 {
		t.Fatalf("event version = %d, want 1", payload.Version)
	}
	if payload.UpdatedAtUnixMilli <= 0 {
		t.Fatalf("event updated_at_unix_milli = %d, want > 0", payload.UpdatedAtUnixMilli)
	}
	if payload.Config[config.KeySilentMode] != false {
		t.Fatalf("event silent_mode = %v, want false", payload.Config[config.KeySilentMode])
	}

	onDisk, err := config.Load(app.configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if onDisk.SilentMode {
		t.Fatal("silent_mode was not persisted")
	}
}

func TestSetConfigEmitsMonotonicEventVersion(t *testing.T) {
	events, _ := stubRuntime(t)
	app := newTestApp(t)

	for _, port := range []int{8000, 8001, 8002} {
		if err := app.SetConfig(config.KeyPort, float64(port)); err != nil {
			t.Fatalf("SetConfig(port=%d) error = %v", port, err)
		}
	}

	var last uint64
	for i, raw := range events.named("config:updated") {
		version := raw.(configUpdatedEvent).Version
		if version <= last {
			t.Fatalf("event %d version = %d, want > %d", i, version, last)
		}
		last = version
	}
	if last != 3 {
		t.Fatalf("last version = %d, want 3", last)
	}
}

func TestSetConfigRejectsInvalidValues(t *testing.T) {
	events, _ := stubRuntime(t)
	app := newTestApp(t)

	tests := []struct {
		name  string
		key   string
		value any
		want  error
	}{
		{name: "unknown key", key: "theme", value: "dark", want: config.ErrUnknownKey},
		{name: "port out of range", key: config.KeyPort, value: float64(70000), want: config.ErrInvalidValue},
		{name: "unsafe hotkey", key: config.KeyHotkey, value: "o", want: config.ErrInvalidValue},
		{name: "malformed hotkey", key: config.KeyHotkey, value: "command+", want: config.ErrInvalidValue},
		{name: "wrong type", key: config.KeySilentMode, value: "yes", want: config.ErrInvalidValue},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := app.SetConfig(tc.key, tc.value)
			if !errors.Is(err, tc.want) {
				t.Fatalf("SetConfig() error = %v, want %v", err, tc.want)
			}
		})
	}
	if got := events.named("config:updated"); len(got) != 0 {
		t.Fatalf("config:updated emitted %d times for rejected values", len(got))
	}
}

func TestSetConfigHotkeyRebindsGlobalHotkey(t *testing.T) {
	stubRuntime(t)
	app := newTestApp(t)
	app.configureGlobalHotkey()
	if got := app.hotkeys.ActiveBinding(); got != "command+shift+o" {
		t.Fatalf("initial binding = %q, want default", got)
	}

	if err := app.SetConfig(config.KeyHotkey, "Ctrl+Alt+K"); err != nil {
		t.Fatalf("SetConfig(hotkey) error = %v", err)
	}
	if got := app.hotkeys.ActiveBinding(); got != "control+option+k" {
		t.Fatalf("binding = %q, want %q", got, "control+option+k")
	}

	if err := app.SetConfig(config.KeyHotkey, ""); err != nil {
		t.Fatalf("SetConfig(empty hotkey) error = %v", err)
	}
	if got := app.hotkeys.ActiveBinding(); got != "" {
		t.Fatalf("binding after clear = %q, want empty", got)
	}
}

func TestSetConfigKeepsCountersWrittenByAnotherProcess(t *testing.T) {
	stubRuntime(t)
	app := newTestApp(t)

	external := app.getConfigSnapshot()
	external.Stats.TotalCount = 42
	if _, err := config.Save(app.configPath, external); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := app.SetConfig(config.KeyLanguage, "ja"); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}
	onDisk, err := config.Load(app.configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if onDisk.Stats.TotalCount != 42 {
		t.Fatalf("total_count = %d, want 42", onDisk.Stats.TotalCount)
	}
	if onDisk.Language != "ja" {
		t.Fatalf("language = %q, want ja", onDisk.Language)
	}
}

func TestGetConfigFlushesStartupWarnings(t *testing.T) {
	events, _ := stubRuntime(t)
	app := newTestApp(t)
	app.addStartupWarning("  config fallback  ")
	app.addStartupWarning("   ")

	app.GetConfig()

	warnings := app.GetWarnings()
	if len(warnings) != 1 {
		t.Fatalf("warnings = %d, want 1", len(warnings))
	}
	if warnings[0].Message != "config fallback" || warnings[0].Source != "startup" {
		t.Fatalf("warning = %+v", warnings[0])
	}
	if got := events.named("app:warning"); len(got) != 1 {
		t.Fatalf("app:warning count = %d, want 1", len(got))
	}

	app.GetConfig()
	if len(app.GetWarnings()) != 1 {
		t.Fatal("startup warnings must be flushed only once")
	}
}

func TestParseTabArg(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "none", args: nil, want: ""},
		{name: "shortcuts", args: []string{"--tab=shortcuts"}, want: "shortcuts"},
		{name: "case and spaces", args: []string{"--tab= About "}, want: "about"},
		{name: "last wins", args: []string{"--tab=general", "--tab=shortcuts"}, want: "shortcuts"},
		{name: "unknown tab", args: []string{"--tab=advanced"}, want: ""},
		{name: "other flags ignored", args: []string{"--verbose", "shortcuts"}, want: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := parseTabArg(tc.args); got != tc.want {
				t.Fatalf("parseTabArg(%v) = %q, want %q", tc.args, got, tc.want)
			}
		})
	}
}

func TestGetInitialTab(t *testing.T) {
	app := NewApp(AppOptions{InitialTab: "Shortcuts"})
	if got := app.GetInitialTab(); got != "shortcuts" {
		t.Fatalf("GetInitialTab() = %q, want shortcuts", got)
	}
}
