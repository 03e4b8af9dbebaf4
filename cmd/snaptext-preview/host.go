package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"snaptext/internal/bridge"
	"snaptext/internal/hotkeys"
)

// memHost is an in-memory host bridge. It keeps the hotkey for the life of
// the process and logs pause requests.
type memHost struct {
	mu     sync.Mutex
	hotkey string
	paused bool
}

var (
	_ bridge.ConfigGetter = (*memHost)(nil)
	_ bridge.ConfigSetter = (*memHost)(nil)
	_ bridge.HotkeyPauser = (*memHost)(nil)
)

func newMemHost(hotkey string) *memHost {
	return &memHost{hotkey: hotkey}
}

func (h *memHost) GetConfig(context.Context) (map[string]any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return map[string]any{bridge.HotkeyKey: h.hotkey}, nil
}

func (h *memHost) SetConfig(_ context.Context, key string, value any) error {
	if key != bridge.HotkeyKey {
		return fmt.Errorf("preview host: unsupported key %q", key)
	}
	spec, ok := value.(string)
	if !ok {
		return fmt.Errorf("preview host: hotkey must be a string, got %T", value)
	}
	chord, err := hotkeys.Parse(spec)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.hotkey = chord.String()
	h.mu.Unlock()
	slog.Info("[preview] hotkey saved", "hotkey", chord.String())
	return nil
}

func (h *memHost) SetHotkeyPaused(_ context.Context, paused bool) error {
	h.mu.Lock()
	h.paused = paused
	h.mu.Unlock()
	slog.Info("[preview] global hotkey paused state", "paused", paused)
	return nil
}

func (h *memHost) state() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hotkey, h.paused
}
