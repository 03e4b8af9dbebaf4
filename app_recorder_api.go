package main

import (
	"context"
	"log/slog"

	"snaptext/internal/bridge"
	"snaptext/internal/config"
	"snaptext/internal/dom"
	"snaptext/internal/hotkeys"
	"snaptext/internal/settings"
)

// KeyPayload is the KeyboardEvent subset the page forwards.
type KeyPayload = hotkeys.KeyEvent

// RecorderView returns the current recorder fragment for the first paint.
func (a *App) RecorderView() settings.View {
	c, err := a.requireController()
	if err != nil {
		return settings.View{State: "idle"}
	}
	return c.View()
}

// RecorderKeyDown forwards a page keydown. Keys the recorder does not
// consume are offered to the global hotkey binding. It reports whether the
// page should suppress the key.
func (a *App) RecorderKeyDown(ev KeyPayload) bool {
	return a.dispatchKey(dom.KeyDown, ev)
}

// RecorderKeyUp forwards a page keyup.
func (a *App) RecorderKeyUp(ev KeyPayload) bool {
	return a.dispatchKey(dom.KeyUp, ev)
}

// RecorderClick forwards a page click. targetID is the id of the clicked
// element, or "" for anywhere else.
func (a *App) RecorderClick(targetID string) bool {
	c, err := a.requireController()
	if err != nil {
		return false
	}
	return c.DispatchClick(targetID).Consumed()
}

// SetHotkeyPaused suspends the global hotkey while a chord is recorded.
func (a *App) SetHotkeyPaused(paused bool) {
	a.hotkeys.SetPaused(paused)
	a.writePauseMarker(paused)
}

func (a *App) dispatchKey(typ dom.EventType, ev KeyPayload) bool {
	c, err := a.requireController()
	if err != nil {
		slog.Debug("[DEBUG-RECORDER] key dropped, recorder unavailable", "type", typ)
		return false
	}
	if c.DispatchKey(typ, ev).Consumed() {
		return true
	}
	if typ == dom.KeyDown {
		return a.hotkeys.Dispatch(ev)
	}
	return false
}

// hostBridge exposes App to the bridge adapter with the capability
// interfaces it probes for.
type hostBridge struct {
	app *App
}

var (
	_ bridge.ConfigGetter = hostBridge{}
	_ bridge.ConfigSetter = hostBridge{}
	_ bridge.HotkeyPauser = hostBridge{}
)

func (h hostBridge) GetConfig(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return config.Public(h.app.getConfigSnapshot()), nil
}

func (h hostBridge) SetConfig(ctx context.Context, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return h.app.SetConfig(key, value)
}

func (h hostBridge) SetHotkeyPaused(_ context.Context, paused bool) error {
	h.app.SetHotkeyPaused(paused)
	return nil
}
