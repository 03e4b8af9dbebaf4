// Package bridge adapts the host-injected bridge to the calls the settings
// page makes. Every capability is optional: a host that lacks a method, or
// a page with no host at all, degrades to logged no-ops and empty results.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"snaptext/internal/hotkeys"
)

var (
	// ErrBridgeUnavailable reports that the host never became ready.
	ErrBridgeUnavailable = errors.New("host bridge unavailable")
	// ErrPersistFailed wraps a host rejection of set_config.
	ErrPersistFailed = errors.New("persist hotkey failed")
)

// DefaultCallTimeout bounds each host call.
const DefaultCallTimeout = 5 * time.Second

// HotkeyKey is the config key holding the persisted chord.
const HotkeyKey = "hotkey"

// ConfigGetter is implemented by hosts that expose get_config.
type ConfigGetter interface {
	GetConfig(ctx context.Context) (map[string]any, error)
}

// ConfigSetter is implemented by hosts that expose set_config.
type ConfigSetter interface {
	SetConfig(ctx context.Context, key string, value any) error
}

// HotkeyPauser is implemented by hosts that expose set_hotkey_paused.
type HotkeyPauser interface {
	SetHotkeyPaused(ctx context.Context, paused bool) error
}

// Adapter wraps a host that may be injected after the page starts.
type Adapter struct {
	// CallTimeout bounds each host call. Zero means DefaultCallTimeout.
	CallTimeout time.Duration

	mu        sync.RWMutex
	host      any
	ready     chan struct{}
	readyOnce sync.Once
}

// New returns an adapter with no host.
func New() *Adapter {
	return &Adapter{ready: make(chan struct{})}
}

// Inject installs host and signals readiness. Injecting again replaces the
// host; readiness is only signalled once.
func (a *Adapter) Inject(host any) {
	if host == nil {
		return
	}
	a.mu.Lock()
	a.host = host
	a.mu.Unlock()
	a.readyOnce.Do(func() {
		slog.Debug("[DEBUG-BRIDGE] host bridge injected", "host", fmt.Sprintf("%T", host))
		close(a.ready)
	})
}

// Ready reports whether a host has been injected.
func (a *Adapter) Ready() bool {
	select {
	case <-a.ready:
		return true
	default:
		return false
	}
}

// WhenReady blocks until a host is injected or ctx ends.
func (a *Adapter) WhenReady(ctx context.Context) error {
	select {
	case <-a.ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrBridgeUnavailable, ctx.Err())
	}
}

// LoadHotkey reads the persisted chord string. A host without get_config
// yields "".
func (a *Adapter) LoadHotkey(ctx context.Context) (string, error) {
	getter, ok := a.currentHost().(ConfigGetter)
	if !ok {
		unavailable("get_config")
		return "", nil
	}

	ctx, cancel := a.callContext(ctx)
	defer cancel()
	cfg, err := getter.GetConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("load hotkey: %w", err)
	}
	switch v := cfg[HotkeyKey].(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("load hotkey: unexpected %T value", v)
	}
}

// SaveHotkey persists c in canonical form. A host without set_config makes
// this a logged no-op.
func (a *Adapter) SaveHotkey(ctx context.Context, c hotkeys.Chord) error {
	setter, ok := a.currentHost().(ConfigSetter)
	if !ok {
		unavailable("set_config")
		return nil
	}

	ctx, cancel := a.callContext(ctx)
	defer cancel()
	if err := setter.SetConfig(ctx, HotkeyKey, c.String()); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrPersistFailed, c.String(), err)
	}
	return nil
}

// ClearHotkey persists the empty chord.
func (a *Adapter) ClearHotkey(ctx context.Context) error {
	return a.SaveHotkey(ctx, hotkeys.Chord{})
}

// PauseGlobalHotkey asks the host to suspend or resume its global hotkey.
// Errors are logged, never returned. The call is synchronous so pause and
// resume reach the host in order.
func (a *Adapter) PauseGlobalHotkey(paused bool) {
	pauser, ok := a.currentHost().(HotkeyPauser)
	if !ok {
		unavailable("set_hotkey_paused")
		return
	}
	ctx, cancel := a.callContext(context.Background())
	defer cancel()
	if err := pauser.SetHotkeyPaused(ctx, paused); err != nil {
		slog.Warn("[WARN-BRIDGE] set_hotkey_paused failed", "paused", paused, "error", err)
	}
}

func (a *Adapter) currentHost() any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.host
}

func (a *Adapter) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := a.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func unavailable(method string) {
	slog.Warn("[WARN-BRIDGE] host method unavailable, skipping",
		"method", method, "error", ErrBridgeUnavailable)
}
