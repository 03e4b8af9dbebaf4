package hotkeys

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Manager holds the global hotkey binding and its paused state.
// OS-level registration is owned by the platform layer; Manager decides
// whether a key event matches the binding and whether it may fire.
type Manager struct {
	mu        sync.Mutex
	active    Chord
	onTrigger func()
	paused    bool
}

// NewManager creates a new hotkey manager.
func NewManager() *Manager {
	return &Manager{}
}

// Start validates spec and makes it the active binding. Unsafe chords (no
// modifier and not a function key) are refused because they would swallow
// ordinary typing system-wide.
func (m *Manager) Start(spec string, onTrigger func()) error {
	if onTrigger == nil {
		return errors.New("onTrigger callback is required")
	}
	chord, err := Parse(spec)
	if err != nil {
		return err
	}
	if chord.IsEmpty() {
		return fmt.Errorf("%w: hotkey spec is empty", ErrMalformedChord)
	}
	if !chord.IsSafe() {
		slog.Warn("[WARN-hotkey] refusing unsafe single-key hotkey", "binding", chord.String())
		return fmt.Errorf("%w: %q", ErrUnsafeChord, chord.String())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = chord
	m.onTrigger = onTrigger
	slog.Debug("[DEBUG-hotkey] binding active", "binding", chord.String())
	return nil
}

// Stop clears the active binding.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = Chord{}
	m.onTrigger = nil
	return nil
}

// ActiveBinding returns the canonical string of the active binding.
func (m *Manager) ActiveBinding() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active.String()
}

// SetPaused suspends or resumes dispatch. The settings page pauses the
// manager while it records a new chord.
func (m *Manager) SetPaused(paused bool) {
	m.mu.Lock()
	changed := m.paused != paused
	m.paused = paused
	m.mu.Unlock()
	if changed {
		slog.Info("[hotkey] dispatch paused state changed", "paused", paused)
	}
}

// Paused reports whether dispatch is suspended.
func (m *Manager) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Dispatch fires the trigger when ev matches the active binding exactly and
// the manager is not paused. It reports whether the event was claimed.
func (m *Manager) Dispatch(ev KeyEvent) bool {
	m.mu.Lock()
	active := m.active
	trigger := m.onTrigger
	paused := m.paused
	m.mu.Unlock()

	if paused || active.IsEmpty() || trigger == nil {
		return false
	}
	chord, ok := ChordFromEvent(ev)
	if !ok || chord != active {
		return false
	}
	slog.Debug("[DEBUG-hotkey] binding matched", "binding", active.String())
	trigger()
	return true
}
