// Package recorder implements the hotkey recording state machine: it turns
// document key and click events into a finalized chord.
package recorder

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"snaptext/internal/dom"
	"snaptext/internal/hotkeys"
)

// RejectDisplayDuration is how long the modifier-required message stays up.
const RejectDisplayDuration = 1500 * time.Millisecond

// Sink receives the recorder's outputs. Calls are made with the recorder
// lock held, in the order they occur, and must not call back into the
// Recorder.
type Sink interface {
	RenderLive(held []string)
	RenderFinal(c hotkeys.Chord)
	RenderRejected()
	RenderIdle(c hotkeys.Chord)
	PauseGlobal(paused bool)
	Persist(c hotkeys.Chord)
}

// EventTarget is the document the recorder listens on.
type EventTarget interface {
	AddEventListener(target *html.Node, typ dom.EventType, fn dom.Listener) (remove func())
	Contains(ancestor, node *html.Node) bool
}

// Clock schedules the reject timeout.
type Clock interface {
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// SystemClock returns a Clock backed by time.AfterFunc.
func SystemClock() Clock { return systemClock{} }

// Options configures a Recorder.
type Options struct {
	// Element is the recorder element; clicks inside it never cancel.
	Element *html.Node
	Target  EventTarget
	Sink    Sink
	// Clock defaults to SystemClock.
	Clock Clock
	// RejectDuration defaults to RejectDisplayDuration.
	RejectDuration time.Duration
	Persisted      hotkeys.Chord
}

// ListenersPerSession is the number of document listeners installed while
// recording: keydown, keyup, and the outside click.
const ListenersPerSession = 3

// Recorder is the hotkey recording state machine.
//
// A single mutex serializes activation, key events, clicks and the reject
// timer. Lock order: Recorder.mu -> document locks (via Sink and Target).
type Recorder struct {
	mu sync.Mutex

	element     *html.Node
	target      EventTarget
	sink        Sink
	clock       Clock
	rejectAfter time.Duration

	state     State
	held      hotkeys.Modifier
	persisted hotkeys.Chord
	removers  []func()
	stopTimer func() bool
	timerGen  uint64
	paused    bool
	sessionID string
	closed    bool
}

// New builds an idle recorder.
func New(opts Options) (*Recorder, error) {
	if opts.Element == nil {
		return nil, errors.New("recorder element is required")
	}
	if opts.Target == nil {
		return nil, errors.New("event target is required")
	}
	if opts.Sink == nil {
		return nil, errors.New("sink is required")
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.RejectDuration <= 0 {
		opts.RejectDuration = RejectDisplayDuration
	}
	return &Recorder{
		element:     opts.Element,
		target:      opts.Target,
		sink:        opts.Sink,
		clock:       opts.Clock,
		rejectAfter: opts.RejectDuration,
		state:       StateIdle,
		persisted:   opts.Persisted,
	}, nil
}

// State returns the current state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Held returns the modifiers currently believed held, in canonical order.
func (r *Recorder) Held() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.held.Tokens()
}

// Persisted returns the last persisted chord.
func (r *Recorder) Persisted() hotkeys.Chord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.persisted
}

// SetPersisted records c as the persisted chord. It does not render.
func (r *Recorder) SetPersisted(c hotkeys.Chord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persisted = c
}

// SessionID identifies the current or most recent recording session.
func (r *Recorder) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionID
}

// ListenerCount returns the number of document listeners installed.
func (r *Recorder) ListenerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.removers)
}

// Activate starts a recording session. It is ignored unless idle.
func (r *Recorder) Activate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || !r.apply(EventActivate) {
		return
	}

	r.held = 0
	r.sessionID = uuid.NewString()
	r.paused = true
	r.sink.PauseGlobal(true)
	r.removers = append(r.removers,
		r.target.AddEventListener(nil, dom.KeyDown, r.onKeyDown),
		r.target.AddEventListener(nil, dom.KeyUp, r.onKeyUp),
		r.target.AddEventListener(nil, dom.Click, r.onClick),
	)
	slog.Debug("[DEBUG-RECORDER] recording started", "session", r.sessionID)
	r.sink.RenderLive(nil)
}

// Close tears down any active session without rendering. The recorder
// ignores further activation.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.state != StateIdle {
		slog.Debug("[DEBUG-RECORDER] closing active session", "session", r.sessionID)
	}
	r.apply(EventClose)
	r.teardown()
}

func (r *Recorder) onKeyDown(ev *dom.Event) {
	ev.PreventDefault()
	ev.StopPropagation()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateIdle {
		return
	}

	if mask, ok := modifierMask(ev.Key.Key); ok {
		r.apply(EventModifierDown)
		r.cancelRejectTimer()
		r.held |= mask
		r.sink.RenderLive(r.held.Tokens())
		return
	}

	chord, ok := hotkeys.ChordFromEvent(ev.Key)
	if !ok {
		wasRejected := r.state == StateRejected
		r.apply(EventUnresolved)
		if wasRejected {
			r.cancelRejectTimer()
			r.sink.RenderLive(r.held.Tokens())
		}
		slog.Debug("[DEBUG-RECORDER] key does not resolve to a primary",
			"session", r.sessionID, "key", ev.Key.Key, "code", ev.Key.Code)
		return
	}

	if !chord.IsSafe() {
		r.apply(EventReject)
		slog.Debug("[DEBUG-RECORDER] rejected chord without modifier",
			"session", r.sessionID, "chord", chord.String())
		r.sink.RenderRejected()
		r.scheduleRejectTimeout()
		return
	}

	r.apply(EventAccept)
	r.persisted = chord
	slog.Debug("[DEBUG-RECORDER] recording finalized", "session", r.sessionID, "chord", chord.String())
	r.sink.RenderFinal(chord)
	r.sink.Persist(chord)
	r.teardown()
}

func (r *Recorder) onKeyUp(ev *dom.Event) {
	ev.PreventDefault()
	ev.StopPropagation()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateIdle {
		return
	}

	mask, ok := modifierMask(ev.Key.Key)
	if !ok || r.held&mask == 0 {
		return
	}
	r.apply(EventModifierUp)
	r.cancelRejectTimer()
	r.held &^= mask
	r.sink.RenderLive(r.held.Tokens())
}

func (r *Recorder) onClick(ev *dom.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateIdle || r.target.Contains(r.element, ev.Target) {
		return
	}
	r.apply(EventOutsideClick)
	slog.Debug("[DEBUG-RECORDER] recording cancelled by outside click", "session", r.sessionID)
	r.teardown()
	r.sink.RenderIdle(r.persisted)
}

func (r *Recorder) onRejectTimeout(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.timerGen || r.state != StateRejected {
		return
	}
	r.stopTimer = nil
	r.apply(EventRejectTimeout)
	r.sink.RenderLive(r.held.Tokens())
}

// apply moves the machine along event. Invalid transitions leave the state
// unchanged and report false. Callers hold r.mu.
func (r *Recorder) apply(event Event) bool {
	next, err := Transition(r.state, event)
	if err != nil {
		slog.Debug("[DEBUG-RECORDER] event ignored", "error", err)
		return false
	}
	r.state = next
	return true
}

func (r *Recorder) scheduleRejectTimeout() {
	r.cancelRejectTimer()
	gen := r.timerGen
	r.stopTimer = r.clock.AfterFunc(r.rejectAfter, func() { r.onRejectTimeout(gen) })
}

// cancelRejectTimer stops any pending timeout and invalidates callbacks that
// already fired but have not yet acquired the lock.
func (r *Recorder) cancelRejectTimer() {
	r.timerGen++
	if r.stopTimer != nil {
		r.stopTimer()
		r.stopTimer = nil
	}
}

// teardown ends a session. It is safe to call repeatedly.
func (r *Recorder) teardown() {
	if r.paused {
		r.paused = false
		r.sink.PauseGlobal(false)
	}
	for _, remove := range r.removers {
		remove()
	}
	r.removers = nil
	r.cancelRejectTimer()
	r.held = 0
}

func modifierMask(key string) (hotkeys.Modifier, bool) {
	token, ok := hotkeys.ModifierForKey(key)
	if !ok {
		return 0, false
	}
	return hotkeys.ParseModifier(token)
}
