package dom

import (
	"golang.org/x/net/html"

	"snaptext/internal/hotkeys"
)

// EventType names a dispatched event.
type EventType string

const (
	KeyDown EventType = "keydown"
	KeyUp   EventType = "keyup"
	Click   EventType = "click"
)

// Event is one dispatched keyboard or pointer event.
type Event struct {
	Type   EventType
	Target *html.Node
	Key    hotkeys.KeyEvent

	currentTarget      *html.Node
	defaultPrevented   bool
	propagationStopped bool
}

// NewKeyEvent builds a keyboard event aimed at target.
func NewKeyEvent(typ EventType, target *html.Node, key hotkeys.KeyEvent) *Event {
	return &Event{Type: typ, Target: target, Key: key}
}

// NewClickEvent builds a click aimed at target.
func NewClickEvent(target *html.Node) *Event {
	return &Event{Type: Click, Target: target}
}

// PreventDefault marks the event as handled so the host skips its default
// action.
func (e *Event) PreventDefault() { e.defaultPrevented = true }

// StopPropagation ends dispatch after the current node.
func (e *Event) StopPropagation() { e.propagationStopped = true }

// DefaultPrevented reports whether PreventDefault was called.
func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

// PropagationStopped reports whether StopPropagation was called.
func (e *Event) PropagationStopped() bool { return e.propagationStopped }

// CurrentTarget is the node whose listeners are running, nil for
// document-level listeners.
func (e *Event) CurrentTarget() *html.Node { return e.currentTarget }

// Consumed reports whether any listener claimed the event.
func (e *Event) Consumed() bool { return e.defaultPrevented || e.propagationStopped }
