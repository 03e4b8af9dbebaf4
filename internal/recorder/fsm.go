package recorder

import "fmt"

// State is the recorder's lifecycle state.
type State string

// Event is a state-machine input after key classification.
type Event string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateRejected  State = "rejected"
)

const (
	EventActivate      Event = "activate"
	EventModifierDown  Event = "modifier_down"
	EventModifierUp    Event = "modifier_up"
	EventUnresolved    Event = "unresolved_key"
	EventAccept        Event = "accept"
	EventReject        Event = "reject"
	EventOutsideClick  Event = "outside_click"
	EventRejectTimeout Event = "reject_timeout"
	EventClose         Event = "close"
)

// Transition returns the state reached from current on event.
func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle:
		switch event {
		case EventActivate:
			return StateRecording, nil
		case EventClose:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRecording, StateRejected:
		switch event {
		case EventModifierDown, EventModifierUp, EventUnresolved:
			return StateRecording, nil
		case EventAccept, EventOutsideClick, EventClose:
			return StateIdle, nil
		case EventReject:
			return StateRejected, nil
		case EventRejectTimeout:
			if current == StateRejected {
				return StateRecording, nil
			}
			return current, invalidTransition(current, event)
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
