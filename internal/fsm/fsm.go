package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle       State = "idle"
	StateListening  State = "listening"
	StateReciting   State = "reciting"
	StateCompleting State = "completing"
	StateCompleted  State = "completed"
)

const (
	EventListen   Event = "listen"
	EventRecite   Event = "recite"
	EventStop     Event = "stop"
	EventFinish   Event = "finish"
	EventComplete Event = "complete"
	EventRebuild  Event = "rebuild"
)

// Transition returns the state reached by applying event to current.
// Reciting accepts EventRecite again: a restart begins a fresh pass.
func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle:
		switch event {
		case EventListen:
			return StateListening, nil
		case EventRecite:
			return StateReciting, nil
		case EventRebuild:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateListening:
		switch event {
		case EventRecite:
			return StateReciting, nil
		case EventStop, EventRebuild:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateReciting:
		switch event {
		case EventRecite:
			return StateReciting, nil
		case EventListen:
			return StateListening, nil
		case EventFinish:
			return StateCompleting, nil
		case EventStop, EventRebuild:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateCompleting:
		switch event {
		case EventComplete:
			return StateCompleted, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateCompleted:
		switch event {
		case EventRebuild:
			return StateIdle, nil
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
