// Package conversation implements the per-user shopping dialogue: states,
// inbound events, outbound effects and the transition function between them.
package conversation

import (
	"errors"
	"fmt"
	"strings"
)

// State is the position of one user within the dialogue.
type State string

const (
	StateStart          State = "START"
	StateBrowsingMenu   State = "BROWSING_MENU"
	StateViewingProduct State = "VIEWING_PRODUCT"
	StateViewingCart    State = "VIEWING_CART"
)

var (
	// ErrUnknownState marks a stored session value outside the known state set.
	ErrUnknownState = errors.New("unknown conversation state")
	// ErrUnhandledEvent marks an event with no transition from the current state.
	ErrUnhandledEvent = errors.New("unhandled conversation event")
)

// ParseState validates a stored session value.
func ParseState(raw string) (State, error) {
	switch st := State(strings.TrimSpace(raw)); st {
	case StateStart, StateBrowsingMenu, StateViewingProduct, StateViewingCart:
		return st, nil
	}
	return "", &StateError{Value: raw}
}

// StateError reports a stored value that is not a State.
type StateError struct {
	Value string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownState, e.Value)
}

func (e *StateError) Unwrap() error { return ErrUnknownState }

// Code is used for the err_code log field.
func (e *StateError) Code() string { return "unknown_state" }

// EventError reports an event that the current state cannot handle.
type EventError struct {
	State State
	Event Event
}

func (e *EventError) Error() string {
	return fmt.Sprintf("%s: %s in %s", ErrUnhandledEvent, e.Event, e.State)
}

func (e *EventError) Unwrap() error { return ErrUnhandledEvent }

// Code is used for the err_code log field.
func (e *EventError) Code() string { return "unhandled_event" }
