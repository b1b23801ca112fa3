package session

import (
	"errors"
	"fmt"
)

// RunMode is a connection's current role with respect to the simulation.
type RunMode int

const (
	// Observing connections watch a simulation someone else controls, or
	// have not loaded anything yet.
	Observing RunMode = iota

	// Controlling connections own a simulation and may start, pause and stop it.
	Controlling

	// Waiting connections are queued for simulator capacity.
	Waiting
)

// String returns the name of the run mode.
func (m RunMode) String() string {
	switch m {
	case Observing:
		return "OBSERVING"
	case Controlling:
		return "CONTROLLING"
	case Waiting:
		return "WAITING"
	default:
		return fmt.Sprintf("RunMode(%d)", int(m))
	}
}

// ErrIllegalTransition is wrapped by every *TransitionError.
var ErrIllegalTransition = errors.New("session: illegal run mode transition")

// TransitionError reports a rejected run mode transition.
type TransitionError struct {
	ConnID string
	From   RunMode
	To     RunMode
}

// Error returns the error message.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("session: connection %s: illegal transition %s -> %s", e.ConnID, e.From, e.To)
}

// Unwrap returns ErrIllegalTransition.
func (e *TransitionError) Unwrap() error {
	return ErrIllegalTransition
}

// transitions lists the legal run mode changes. A WAITING connection never
// goes back to OBSERVING: it is either promoted or removed.
var transitions = map[RunMode][]RunMode{
	Observing:   {Controlling, Waiting},
	Controlling: {Observing, Waiting},
	Waiting:     {Controlling},
}

// CanTransition reports whether from -> to is allowed. Staying in the same
// mode is always allowed.
func CanTransition(from, to RunMode) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
