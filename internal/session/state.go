package session

import "strings"

// State represents the lifecycle position of a session.
type State string

const (
	StateCreated    State = "created"
	StateValidated  State = "validated"
	StateProcessing State = "processing"
	StatePaused     State = "paused"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

var allStates = []State{
	StateCreated,
	StateValidated,
	StateProcessing,
	StatePaused,
	StateCompleted,
	StateFailed,
	StateCancelled,
}

var terminalStates = map[State]struct{}{
	StateCompleted: {},
	StateFailed:    {},
	StateCancelled: {},
}

// AllStates returns the ordered list of known states.
func AllStates() []State {
	cp := make([]State, len(allStates))
	copy(cp, allStates)
	return cp
}

// ParseState converts a string into a known State.
func ParseState(value string) (State, bool) {
	normalized := State(strings.ToLower(strings.TrimSpace(value)))
	for _, state := range allStates {
		if state == normalized {
			return normalized, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transitions are possible from the
// state.
func (s State) IsTerminal() bool {
	_, ok := terminalStates[s]
	return ok
}
