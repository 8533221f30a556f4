package session

import "fmt"

// InvalidTransitionError reports an operation attempted from a state that
// does not allow it.
type InvalidTransitionError struct {
	Op   string
	From State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s session in state %s", e.Op, e.From)
}

func invalidTransition(op string, from State) error {
	return &InvalidTransitionError{Op: op, From: from}
}
