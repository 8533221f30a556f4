package scheduler

import (
	"errors"
	"fmt"
)

// ErrNotRunning is returned by every operation when the scheduler loop has
// not been started or has been stopped.
var ErrNotRunning = errors.New("scheduler is not running")

// ErrUnknownSession is returned when an operation references a session id
// the scheduler does not hold.
var ErrUnknownSession = errors.New("unknown session")

// ErrQueueEmpty is returned by StartQueued when nothing is waiting.
var ErrQueueEmpty = errors.New("queue is empty")

// AlreadyActiveError reports an attempt to start a session while every
// processing slot is occupied by a different session.
type AlreadyActiveError struct {
	ActiveID string
}

func (e *AlreadyActiveError) Error() string {
	if e.ActiveID == "" {
		return "another session is already active"
	}
	return fmt.Sprintf("session %s is already active", e.ActiveID)
}

// TimeoutError reports that the codec engine did not acknowledge a pause,
// resume, or cancel request in time. The affected session is
// force-transitioned to FAILED so it cannot hang unobservably.
type TimeoutError struct {
	Op        string
	SessionID string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s acknowledgment for session %s timed out", e.Op, e.SessionID)
}
