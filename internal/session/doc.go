// Package session implements the conversion session state machine. A session
// is owned by the scheduler while active and becomes read-only once it
// reaches a terminal state. All transitions are guarded: illegal ones return
// InvalidTransitionError instead of being silently ignored, because a bad
// transition is a caller bug that must surface.
package session
