// Package scheduler owns conversion session orchestration: the active
// processing slots, the priority queue of pending requests, admission
// decisions driven by capability assessment, and the lifecycle of every
// session from submit to terminal state.
//
// All mutable state is confined to a single orchestration goroutine. Public
// methods marshal their work onto that goroutine through a command channel,
// and codec engine callbacks arrive as events on the same loop, so no state
// is ever touched from two goroutines and the core needs no locks.
package scheduler
