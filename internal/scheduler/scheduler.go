package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"shrinkray/internal/codec"
	"shrinkray/internal/config"
	"shrinkray/internal/logging"
	"shrinkray/internal/resource"
	"shrinkray/internal/session"
)

// TerminalFunc receives every session that reaches a terminal state. It runs
// on the orchestration goroutine and completes before the next command is
// processed, so subscribers observe terminal events in order.
type TerminalFunc func(*session.Session)

// Scheduler orchestrates conversion sessions over a codec engine.
type Scheduler struct {
	cfg      *config.Config
	provider resource.Provider
	facts    resource.Facts
	engine   codec.Engine
	logger   *slog.Logger

	ackTimeout       time.Duration
	emergencyGrace   time.Duration
	throttleInterval time.Duration
	autoStartQueue   bool

	commands chan func()
	events   chan taggedEvent
	stopOnce sync.Once
	stopped  chan struct{}
	loopDone chan struct{}
	cancel   context.CancelFunc

	// Everything below is owned by the orchestration goroutine. No other
	// goroutine reads or writes these fields.
	// slots is the configured concurrency ceiling; zero defers to the
	// capability assessment at admission time.
	slots       int
	active      map[string]*activeSlot
	queue       requestQueue
	queuePaused bool
	terminal    []*session.Session
	subscribers []TerminalFunc
	pumps       sync.WaitGroup
}

type activeSlot struct {
	sess   *session.Session
	handle codec.Handle

	// pausedForThermal marks slots the throttle check paused, as opposed to
	// a user pause; only those are auto-resumed when the device cools down.
	pausedForThermal bool
}

type taggedEvent struct {
	sessionID string
	event     codec.Event
}

// New constructs a scheduler. Subscribers must be attached before Start.
func New(cfg *config.Config, provider resource.Provider, facts resource.Facts, engine codec.Engine, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cfg:              cfg,
		provider:         provider,
		facts:            facts,
		engine:           engine,
		logger:           logging.NewComponentLogger(logger, "scheduler"),
		ackTimeout:       time.Duration(cfg.Scheduler.AckTimeoutSeconds) * time.Second,
		emergencyGrace:   time.Duration(cfg.Scheduler.GraceMillis) * time.Millisecond,
		throttleInterval: time.Duration(cfg.Scheduler.ThrottleCheckSeconds) * time.Second,
		autoStartQueue:   cfg.Scheduler.AutoStartQueue,
		commands:         make(chan func()),
		events:           make(chan taggedEvent, 64),
		stopped:          make(chan struct{}),
		loopDone:         make(chan struct{}),
		slots:            cfg.Scheduler.MaxConcurrent,
		active:           make(map[string]*activeSlot),
	}
}

// SubscribeTerminal registers a subscriber for terminal session events.
// Must be called before Start.
func (s *Scheduler) SubscribeTerminal(fn TerminalFunc) {
	if fn == nil {
		return
	}
	s.subscribers = append(s.subscribers, fn)
}

// do runs fn on the orchestration goroutine and waits for it to finish.
func (s *Scheduler) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}
	select {
	case s.commands <- wrapped:
	case <-s.stopped:
		return ErrNotRunning
	case <-s.loopDone:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-s.loopDone:
		return ErrNotRunning
	}
}
