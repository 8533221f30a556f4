package session

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"shrinkray/internal/logging"
	"shrinkray/internal/media"
	"shrinkray/internal/progress"
)

// Session is one conversion job instance. The scheduler owns it exclusively
// while active; after a terminal transition ownership passes to the history
// layer and the session must be treated as read-only.
type Session struct {
	ID       string
	Request  media.Request
	State    State
	Progress media.Progress

	// Result is set only when the state is COMPLETED. FAILED sessions
	// carry the cause in FailureMessage; CANCELLED sessions carry neither.
	Result         *media.Result
	FailureMessage string

	Effective media.EffectiveSettings

	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
	RetryCount  int

	aggregator *progress.Aggregator
	logger     *slog.Logger
}

// New validates the request and returns a session in CREATED. A request that
// violates any construction invariant yields a *media.ValidationError listing
// every violation.
func New(request media.Request, logger *slog.Logger) (*Session, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		ID:         uuid.NewString(),
		Request:    request,
		State:      StateCreated,
		CreatedAt:  time.Now().UTC(),
		RetryCount: request.RetryCount,
		logger:     logging.NewComponentLogger(logger, "session"),
	}, nil
}

// MarkValidated moves CREATED to VALIDATED. Re-validation of an already
// validated session is a caller bug.
func (s *Session) MarkValidated() error {
	if s.State != StateCreated {
		return invalidTransition("validate", s.State)
	}
	s.State = StateValidated
	return nil
}

// Start moves the session into PROCESSING with the effective settings chosen
// at admission. Allowed from CREATED and VALIDATED.
func (s *Session) Start(effective media.EffectiveSettings, now time.Time) error {
	if s.State != StateCreated && s.State != StateValidated {
		return invalidTransition("start", s.State)
	}
	s.State = StateProcessing
	s.Effective = effective
	s.StartedAt = now.UTC()
	s.aggregator = progress.NewAggregator(s.StartedAt, s.logger)
	return nil
}

// Pause moves PROCESSING to PAUSED. Pausing a session that is not processing
// (including one already paused) is rejected rather than ignored.
func (s *Session) Pause() error {
	if s.State != StateProcessing {
		return invalidTransition("pause", s.State)
	}
	s.State = StatePaused
	return nil
}

// Resume moves PAUSED back to PROCESSING.
func (s *Session) Resume() error {
	if s.State != StatePaused {
		return invalidTransition("resume", s.State)
	}
	s.State = StateProcessing
	return nil
}

// Cancel is accepted from every non-terminal state and moves the session to
// CANCELLED. Cancelling an already-terminal session is rejected.
func (s *Session) Cancel(now time.Time) error {
	if s.State.IsTerminal() {
		return invalidTransition("cancel", s.State)
	}
	s.State = StateCancelled
	s.CompletedAt = now.UTC()
	return nil
}

// ApplyProgress reduces a raw tick into the session's progress snapshot.
// Ticks are only meaningful while processing; the aggregator clamps
// regressions so the published percentage never decreases.
func (s *Session) ApplyProgress(tick media.Tick, now time.Time) error {
	if s.State != StateProcessing {
		return invalidTransition("apply progress to", s.State)
	}
	s.Progress = s.aggregator.Reduce(tick, now)
	return nil
}

// Complete moves PROCESSING to COMPLETED. The end time and an output
// descriptor are preconditions, not post-hoc validations.
func (s *Session) Complete(result media.Result, endTime time.Time) error {
	if endTime.IsZero() {
		return errors.New("complete: end time is required")
	}
	if result.OutputPath == "" {
		return errors.New("complete: output file descriptor is required")
	}
	if s.State != StateProcessing {
		return invalidTransition("complete", s.State)
	}
	s.State = StateCompleted
	s.Result = &result
	s.CompletedAt = endTime.UTC()
	s.Progress.Percentage = 100
	s.Progress.EstimatedTimeLeft = 0
	return nil
}

// Fail moves any non-terminal state to FAILED. Failures can originate from
// the codec engine or from a resource blocker detected mid-run.
func (s *Session) Fail(message string, endTime time.Time) error {
	if endTime.IsZero() {
		return errors.New("fail: end time is required")
	}
	if s.State.IsTerminal() {
		return invalidTransition("fail", s.State)
	}
	s.State = StateFailed
	s.FailureMessage = message
	s.CompletedAt = endTime.UTC()
	return nil
}

// Runtime returns how long the session has been (or was) processing.
func (s *Session) Runtime(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	end := s.CompletedAt
	if end.IsZero() {
		end = now
	}
	if end.Before(s.StartedAt) {
		return 0
	}
	return end.Sub(s.StartedAt)
}
