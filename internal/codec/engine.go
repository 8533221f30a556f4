package codec

import (
	"context"
	"fmt"
	"time"

	"shrinkray/internal/media"
)

// Job describes one conversion handed to the engine. InputDuration and
// InputFrameRate come from the request's codec metadata; engines use them to
// emit ticks with totals populated.
type Job struct {
	InputPath      string
	OutputPath     string
	Settings       media.EffectiveSettings
	InputDuration  time.Duration
	InputFrameRate float64
}

func (j Job) totalFrames() int64 {
	if j.InputDuration <= 0 || j.InputFrameRate <= 0 {
		return 0
	}
	return int64(j.InputDuration.Seconds() * j.InputFrameRate)
}

// EventKind discriminates the entries of a handle's event stream.
type EventKind string

const (
	EventTick     EventKind = "tick"
	EventComplete EventKind = "complete"
	EventError    EventKind = "error"
)

// Event is one entry in a handle's event stream. Exactly one payload field
// is populated, selected by Kind. Complete and Error are terminal: the
// stream is closed after either.
type Event struct {
	Kind   EventKind
	Tick   media.Tick
	Result media.Result
	Err    error
}

// Engine starts conversions. Start blocks until the engine has acknowledged
// that work has begun (not until it finishes) and returns a handle for the
// running job.
type Engine interface {
	Start(ctx context.Context, job Job) (Handle, error)
}

// Handle controls one running conversion. Events returns the job's single
// event stream; Pause, Resume, and Cancel block until the engine
// acknowledges the operation or the context expires.
type Handle interface {
	Events() <-chan Event
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Cancel(ctx context.Context) error
}

// EngineError wraps an opaque failure from the external encoder with its raw
// code and message so callers can log or display it without interpreting it.
type EngineError struct {
	Code    string
	Message string
	Err     error
}

func (e *EngineError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("codec engine error %s: %s", e.Code, e.Message)
	case e.Message != "":
		return "codec engine error: " + e.Message
	case e.Err != nil:
		return "codec engine error: " + e.Err.Error()
	default:
		return "codec engine error"
	}
}

func (e *EngineError) Unwrap() error { return e.Err }
