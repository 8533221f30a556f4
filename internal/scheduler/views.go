package scheduler

import (
	"context"
	"time"

	"shrinkray/internal/media"
	"shrinkray/internal/session"
)

// SessionView is a read-only snapshot of one session for status display.
type SessionView struct {
	SessionID      string
	RequestID      string
	InputPath      string
	OutputPath     string
	State          session.State
	Priority       media.Priority
	Quality        media.Quality
	Percentage     float64
	TimeLeft       time.Duration
	SpeedRatio     float64
	FailureMessage string
	Result         *media.Result
	CreatedAt      time.Time
	StartedAt      time.Time
	CompletedAt    time.Time
}

// Status is the scheduler's full observable state at one instant.
type Status struct {
	Active      []SessionView
	Queue       []QueueEntry
	QueuePaused bool
	Recent      []SessionView
}

// recentLimit bounds how many terminal sessions Status reports; the full
// record lives in history.
const recentLimit = 20

// Status returns a consistent snapshot of active slots, the queue, and the
// most recent terminal sessions.
func (s *Scheduler) Status(ctx context.Context) (Status, error) {
	var status Status
	err := s.do(ctx, func() {
		for _, slot := range s.active {
			status.Active = append(status.Active, viewOf(slot.sess))
		}
		status.Queue = s.queue.snapshotEntries()
		status.QueuePaused = s.queuePaused

		start := 0
		if len(s.terminal) > recentLimit {
			start = len(s.terminal) - recentLimit
		}
		for _, sess := range s.terminal[start:] {
			status.Recent = append(status.Recent, viewOf(sess))
		}
	})
	if err != nil {
		return Status{}, err
	}
	return status, nil
}

// Session returns the view of one session, whether active, queued, or
// recently terminal.
func (s *Scheduler) Session(ctx context.Context, sessionID string) (SessionView, error) {
	var (
		view  SessionView
		found bool
	)
	err := s.do(ctx, func() {
		if slot, ok := s.active[sessionID]; ok {
			view, found = viewOf(slot.sess), true
			return
		}
		for _, entry := range s.queue.entries {
			if entry.sess.ID == sessionID {
				view, found = viewOf(entry.sess), true
				return
			}
		}
		for _, sess := range s.terminal {
			if sess.ID == sessionID {
				view, found = viewOf(sess), true
				return
			}
		}
	})
	if err != nil {
		return SessionView{}, err
	}
	if !found {
		return SessionView{}, ErrUnknownSession
	}
	return view, nil
}

func viewOf(sess *session.Session) SessionView {
	view := SessionView{
		SessionID:      sess.ID,
		RequestID:      sess.Request.ID,
		InputPath:      sess.Request.Input.Path,
		OutputPath:     sess.Request.OutputPath,
		State:          sess.State,
		Priority:       sess.Request.Priority,
		Quality:        sess.Request.Quality,
		Percentage:     sess.Progress.Percentage,
		TimeLeft:       sess.Progress.EstimatedTimeLeft,
		SpeedRatio:     sess.Progress.SpeedRatio,
		FailureMessage: sess.FailureMessage,
		Result:         sess.Result,
		CreatedAt:      sess.CreatedAt,
		StartedAt:      sess.StartedAt,
		CompletedAt:    sess.CompletedAt,
	}
	if sess.Effective.Quality != "" {
		view.Quality = sess.Effective.Quality
	}
	return view
}
