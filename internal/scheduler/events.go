package scheduler

import (
	"context"
	"time"

	"shrinkray/internal/codec"
	"shrinkray/internal/logging"
)

// handleEngineEvent applies one engine event to its session. Events for
// sessions the scheduler no longer holds are late arrivals from a slot that
// was already force-released and are dropped.
func (s *Scheduler) handleEngineEvent(ctx context.Context, ev taggedEvent) {
	slot, ok := s.active[ev.sessionID]
	if !ok {
		return
	}
	now := time.Now().UTC()

	switch ev.event.Kind {
	case codec.EventTick:
		if err := slot.sess.ApplyProgress(ev.event.Tick, now); err != nil {
			s.logger.Debug("progress tick dropped",
				logging.String(logging.FieldSessionID, ev.sessionID),
				logging.Error(err))
		}
	case codec.EventComplete:
		if err := slot.sess.Complete(ev.event.Result, now); err != nil {
			s.logger.Error("completion rejected, failing session",
				logging.String(logging.FieldSessionID, ev.sessionID),
				logging.Error(err))
			s.removePartialOutput(slot.sess)
			if ferr := slot.sess.Fail(err.Error(), now); ferr != nil {
				s.logger.Error("could not fail session",
					logging.String(logging.FieldSessionID, ev.sessionID),
					logging.Error(ferr))
			}
		} else {
			s.logger.Info("conversion completed",
				logging.String(logging.FieldSessionID, ev.sessionID),
				logging.String("output", ev.event.Result.OutputPath))
		}
		s.release(ctx, ev.sessionID)
	case codec.EventError:
		message := "codec engine error"
		if ev.event.Err != nil {
			message = ev.event.Err.Error()
		}
		s.logger.Error("conversion failed",
			logging.String(logging.FieldSessionID, ev.sessionID),
			logging.String("reason", message))
		s.removePartialOutput(slot.sess)
		if err := slot.sess.Fail(message, now); err != nil {
			s.logger.Error("could not fail session",
				logging.String(logging.FieldSessionID, ev.sessionID),
				logging.Error(err))
		}
		s.release(ctx, ev.sessionID)
	}
}

// release frees a slot after its session went terminal, publishes the
// terminal event, and pulls the next queued session in.
func (s *Scheduler) release(ctx context.Context, sessionID string) {
	slot, ok := s.active[sessionID]
	if !ok {
		return
	}
	delete(s.active, sessionID)
	s.notifyTerminal(slot.sess)
	s.maybeAdmitNext(ctx)
}
