package scheduler

import (
	"context"
	"errors"
	"time"

	"shrinkray/internal/logging"
	"shrinkray/internal/resource"
	"shrinkray/internal/session"
)

// checkThermalPressure runs on the throttle ticker. Emergency heat cancels
// everything, critical heat pauses active work, and cooling back below
// serious resumes whatever the scheduler itself paused.
func (s *Scheduler) checkThermalPressure(ctx context.Context) {
	if len(s.active) == 0 && s.queue.len() == 0 {
		return
	}
	snapshot := s.provider.Read()

	switch {
	case snapshot.Thermal.State >= resource.ThermalEmergency:
		s.emergencyStop(ctx, snapshot.Thermal)
	case snapshot.Thermal.State >= resource.ThermalCritical:
		s.pauseForThermal(ctx, snapshot.Thermal)
	case snapshot.Thermal.State < resource.ThermalSerious:
		s.resumeAfterThermal(ctx)
		if s.queuePaused && s.queue.len() > 0 {
			s.retryQueueLocked(ctx)
		}
	}
}

// emergencyStop cancels every active session. Each engine gets the grace
// window to acknowledge; after that the session is cancelled regardless so
// the device stops heating no matter what the encoder does.
func (s *Scheduler) emergencyStop(ctx context.Context, thermal resource.Thermal) {
	s.logger.Error("emergency thermal stop",
		logging.String("thermal_state", thermal.State.String()),
		logging.Int("active_sessions", len(s.active)))

	now := time.Now().UTC()
	for id, slot := range s.active {
		graceCtx, cancel := context.WithTimeout(context.Background(), s.emergencyGrace)
		err := slot.handle.Cancel(graceCtx)
		cancel()
		if err != nil {
			s.logger.Warn("engine did not acknowledge emergency cancel in time",
				logging.String(logging.FieldSessionID, id),
				logging.Error(err))
		}
		s.removePartialOutput(slot.sess)
		if err := slot.sess.Cancel(now); err != nil {
			s.logger.Error("could not cancel session",
				logging.String(logging.FieldSessionID, id),
				logging.Error(err))
		}
		delete(s.active, id)
		s.notifyTerminal(slot.sess)
	}
	s.queuePaused = true
}

func (s *Scheduler) pauseForThermal(ctx context.Context, thermal resource.Thermal) {
	for id, slot := range s.active {
		if slot.sess.State != session.StateProcessing {
			continue
		}
		ackCtx, cancel := context.WithTimeout(ctx, s.ackTimeout)
		err := slot.handle.Pause(ackCtx)
		cancel()
		if err != nil {
			message := err.Error()
			if errors.Is(err, context.DeadlineExceeded) {
				message = (&TimeoutError{Op: "pause", SessionID: id}).Error()
			}
			s.forceFail(ctx, id, message)
			continue
		}
		if err := slot.sess.Pause(); err != nil {
			continue
		}
		slot.pausedForThermal = true
		s.logger.Warn("conversion paused for thermal pressure",
			logging.String(logging.FieldSessionID, id),
			logging.String("thermal_state", thermal.State.String()))
	}
}

func (s *Scheduler) resumeAfterThermal(ctx context.Context) {
	for id, slot := range s.active {
		if !slot.pausedForThermal || slot.sess.State != session.StatePaused {
			continue
		}
		ackCtx, cancel := context.WithTimeout(ctx, s.ackTimeout)
		err := slot.handle.Resume(ackCtx)
		cancel()
		if err != nil {
			message := err.Error()
			if errors.Is(err, context.DeadlineExceeded) {
				message = (&TimeoutError{Op: "resume", SessionID: id}).Error()
			}
			s.forceFail(ctx, id, message)
			continue
		}
		if err := slot.sess.Resume(); err != nil {
			continue
		}
		slot.pausedForThermal = false
		s.logger.Info("conversion resumed after cooldown",
			logging.String(logging.FieldSessionID, id))
	}
}

// forceFail tears down a slot whose engine stopped responding. The engine
// gets a best-effort cancel with the emergency grace; the session fails
// either way so it cannot hang unobservably.
func (s *Scheduler) forceFail(ctx context.Context, sessionID, message string) {
	slot, ok := s.active[sessionID]
	if !ok {
		return
	}
	graceCtx, cancel := context.WithTimeout(context.Background(), s.emergencyGrace)
	_ = slot.handle.Cancel(graceCtx)
	cancel()
	s.removePartialOutput(slot.sess)
	if err := slot.sess.Fail(message, time.Now().UTC()); err != nil {
		s.logger.Error("could not fail session",
			logging.String(logging.FieldSessionID, sessionID),
			logging.Error(err))
	}
	delete(s.active, sessionID)
	s.notifyTerminal(slot.sess)
	s.maybeAdmitNext(ctx)
}
