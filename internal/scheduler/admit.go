package scheduler

import (
	"context"
	"os"
	"time"

	"shrinkray/internal/capability"
	"shrinkray/internal/codec"
	"shrinkray/internal/logging"
	"shrinkray/internal/media"
	"shrinkray/internal/session"
)

// slotLimit resolves the concurrency ceiling. A configured limit wins; zero
// defers to what the capability assessment says the device can sustain.
func (s *Scheduler) slotLimit(assessment capability.Assessment) int {
	if s.slots > 0 {
		return s.slots
	}
	if assessment.MaxConcurrent < 1 {
		return 1
	}
	return assessment.MaxConcurrent
}

// effectiveSettings derives what the engine actually runs with. The quality
// ceiling only applies when the user opted into downgrades; otherwise the
// requested quality stands and the device just works harder.
func (s *Scheduler) effectiveSettings(req media.Request, assessment capability.Assessment) media.EffectiveSettings {
	quality := req.Quality
	if s.cfg.Scheduler.AllowQualityDowngrade {
		quality = quality.AtMost(assessment.MaxQuality)
	}
	return media.EffectiveSettings{
		Quality:     quality,
		Format:      req.Format,
		Options:     req.Options,
		ThreadCount: assessment.ThreadBudget,
	}
}

// admitSession hands the session to the engine and moves it to PROCESSING.
// Runs on the orchestration goroutine.
func (s *Scheduler) admitSession(ctx context.Context, sess *session.Session, assessment capability.Assessment) error {
	effective := s.effectiveSettings(sess.Request, assessment)
	job := codec.Job{
		InputPath:      sess.Request.Input.Path,
		OutputPath:     sess.Request.OutputPath,
		Settings:       effective,
		InputDuration:  sess.Request.Input.Duration,
		InputFrameRate: sess.Request.Input.FrameRate,
	}

	startCtx, cancel := context.WithTimeout(ctx, s.ackTimeout)
	defer cancel()
	handle, err := s.engine.Start(startCtx, job)
	if err != nil {
		return err
	}

	if err := sess.Start(effective, time.Now().UTC()); err != nil {
		cancelCtx, cancelDone := context.WithTimeout(context.Background(), s.ackTimeout)
		defer cancelDone()
		_ = handle.Cancel(cancelCtx)
		return err
	}

	s.active[sess.ID] = &activeSlot{sess: sess, handle: handle}
	s.pump(sess.ID, handle)
	s.logger.Info("conversion started",
		logging.String(logging.FieldSessionID, sess.ID),
		logging.String(logging.FieldRequestID, sess.Request.ID),
		logging.String("quality", string(effective.Quality)),
		logging.Int("threads", effective.ThreadCount))
	return nil
}

// pump forwards one handle's event stream into the loop's event channel,
// tagged with the owning session id.
func (s *Scheduler) pump(sessionID string, handle codec.Handle) {
	s.pumps.Add(1)
	go func() {
		defer s.pumps.Done()
		for ev := range handle.Events() {
			select {
			case s.events <- taggedEvent{sessionID: sessionID, event: ev}:
			case <-s.stopped:
				return
			}
		}
	}()
}

// maybeAdmitNext admits queued sessions after a slot frees up, if the
// configuration allows automatic starts and the queue is not paused.
func (s *Scheduler) maybeAdmitNext(ctx context.Context) {
	if !s.autoStartQueue || s.queuePaused {
		return
	}
	s.admitFromQueue(ctx)
}

// admitFromQueue pops and starts queued sessions until capacity runs out, a
// device blocker pauses the queue, or the queue drains. Sessions the engine
// refuses to start fail individually without blocking those behind them.
func (s *Scheduler) admitFromQueue(ctx context.Context) int {
	started := 0
	for s.queue.len() > 0 {
		snapshot := s.provider.Read()
		assessment := capability.Assess(snapshot, s.facts)
		if len(s.active) >= s.slotLimit(assessment) {
			break
		}

		head := s.queue.peek()
		suit := capability.CheckSuitability(snapshot, head.sess.Request.EstimatedOutputBytes())
		if !suit.Suitable {
			s.queuePaused = true
			s.logger.Warn("queue paused until device conditions improve",
				logging.String("blockers", (&capability.NotSuitableError{Blockers: suit.Blockers}).Error()))
			break
		}

		entry := s.queue.pop()
		if err := s.admitSession(ctx, entry.sess, assessment); err != nil {
			s.failSession(entry.sess, err.Error())
			continue
		}
		started++
	}
	return started
}

// failSession force-fails a session the scheduler still owns and publishes
// the terminal event.
func (s *Scheduler) failSession(sess *session.Session, message string) {
	if err := sess.Fail(message, time.Now().UTC()); err != nil {
		s.logger.Error("could not fail session",
			logging.String(logging.FieldSessionID, sess.ID),
			logging.Error(err))
		return
	}
	s.notifyTerminal(sess)
}

// removePartialOutput deletes whatever the engine left at the output path
// after a failure or cancellation. Missing files are fine.
func (s *Scheduler) removePartialOutput(sess *session.Session) {
	path := sess.Request.OutputPath
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("could not remove partial output",
			logging.String("path", path),
			logging.Error(err))
	}
}
