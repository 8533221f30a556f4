package scheduler

import (
	"context"
	"errors"
	"time"

	"shrinkray/internal/capability"
	"shrinkray/internal/logging"
	"shrinkray/internal/media"
	"shrinkray/internal/session"
)

// Receipt is what a successful Submit returns. Started reports whether the
// session went straight to a slot; when false QueuePosition says where it
// landed in the queue.
type Receipt struct {
	SessionID     string
	RequestID     string
	Started       bool
	QueuePosition int
	Warnings      []string
}

// Submit validates the request, checks device suitability, and either
// starts the conversion immediately or queues it. A hard device blocker
// returns a *capability.NotSuitableError synchronously and the request is
// neither admitted nor queued.
func (s *Scheduler) Submit(ctx context.Context, req media.Request) (Receipt, error) {
	var (
		receipt Receipt
		opErr   error
	)
	err := s.do(ctx, func() {
		receipt, opErr = s.submit(ctx, req)
	})
	if err != nil {
		return Receipt{}, err
	}
	return receipt, opErr
}

func (s *Scheduler) submit(ctx context.Context, req media.Request) (Receipt, error) {
	sess, err := session.New(req, s.logger)
	if err != nil {
		return Receipt{}, err
	}

	snapshot := s.provider.Read()
	suit := capability.CheckSuitability(snapshot, req.EstimatedOutputBytes())
	if err := suit.Err(); err != nil {
		return Receipt{}, err
	}
	if err := sess.MarkValidated(); err != nil {
		return Receipt{}, err
	}

	// A fresh submit passing the suitability check is evidence conditions
	// improved, so a blocked queue wakes back up.
	if s.queuePaused {
		s.queuePaused = false
		s.maybeAdmitNext(ctx)
	}

	receipt := Receipt{
		SessionID: sess.ID,
		RequestID: req.ID,
		Warnings:  suit.Warnings,
	}

	assessment := capability.Assess(snapshot, s.facts)
	if s.autoStartQueue && s.queue.len() == 0 && len(s.active) < s.slotLimit(assessment) {
		if err := s.admitSession(ctx, sess, assessment); err != nil {
			s.failSession(sess, err.Error())
			return Receipt{}, err
		}
		receipt.Started = true
		return receipt, nil
	}

	receipt.QueuePosition = s.queue.push(sess, time.Now().UTC())
	s.logger.Info("request queued",
		logging.String(logging.FieldSessionID, sess.ID),
		logging.String(logging.FieldRequestID, req.ID),
		logging.String("priority", req.Priority.String()),
		logging.Int("position", receipt.QueuePosition))
	return receipt, nil
}

// StartQueued explicitly admits the queue head. It works even while the
// queue is paused; a successful start clears the pause. With every slot
// occupied it returns an *AlreadyActiveError naming one active session.
func (s *Scheduler) StartQueued(ctx context.Context) (string, error) {
	var (
		sessionID string
		opErr     error
	)
	err := s.do(ctx, func() {
		sessionID, opErr = s.startQueued(ctx)
	})
	if err != nil {
		return "", err
	}
	return sessionID, opErr
}

func (s *Scheduler) startQueued(ctx context.Context) (string, error) {
	head := s.queue.peek()
	if head == nil {
		return "", ErrQueueEmpty
	}

	snapshot := s.provider.Read()
	assessment := capability.Assess(snapshot, s.facts)
	if len(s.active) >= s.slotLimit(assessment) {
		var activeID string
		for id := range s.active {
			activeID = id
			break
		}
		return "", &AlreadyActiveError{ActiveID: activeID}
	}

	suit := capability.CheckSuitability(snapshot, head.sess.Request.EstimatedOutputBytes())
	if err := suit.Err(); err != nil {
		return "", err
	}

	entry := s.queue.pop()
	if err := s.admitSession(ctx, entry.sess, assessment); err != nil {
		s.failSession(entry.sess, err.Error())
		return "", err
	}
	s.queuePaused = false
	return entry.sess.ID, nil
}

// Pause suspends an active session. The engine must acknowledge within the
// ack timeout or the session is force-failed.
func (s *Scheduler) Pause(ctx context.Context, sessionID string) error {
	var opErr error
	err := s.do(ctx, func() {
		opErr = s.pauseActive(ctx, sessionID)
	})
	if err != nil {
		return err
	}
	return opErr
}

func (s *Scheduler) pauseActive(ctx context.Context, sessionID string) error {
	slot, ok := s.active[sessionID]
	if !ok {
		return ErrUnknownSession
	}
	if slot.sess.State != session.StateProcessing {
		return slot.sess.Pause()
	}

	ackCtx, cancel := context.WithTimeout(ctx, s.ackTimeout)
	err := slot.handle.Pause(ackCtx)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			terr := &TimeoutError{Op: "pause", SessionID: sessionID}
			s.forceFail(ctx, sessionID, terr.Error())
			return terr
		}
		s.forceFail(ctx, sessionID, err.Error())
		return err
	}
	return slot.sess.Pause()
}

// Resume continues a paused session, including one the throttle check
// paused. Same ack rules as Pause.
func (s *Scheduler) Resume(ctx context.Context, sessionID string) error {
	var opErr error
	err := s.do(ctx, func() {
		opErr = s.resumeActive(ctx, sessionID)
	})
	if err != nil {
		return err
	}
	return opErr
}

func (s *Scheduler) resumeActive(ctx context.Context, sessionID string) error {
	slot, ok := s.active[sessionID]
	if !ok {
		return ErrUnknownSession
	}
	if slot.sess.State != session.StatePaused {
		return slot.sess.Resume()
	}

	ackCtx, cancel := context.WithTimeout(ctx, s.ackTimeout)
	err := slot.handle.Resume(ackCtx)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			terr := &TimeoutError{Op: "resume", SessionID: sessionID}
			s.forceFail(ctx, sessionID, terr.Error())
			return terr
		}
		s.forceFail(ctx, sessionID, err.Error())
		return err
	}
	slot.pausedForThermal = false
	return slot.sess.Resume()
}

// Cancel aborts a session whether it is active or still queued. Partial
// output is removed.
func (s *Scheduler) Cancel(ctx context.Context, sessionID string) error {
	var opErr error
	err := s.do(ctx, func() {
		opErr = s.cancelSession(ctx, sessionID)
	})
	if err != nil {
		return err
	}
	return opErr
}

func (s *Scheduler) cancelSession(ctx context.Context, sessionID string) error {
	now := time.Now().UTC()

	if slot, ok := s.active[sessionID]; ok {
		ackCtx, cancel := context.WithTimeout(ctx, s.ackTimeout)
		err := slot.handle.Cancel(ackCtx)
		cancel()
		if err != nil && errors.Is(err, context.DeadlineExceeded) {
			terr := &TimeoutError{Op: "cancel", SessionID: sessionID}
			s.forceFail(ctx, sessionID, terr.Error())
			return terr
		}
		s.removePartialOutput(slot.sess)
		if err := slot.sess.Cancel(now); err != nil {
			return err
		}
		delete(s.active, sessionID)
		s.notifyTerminal(slot.sess)
		s.maybeAdmitNext(ctx)
		return nil
	}

	if entry, ok := s.queue.removeBySessionID(sessionID); ok {
		if err := entry.sess.Cancel(now); err != nil {
			return err
		}
		s.notifyTerminal(entry.sess)
		return nil
	}
	return ErrUnknownSession
}

// CancelQueued removes a queued request by its request id. Cancelling a
// request that is not queued is not an error; the result reports whether
// anything was removed.
func (s *Scheduler) CancelQueued(ctx context.Context, requestID string) (bool, error) {
	var removed bool
	err := s.do(ctx, func() {
		entry, ok := s.queue.removeByRequestID(requestID)
		if !ok {
			return
		}
		if cerr := entry.sess.Cancel(time.Now().UTC()); cerr == nil {
			s.notifyTerminal(entry.sess)
		}
		removed = true
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// Reorder replaces the queue order with the given request-id permutation.
// Stale ids are dropped; omitted entries keep their relative order at the
// tail.
func (s *Scheduler) Reorder(ctx context.Context, requestIDs []string) error {
	return s.do(ctx, func() {
		s.queue.reorder(requestIDs)
	})
}

// RetryQueue clears a blocker pause and attempts admission again. When the
// device is still blocked the queue stays paused and the blockers come back
// as a *capability.NotSuitableError.
func (s *Scheduler) RetryQueue(ctx context.Context) (int, error) {
	var (
		started int
		opErr   error
	)
	err := s.do(ctx, func() {
		started, opErr = s.retryQueueLocked(ctx)
	})
	if err != nil {
		return 0, err
	}
	return started, opErr
}

// CheckDeviceConditions runs the thermal pressure check immediately instead
// of waiting for the next ticker interval. Emergency heat cancels active
// work, critical heat pauses it, and a cooled-down device resumes sessions
// the scheduler paused.
func (s *Scheduler) CheckDeviceConditions(ctx context.Context) error {
	return s.do(ctx, func() {
		s.checkThermalPressure(ctx)
	})
}

func (s *Scheduler) retryQueueLocked(ctx context.Context) (int, error) {
	s.queuePaused = false
	if s.queue.len() == 0 {
		return 0, nil
	}
	started := s.admitFromQueue(ctx)
	if s.queuePaused {
		head := s.queue.peek()
		snapshot := s.provider.Read()
		suit := capability.CheckSuitability(snapshot, head.sess.Request.EstimatedOutputBytes())
		return started, suit.Err()
	}
	return started, nil
}
