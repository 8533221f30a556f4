package scheduler

import (
	"context"
	"time"

	"shrinkray/internal/logging"
	"shrinkray/internal/session"
)

// Start launches the orchestration goroutine. It returns immediately; the
// scheduler is ready to accept commands once Start returns. Cancelling ctx
// shuts the scheduler down the same way Stop does.
func (s *Scheduler) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.run(runCtx)
	s.logger.Info("scheduler started",
		logging.Int("slots", s.slots),
		logging.Bool("auto_start_queue", s.autoStartQueue))
	return nil
}

// Stop cancels active sessions, drains engine shutdown, and stops the
// orchestration goroutine. Queued sessions are cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	var stopErr error
	s.stopOnce.Do(func() {
		err := s.do(ctx, func() {
			s.shutdown(ctx)
		})
		if err != nil && err != ErrNotRunning {
			stopErr = err
		}
		close(s.stopped)
		if s.cancel != nil {
			s.cancel()
		}
		select {
		case <-s.loopDone:
		case <-ctx.Done():
			stopErr = ctx.Err()
		}
	})
	return stopErr
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.loopDone)

	var throttleC <-chan time.Time
	if s.throttleInterval > 0 {
		ticker := time.NewTicker(s.throttleInterval)
		defer ticker.Stop()
		throttleC = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			// Stop already ran shutdown through the command channel; a
			// cancelled parent context has not, and shutdown is a no-op
			// the second time around. Keep draining events while the
			// pumps wind down so none of them blocks on a full buffer.
			s.shutdown(context.Background())
			pumpsDone := make(chan struct{})
			go func() {
				s.pumps.Wait()
				close(pumpsDone)
			}()
			for {
				select {
				case <-s.events:
				case <-pumpsDone:
					s.drainEvents()
					return
				}
			}
		case cmd := <-s.commands:
			cmd()
		case ev := <-s.events:
			s.handleEngineEvent(ctx, ev)
		case <-throttleC:
			s.checkThermalPressure(ctx)
		}
	}
}

// shutdown runs on the orchestration goroutine. It cancels every active
// session and the whole queue so no work is left dangling.
func (s *Scheduler) shutdown(ctx context.Context) {
	now := time.Now()
	for id, slot := range s.active {
		if err := slot.handle.Cancel(ctx); err != nil {
			s.logger.Warn("engine cancel during shutdown failed",
				logging.String(logging.FieldSessionID, id),
				logging.Error(err))
		}
		if err := slot.sess.Cancel(now); err == nil {
			s.notifyTerminal(slot.sess)
		}
		delete(s.active, id)
	}
	for {
		entry := s.queue.pop()
		if entry == nil {
			break
		}
		if err := entry.sess.Cancel(now); err == nil {
			s.notifyTerminal(entry.sess)
		}
	}
}

// drainEvents discards any engine events still buffered after pumps exit.
func (s *Scheduler) drainEvents() {
	for {
		select {
		case <-s.events:
		default:
			return
		}
	}
}

func (s *Scheduler) notifyTerminal(sess *session.Session) {
	s.terminal = append(s.terminal, sess)
	for _, fn := range s.subscribers {
		fn(sess)
	}
}
