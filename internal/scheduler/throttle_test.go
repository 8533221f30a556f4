package scheduler_test

import (
	"context"
	"errors"
	"testing"

	"shrinkray/internal/media"
	"shrinkray/internal/resource"
	"shrinkray/internal/session"
)

func thermalSnapshot(state resource.ThermalState, throttle int) resource.Snapshot {
	snapshot := healthySnapshot()
	snapshot.Thermal = resource.Thermal{State: state, ThrottleLevel: throttle}
	return snapshot
}

func TestThermalCriticalPausesAndCooldownResumes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	receipt, err := f.sched.Submit(ctx, newRequest(t, f.dir, "clip", media.PriorityNormal))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	f.provider.Set(thermalSnapshot(resource.ThermalCritical, 4))
	if err := f.sched.CheckDeviceConditions(ctx); err != nil {
		t.Fatalf("CheckDeviceConditions: %v", err)
	}
	view, err := f.sched.Session(ctx, receipt.SessionID)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if view.State != session.StatePaused {
		t.Fatalf("state = %s, want %s", view.State, session.StatePaused)
	}

	f.provider.Set(thermalSnapshot(resource.ThermalNominal, 0))
	if err := f.sched.CheckDeviceConditions(ctx); err != nil {
		t.Fatalf("CheckDeviceConditions: %v", err)
	}
	view, err = f.sched.Session(ctx, receipt.SessionID)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if view.State != session.StateProcessing {
		t.Fatalf("state = %s, want %s", view.State, session.StateProcessing)
	}
}

func TestCooldownLeavesUserPauseAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	receipt, err := f.sched.Submit(ctx, newRequest(t, f.dir, "clip", media.PriorityNormal))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := f.sched.Pause(ctx, receipt.SessionID); err != nil {
		t.Fatalf("Pause: %v", err)
	}

	// A cooldown check must not resume a session the user paused.
	if err := f.sched.CheckDeviceConditions(ctx); err != nil {
		t.Fatalf("CheckDeviceConditions: %v", err)
	}
	view, err := f.sched.Session(ctx, receipt.SessionID)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if view.State != session.StatePaused {
		t.Fatalf("state = %s, want %s", view.State, session.StatePaused)
	}
}

func TestThermalEmergencyCancelsActiveWork(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	receipt, err := f.sched.Submit(ctx, newRequest(t, f.dir, "clip", media.PriorityNormal))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	queued := newRequest(t, f.dir, "waiting", media.PriorityNormal)
	if _, err := f.sched.Submit(ctx, queued); err != nil {
		t.Fatalf("Submit queued: %v", err)
	}

	f.provider.Set(thermalSnapshot(resource.ThermalEmergency, 5))
	if err := f.sched.CheckDeviceConditions(ctx); err != nil {
		t.Fatalf("CheckDeviceConditions: %v", err)
	}

	sess := f.waitTerminal(t)
	if sess.ID != receipt.SessionID {
		t.Fatalf("terminal session = %s, want %s", sess.ID, receipt.SessionID)
	}
	if sess.State != session.StateCancelled {
		t.Fatalf("state = %s, want %s", sess.State, session.StateCancelled)
	}

	// The queued session survives but stays blocked until conditions
	// improve.
	status, err := f.sched.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.QueuePaused {
		t.Fatal("queue should pause after an emergency stop")
	}
	if len(status.Queue) != 1 {
		t.Fatalf("queue length = %d, want 1", len(status.Queue))
	}

	f.provider.Set(thermalSnapshot(resource.ThermalNominal, 0))
	if err := f.sched.CheckDeviceConditions(ctx); err != nil {
		t.Fatalf("CheckDeviceConditions: %v", err)
	}
	waitFor(t, "queued session to admit after cooldown", func() bool {
		return f.engine.jobCount() == 2
	})
	if got := f.engine.job(1).InputPath; got != queued.Input.Path {
		t.Fatalf("admitted %s, want %s", got, queued.Input.Path)
	}
}

func TestThermalPauseEngineErrorKeepsMessage(t *testing.T) {
	f := newFixture(t)
	f.engine.pauseErr = errors.New("progress pipe closed")
	ctx := context.Background()

	if _, err := f.sched.Submit(ctx, newRequest(t, f.dir, "clip", media.PriorityNormal)); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	f.provider.Set(thermalSnapshot(resource.ThermalCritical, 4))
	if err := f.sched.CheckDeviceConditions(ctx); err != nil {
		t.Fatalf("CheckDeviceConditions: %v", err)
	}

	sess := f.waitTerminal(t)
	if sess.State != session.StateFailed {
		t.Fatalf("state = %s, want %s", sess.State, session.StateFailed)
	}
	if sess.FailureMessage != "progress pipe closed" {
		t.Fatalf("failure message = %q, want the engine error verbatim", sess.FailureMessage)
	}
}
