package session_test

import (
	"errors"
	"testing"
	"time"

	"shrinkray/internal/logging"
	"shrinkray/internal/media"
	"shrinkray/internal/session"
)

func newSession(t *testing.T) *session.Session {
	t.Helper()
	request := media.NewRequest(
		media.InputFile{
			Path:        "/videos/input.mov",
			SizeBytes:   1 << 30,
			Duration:    2 * time.Minute,
			FrameWidth:  1920,
			FrameHeight: 1080,
		},
		"/videos/output.mp4",
		media.QualityHigh,
		media.FormatMP4,
		media.Options{},
		media.PriorityNormal,
	)
	sess, err := session.New(request, logging.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return sess
}

func startSession(t *testing.T, sess *session.Session) {
	t.Helper()
	err := sess.Start(media.EffectiveSettings{Quality: media.QualityHigh, Format: media.FormatMP4, ThreadCount: 2}, time.Now())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
}

func TestNewRejectsInvalidRequest(t *testing.T) {
	request := media.NewRequest(media.InputFile{}, "", media.Quality("bogus"), media.FormatMP4, media.Options{}, media.PriorityNormal)
	_, err := session.New(request, logging.NewNop())
	var verr *media.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestLifecycleHappyPath(t *testing.T) {
	sess := newSession(t)
	if sess.State != session.StateCreated {
		t.Fatalf("expected created, got %s", sess.State)
	}
	if err := sess.MarkValidated(); err != nil {
		t.Fatalf("MarkValidated failed: %v", err)
	}
	startSession(t, sess)
	if sess.State != session.StateProcessing {
		t.Fatalf("expected processing, got %s", sess.State)
	}

	if err := sess.ApplyProgress(media.Tick{CurrentFrame: 50, TotalFrames: 100}, time.Now()); err != nil {
		t.Fatalf("ApplyProgress failed: %v", err)
	}
	if sess.Progress.Percentage != 50 {
		t.Fatalf("expected 50%%, got %v", sess.Progress.Percentage)
	}

	result := media.Result{OutputPath: "/videos/output.mp4", OutputBytes: 100, InputBytes: 400}
	if err := sess.Complete(result, time.Now()); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if sess.State != session.StateCompleted {
		t.Fatalf("expected completed, got %s", sess.State)
	}
	if sess.Result == nil || sess.Result.OutputPath != "/videos/output.mp4" {
		t.Fatalf("expected result recorded, got %+v", sess.Result)
	}
	if sess.Progress.Percentage != 100 {
		t.Fatalf("expected progress forced to 100, got %v", sess.Progress.Percentage)
	}
}

func TestPauseOnlyFromProcessing(t *testing.T) {
	sess := newSession(t)
	err := sess.Pause()
	var invalid *session.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError pausing created session, got %v", err)
	}
	if invalid.From != session.StateCreated {
		t.Fatalf("expected from=created, got %s", invalid.From)
	}

	startSession(t, sess)
	if err := sess.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	// Pausing again is a caller bug, not a no-op.
	if err := sess.Pause(); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError on double pause, got %v", err)
	}
	if err := sess.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if err := sess.Resume(); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError on double resume, got %v", err)
	}
}

func TestCancelFromPausedSucceeds(t *testing.T) {
	sess := newSession(t)
	startSession(t, sess)
	if err := sess.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if err := sess.Cancel(time.Now()); err != nil {
		t.Fatalf("Cancel from paused failed: %v", err)
	}
	if sess.State != session.StateCancelled {
		t.Fatalf("expected cancelled, got %s", sess.State)
	}
}

func TestCancelTerminalRejected(t *testing.T) {
	sess := newSession(t)
	startSession(t, sess)
	if err := sess.Complete(media.Result{OutputPath: "/videos/output.mp4"}, time.Now()); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	var invalid *session.InvalidTransitionError
	if err := sess.Cancel(time.Now()); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError cancelling completed session, got %v", err)
	}
}

func TestCompletePreconditions(t *testing.T) {
	sess := newSession(t)
	startSession(t, sess)
	if err := sess.Complete(media.Result{}, time.Now()); err == nil {
		t.Fatal("expected error without output descriptor")
	}
	if err := sess.Complete(media.Result{OutputPath: "/out.mp4"}, time.Time{}); err == nil {
		t.Fatal("expected error without end time")
	}
	if sess.State != session.StateProcessing {
		t.Fatalf("failed preconditions must not change state, got %s", sess.State)
	}
}

func TestFailFromAnyNonTerminal(t *testing.T) {
	for _, setup := range []struct {
		name    string
		prepare func(t *testing.T, s *session.Session)
	}{
		{"created", func(*testing.T, *session.Session) {}},
		{"processing", func(t *testing.T, s *session.Session) { startSession(t, s) }},
		{"paused", func(t *testing.T, s *session.Session) {
			startSession(t, s)
			if err := s.Pause(); err != nil {
				t.Fatalf("Pause failed: %v", err)
			}
		}},
	} {
		t.Run(setup.name, func(t *testing.T) {
			sess := newSession(t)
			setup.prepare(t, sess)
			if err := sess.Fail("encoder crashed", time.Now()); err != nil {
				t.Fatalf("Fail failed: %v", err)
			}
			if sess.State != session.StateFailed {
				t.Fatalf("expected failed, got %s", sess.State)
			}
			if sess.FailureMessage != "encoder crashed" {
				t.Fatalf("expected failure message recorded, got %q", sess.FailureMessage)
			}
		})
	}
}

func TestApplyProgressRequiresProcessing(t *testing.T) {
	sess := newSession(t)
	var invalid *session.InvalidTransitionError
	if err := sess.ApplyProgress(media.Tick{CurrentFrame: 1, TotalFrames: 2}, time.Now()); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
}

func TestParseState(t *testing.T) {
	state, ok := session.ParseState(" Processing ")
	if !ok || state != session.StateProcessing {
		t.Fatalf("ParseState = %q, %v", state, ok)
	}
	if _, ok := session.ParseState("exploded"); ok {
		t.Fatal("expected unknown state to be rejected")
	}
}

func TestNewCarriesRequestRetryCount(t *testing.T) {
	request := media.NewRequest(
		media.InputFile{
			Path:        "/videos/input.mov",
			SizeBytes:   1 << 30,
			Duration:    2 * time.Minute,
			FrameWidth:  1920,
			FrameHeight: 1080,
		},
		"/videos/output.mp4",
		media.QualityHigh,
		media.FormatMP4,
		media.Options{},
		media.PriorityNormal,
	)
	request.RetryCount = 2

	sess, err := session.New(request, logging.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if sess.RetryCount != 2 {
		t.Fatalf("retry count = %d, want 2", sess.RetryCount)
	}
}
