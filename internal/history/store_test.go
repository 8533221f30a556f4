package history_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"shrinkray/internal/logging"
	"shrinkray/internal/media"
	"shrinkray/internal/session"
	"shrinkray/internal/testsupport"
)

type outcome string

const (
	outcomeCompleted outcome = "completed"
	outcomeFailed    outcome = "failed"
	outcomeCancelled outcome = "cancelled"
)

func terminalSession(t *testing.T, dir, name string, result outcome) *session.Session {
	t.Helper()

	input := media.InputFile{
		Path:      filepath.Join(dir, name+".mov"),
		SizeBytes: 100 << 20,
		Codec:     "h264",
		Duration:  2 * time.Minute,
		FrameRate: 30,
	}
	req := media.NewRequest(input, filepath.Join(dir, name+".mp4"), media.QualityMedium, media.FormatMP4, media.Options{}, media.PriorityNormal)
	sess, err := session.New(req, logging.NewNop())
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	if err := sess.MarkValidated(); err != nil {
		t.Fatalf("MarkValidated: %v", err)
	}

	start := time.Now().UTC().Add(-time.Minute)
	effective := media.EffectiveSettings{Quality: req.Quality, Format: req.Format, ThreadCount: 4}
	if err := sess.Start(effective, start); err != nil {
		t.Fatalf("Start: %v", err)
	}
	end := start.Add(time.Minute)

	switch result {
	case outcomeCompleted:
		err = sess.Complete(media.Result{
			OutputPath:  req.OutputPath,
			OutputBytes: 25 << 20,
			InputBytes:  input.SizeBytes,
			Duration:    time.Minute,
			Quality:     req.Quality,
			Format:      req.Format,
		}, end)
	case outcomeFailed:
		err = sess.Fail("encoder crashed", end)
	case outcomeCancelled:
		err = sess.Cancel(end)
	}
	if err != nil {
		t.Fatalf("terminal transition %s: %v", result, err)
	}
	return sess
}

func TestRecordAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	sess := terminalSession(t, cfg.Paths.OutputDir, "clip", outcomeCompleted)
	if _, err := store.Record(ctx, sess); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entry, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry == nil {
		t.Fatal("expected a recorded entry")
	}
	if entry.State != session.StateCompleted {
		t.Errorf("state = %s, want %s", entry.State, session.StateCompleted)
	}
	if entry.InputBytes != 100<<20 || entry.OutputBytes != 25<<20 {
		t.Errorf("sizes = %d/%d, want %d/%d", entry.InputBytes, entry.OutputBytes, int64(100<<20), int64(25<<20))
	}
	if got := entry.SizeReductionPercent(); got != 75 {
		t.Errorf("size reduction = %v, want 75", got)
	}
	if got := entry.Runtime(); got != time.Minute {
		t.Errorf("runtime = %v, want %v", got, time.Minute)
	}
}

func TestGetUnknownSessionReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	entry, err := store.Get(context.Background(), "no-such-session")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry != nil {
		t.Fatalf("entry = %+v, want nil", entry)
	}
}

func TestRecordIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	sess := terminalSession(t, cfg.Paths.OutputDir, "clip", outcomeFailed)
	for i := 0; i < 2; i++ {
		if _, err := store.Record(ctx, sess); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	entries, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].FailureMessage != "encoder crashed" {
		t.Errorf("failure message = %q", entries[0].FailureMessage)
	}
}

func TestRecordRejectsNonTerminalSession(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	input := media.InputFile{
		Path:      filepath.Join(cfg.Paths.OutputDir, "clip.mov"),
		SizeBytes: 1 << 20,
		Codec:     "h264",
		Duration:  time.Minute,
		FrameRate: 30,
	}
	req := media.NewRequest(input, filepath.Join(cfg.Paths.OutputDir, "clip.mp4"), media.QualityMedium, media.FormatMP4, media.Options{}, media.PriorityNormal)
	sess, err := session.New(req, logging.NewNop())
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}

	if _, err := store.Record(context.Background(), sess); err == nil {
		t.Fatal("recording a non-terminal session should error")
	}
}

func TestStatsSuccessRate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	empty, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if empty.SuccessRate != 0 {
		t.Fatalf("empty success rate = %v, want 0", empty.SuccessRate)
	}

	outcomes := []outcome{outcomeCompleted, outcomeCompleted, outcomeFailed, outcomeCancelled}
	for i, result := range outcomes {
		sess := terminalSession(t, cfg.Paths.OutputDir, string(result)+string(rune('a'+i)), result)
		if _, err := store.Record(ctx, sess); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 4 || stats.Completed != 2 || stats.Failed != 1 || stats.Cancelled != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.SuccessRate != 0.5 {
		t.Errorf("success rate = %v, want 0.5", stats.SuccessRate)
	}
	if stats.AverageRuntime != time.Minute {
		t.Errorf("average runtime = %v, want %v", stats.AverageRuntime, time.Minute)
	}
}

func TestClear(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for _, name := range []string{"one", "two"} {
		sess := terminalSession(t, cfg.Paths.OutputDir, name, outcomeCompleted)
		if _, err := store.Record(ctx, sess); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	removed, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}

	entries, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries = %d after clear", len(entries))
	}
}

func TestFindRequestReturnsNewestAttempt(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := terminalSession(t, cfg.Paths.OutputDir, "clip", outcomeFailed)
	if _, err := store.Record(ctx, first); err != nil {
		t.Fatalf("Record first attempt: %v", err)
	}

	retryReq := first.Request
	retryReq.RetryCount = first.RetryCount + 1
	retry, err := session.New(retryReq, logging.NewNop())
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	if err := retry.MarkValidated(); err != nil {
		t.Fatalf("MarkValidated: %v", err)
	}
	start := time.Now().UTC()
	effective := media.EffectiveSettings{Quality: retryReq.Quality, Format: retryReq.Format, ThreadCount: 4}
	if err := retry.Start(effective, start); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := retry.Fail("encoder crashed again", start.Add(time.Minute)); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if _, err := store.Record(ctx, retry); err != nil {
		t.Fatalf("Record retry attempt: %v", err)
	}

	entry, err := store.FindRequest(ctx, first.Request.ID)
	if err != nil {
		t.Fatalf("FindRequest: %v", err)
	}
	if entry == nil {
		t.Fatal("expected an entry for the request")
	}
	if entry.SessionID != retry.ID {
		t.Errorf("session id = %s, want the retry attempt %s", entry.SessionID, retry.ID)
	}
	if entry.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", entry.RetryCount)
	}

	missing, err := store.FindRequest(ctx, "not-a-request")
	if err != nil {
		t.Fatalf("FindRequest for unknown id: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for an unknown request, got %+v", missing)
	}
}
