package scheduler

import (
	"testing"
	"time"

	"shrinkray/internal/logging"
	"shrinkray/internal/media"
	"shrinkray/internal/session"
)

func queuedSession(t *testing.T, name string, priority media.Priority) *session.Session {
	t.Helper()
	input := media.InputFile{
		Path:      "/videos/" + name + ".mov",
		SizeBytes: 64 << 20,
		Codec:     "h264",
		Duration:  2 * time.Minute,
		FrameRate: 30,
	}
	req := media.NewRequest(input, "/videos/out/"+name+".mp4", media.QualityMedium, media.FormatMP4, media.Options{}, priority)
	sess, err := session.New(req, logging.NewNop())
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	return sess
}

func queueOrder(q *requestQueue) []string {
	order := make([]string, 0, q.len())
	for _, entry := range q.entries {
		order = append(order, entry.sess.Request.Input.Path)
	}
	return order
}

func TestQueuePriorityOrdering(t *testing.T) {
	var q requestQueue
	now := time.Now()

	q.push(queuedSession(t, "a-low", media.PriorityLow), now)
	q.push(queuedSession(t, "b-urgent", media.PriorityUrgent), now)
	q.push(queuedSession(t, "c-normal", media.PriorityNormal), now)
	q.push(queuedSession(t, "d-urgent", media.PriorityUrgent), now)

	want := []string{
		"/videos/b-urgent.mov",
		"/videos/d-urgent.mov",
		"/videos/c-normal.mov",
		"/videos/a-low.mov",
	}
	got := queueOrder(&q)
	if len(got) != len(want) {
		t.Fatalf("queue length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestQueueRemoveIdempotent(t *testing.T) {
	var q requestQueue
	sess := queuedSession(t, "only", media.PriorityNormal)
	q.push(sess, time.Now())

	if _, ok := q.removeByRequestID(sess.Request.ID); !ok {
		t.Fatal("first removal should report true")
	}
	if _, ok := q.removeByRequestID(sess.Request.ID); ok {
		t.Fatal("second removal should report false")
	}
	if q.len() != 0 {
		t.Fatalf("queue length = %d after removals", q.len())
	}
}

func TestQueueReorderToleratesStaleView(t *testing.T) {
	var q requestQueue
	now := time.Now()
	a := queuedSession(t, "a", media.PriorityNormal)
	b := queuedSession(t, "b", media.PriorityNormal)
	c := queuedSession(t, "c", media.PriorityNormal)
	q.push(a, now)
	q.push(b, now)
	q.push(c, now)

	// Stale permutation: references a removed entry, repeats an id, and
	// omits c entirely.
	q.reorder([]string{b.Request.ID, "gone", b.Request.ID, a.Request.ID})

	want := []string{"/videos/b.mov", "/videos/a.mov", "/videos/c.mov"}
	got := queueOrder(&q)
	if len(got) != len(want) {
		t.Fatalf("queue length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d = %s, want %s", i, got[i], want[i])
		}
	}
}
