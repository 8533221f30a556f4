package scheduler

import (
	"time"

	"shrinkray/internal/media"
	"shrinkray/internal/session"
)

// pendingEntry wraps a queued session with its enqueue metadata.
type pendingEntry struct {
	sess       *session.Session
	enqueuedAt time.Time
	seq        uint64
}

// requestQueue keeps pending sessions ordered by priority, FIFO within a
// priority band. It is owned by the orchestration goroutine.
type requestQueue struct {
	entries []*pendingEntry
	nextSeq uint64
}

// push inserts the session behind the last entry of equal or higher
// priority, preserving FIFO order within the band.
func (q *requestQueue) push(sess *session.Session, now time.Time) int {
	entry := &pendingEntry{sess: sess, enqueuedAt: now, seq: q.nextSeq}
	q.nextSeq++

	insert := len(q.entries)
	for i := len(q.entries) - 1; i >= 0; i-- {
		if q.entries[i].sess.Request.Priority >= sess.Request.Priority {
			break
		}
		insert = i
	}
	q.entries = append(q.entries, nil)
	copy(q.entries[insert+1:], q.entries[insert:])
	q.entries[insert] = entry
	return insert
}

// peek returns the head entry without removing it.
func (q *requestQueue) peek() *pendingEntry {
	if len(q.entries) == 0 {
		return nil
	}
	return q.entries[0]
}

// pop removes and returns the head entry.
func (q *requestQueue) pop() *pendingEntry {
	if len(q.entries) == 0 {
		return nil
	}
	head := q.entries[0]
	q.entries = append(q.entries[:0], q.entries[1:]...)
	return head
}

// removeByRequestID removes the entry whose request carries the id. The
// boolean result reports whether anything was removed; absence is not an
// error so removal stays idempotent.
func (q *requestQueue) removeByRequestID(requestID string) (*pendingEntry, bool) {
	for i, entry := range q.entries {
		if entry.sess.Request.ID == requestID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return entry, true
		}
	}
	return nil, false
}

// reorder replaces the queue order with the supplied request-id permutation.
// Ids that reference nothing are dropped silently (the caller's view may be
// stale); queued entries the permutation omits keep their relative order
// behind the permuted ones so no request is ever lost by a stale reorder.
func (q *requestQueue) reorder(requestIDs []string) {
	byID := make(map[string]*pendingEntry, len(q.entries))
	for _, entry := range q.entries {
		byID[entry.sess.Request.ID] = entry
	}

	next := make([]*pendingEntry, 0, len(q.entries))
	seen := make(map[string]struct{}, len(requestIDs))
	for _, id := range requestIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if entry, ok := byID[id]; ok {
			next = append(next, entry)
		}
	}
	for _, entry := range q.entries {
		if _, ok := seen[entry.sess.Request.ID]; !ok {
			next = append(next, entry)
		}
	}
	q.entries = next
}

// removeBySessionID removes the entry owning the session id.
func (q *requestQueue) removeBySessionID(sessionID string) (*pendingEntry, bool) {
	for i, entry := range q.entries {
		if entry.sess.ID == sessionID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return entry, true
		}
	}
	return nil, false
}

func (q *requestQueue) len() int { return len(q.entries) }

// contains reports whether a request id is queued. The queue never contains
// the request bound to an active session; admission pops before starting.
func (q *requestQueue) contains(requestID string) bool {
	for _, entry := range q.entries {
		if entry.sess.Request.ID == requestID {
			return true
		}
	}
	return false
}

// snapshotEntries returns a copy of the queue for status views.
func (q *requestQueue) snapshotEntries() []QueueEntry {
	views := make([]QueueEntry, 0, len(q.entries))
	for position, entry := range q.entries {
		views = append(views, QueueEntry{
			Position:   position,
			RequestID:  entry.sess.Request.ID,
			SessionID:  entry.sess.ID,
			InputPath:  entry.sess.Request.Input.Path,
			Priority:   entry.sess.Request.Priority,
			EnqueuedAt: entry.enqueuedAt,
		})
	}
	return views
}

// QueueEntry is a read-only view of one queued request.
type QueueEntry struct {
	Position   int
	RequestID  string
	SessionID  string
	InputPath  string
	Priority   media.Priority
	EnqueuedAt time.Time
}
