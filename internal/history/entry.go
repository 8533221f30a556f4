package history

import (
	"time"

	"shrinkray/internal/media"
	"shrinkray/internal/session"
)

// Entry is one recorded terminal session.
type Entry struct {
	ID             int64
	SessionID      string
	RequestID      string
	InputPath      string
	OutputPath     string
	State          session.State
	Priority       media.Priority
	Quality        media.Quality
	Format         media.OutputFormat
	FailureMessage string
	InputBytes     int64
	OutputBytes    int64
	RetryCount     int
	CreatedAt      time.Time
	StartedAt      time.Time
	CompletedAt    time.Time
}

// Runtime returns how long the conversion ran, zero when it never started.
func (e Entry) Runtime() time.Duration {
	if e.StartedAt.IsZero() || e.CompletedAt.Before(e.StartedAt) {
		return 0
	}
	return e.CompletedAt.Sub(e.StartedAt)
}

// SizeReductionPercent returns how much smaller the output is than the
// input, zero when either size is unknown.
func (e Entry) SizeReductionPercent() float64 {
	if e.InputBytes <= 0 || e.OutputBytes <= 0 {
		return 0
	}
	return (1 - float64(e.OutputBytes)/float64(e.InputBytes)) * 100
}

// Stats summarizes the recorded history. SuccessRate is completed over all
// terminal entries, and zero (not NaN) when nothing has been recorded.
type Stats struct {
	Total            int
	Completed        int
	Failed           int
	Cancelled        int
	SuccessRate      float64
	TotalInputBytes  int64
	TotalOutputBytes int64
	AverageRuntime   time.Duration
}

func entryFromSession(sess *session.Session) Entry {
	entry := Entry{
		SessionID:      sess.ID,
		RequestID:      sess.Request.ID,
		InputPath:      sess.Request.Input.Path,
		OutputPath:     sess.Request.OutputPath,
		State:          sess.State,
		Priority:       sess.Request.Priority,
		Quality:        sess.Request.Quality,
		Format:         sess.Request.Format,
		FailureMessage: sess.FailureMessage,
		InputBytes:     sess.Request.Input.SizeBytes,
		RetryCount:     sess.RetryCount,
		CreatedAt:      sess.CreatedAt,
		StartedAt:      sess.StartedAt,
		CompletedAt:    sess.CompletedAt,
	}
	if sess.Effective.Quality != "" {
		entry.Quality = sess.Effective.Quality
	}
	if sess.Result != nil {
		entry.OutputBytes = sess.Result.OutputBytes
	}
	return entry
}
