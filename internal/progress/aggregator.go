// Package progress reduces raw codec engine ticks into the progress
// snapshots the rest of the system consumes. The aggregator enforces the
// monotonicity invariant: percentage never decreases across the lifetime of
// one session, and out-of-order ticks are clamped rather than propagated.
package progress

import (
	"log/slog"
	"math"
	"time"

	"shrinkray/internal/logging"
	"shrinkray/internal/media"
)

// Aggregator accumulates ticks for a single session. It is not safe for
// concurrent use; the orchestration goroutine owns it.
type Aggregator struct {
	logger    *slog.Logger
	startedAt time.Time
	last      media.Progress
	hasLast   bool
}

// NewAggregator creates an aggregator for a session that started processing
// at startedAt.
func NewAggregator(startedAt time.Time, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		logger:    logging.NewComponentLogger(logger, "progress"),
		startedAt: startedAt,
	}
}

// Reduce derives a progress snapshot from a raw tick taken at now. Frame
// counters drive the percentage when present; the duration pair drives the
// time-remaining estimate.
func (a *Aggregator) Reduce(tick media.Tick, now time.Time) media.Progress {
	percentage := percentageFromTick(tick)

	if a.hasLast && percentage < a.last.Percentage {
		a.logger.Debug("clamping out-of-order progress tick",
			logging.Float64("tick_percentage", percentage),
			logging.Float64("current_percentage", a.last.Percentage),
		)
		percentage = a.last.Percentage
	}

	snapshot := media.Progress{
		Percentage:        percentage,
		EstimatedTimeLeft: estimateRemaining(percentage, tick),
		SpeedRatio:        speedRatio(tick.ProcessedDuration, now.Sub(a.startedAt)),
		CurrentFrame:      tick.CurrentFrame,
		TotalFrames:       tick.TotalFrames,
		ProcessedDuration: tick.ProcessedDuration,
		TotalDuration:     tick.TotalDuration,
		UpdatedAt:         now,
	}

	a.last = snapshot
	a.hasLast = true
	return snapshot
}

// Last returns the most recent snapshot, or a zero snapshot before the first
// tick.
func (a *Aggregator) Last() media.Progress {
	return a.last
}

func percentageFromTick(tick media.Tick) float64 {
	var processed, total float64
	switch {
	case tick.TotalFrames > 0:
		processed = float64(tick.CurrentFrame)
		total = float64(tick.TotalFrames)
	case tick.TotalDuration > 0:
		processed = float64(tick.ProcessedDuration)
		total = float64(tick.TotalDuration)
	default:
		return 0
	}
	percentage := processed / total * 100
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}
	return math.Round(percentage*100) / 100
}

func estimateRemaining(percentage float64, tick media.Tick) time.Duration {
	switch {
	case percentage >= 100:
		return 0
	case percentage <= 0:
		// No data yet; assume the worst case.
		if tick.TotalDuration > 0 {
			return tick.TotalDuration
		}
		return 0
	default:
		remaining := tick.TotalDuration - tick.ProcessedDuration
		if remaining < 0 {
			return 0
		}
		return remaining
	}
}

// speedRatio is how much video duration is processed per unit of wall-clock
// time. A ratio above 1 means faster than realtime. Undefined (zero) when no
// wall-clock time has elapsed.
func speedRatio(processed, elapsed time.Duration) float64 {
	if elapsed <= 0 || processed <= 0 {
		return 0
	}
	return processed.Seconds() / elapsed.Seconds()
}
