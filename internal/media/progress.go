package media

import "time"

// Tick is one raw progress event from the codec engine. Either the frame
// counters or the duration pair may be populated; a well-behaved engine
// sends both.
type Tick struct {
	CurrentFrame      int64
	TotalFrames       int64
	ProcessedDuration time.Duration
	TotalDuration     time.Duration
}

// Progress is a derived progress snapshot with the guarantees the UI layer
// relies on: percentage within [0, 100] and non-decreasing for the lifetime
// of a session.
type Progress struct {
	Percentage        float64
	EstimatedTimeLeft time.Duration
	SpeedRatio        float64
	CurrentFrame      int64
	TotalFrames       int64
	ProcessedDuration time.Duration
	TotalDuration     time.Duration
	UpdatedAt         time.Time
}

// Result describes a finished conversion.
type Result struct {
	OutputPath  string
	OutputBytes int64
	InputBytes  int64
	Duration    time.Duration
	Quality     Quality
	Format      OutputFormat
}

// SizeReductionPercent reports how much smaller the output is than the input.
func (r Result) SizeReductionPercent() float64 {
	if r.InputBytes <= 0 {
		return 0
	}
	reduction := 1 - float64(r.OutputBytes)/float64(r.InputBytes)
	if reduction < 0 {
		return 0
	}
	return reduction * 100
}
