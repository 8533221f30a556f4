package media

import (
	"time"

	"github.com/google/uuid"
)

// InputFile describes the source of a conversion.
type InputFile struct {
	Path        string
	SizeBytes   int64
	Codec       string
	Duration    time.Duration
	FrameWidth  int
	FrameHeight int
	FrameRate   float64
}

// TrimWindow restricts conversion to a slice of the input timeline.
type TrimWindow struct {
	Start time.Duration
	End   time.Duration
}

// CropRect restricts conversion to a rectangle inside the input frame.
type CropRect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Options carries optional per-request conversion parameters. Zero values
// mean "engine default".
type Options struct {
	Trim         *TrimWindow
	Crop         *CropRect
	BitrateKbps  int
	FrameRate    float64
	RemoveAudio  bool
	PreserveMeta bool
}

// Request is an immutable description of one requested conversion. Construct
// it with NewRequest and treat the fields as read-only afterwards.
type Request struct {
	ID         string
	Input      InputFile
	OutputPath string
	Quality    Quality
	Format     OutputFormat
	Options    Options
	Priority   Priority
	CreatedAt  time.Time

	// RetryCount counts prior attempts of the same logical request. Zero
	// for a fresh submission; resubmission of a failed request bumps it.
	RetryCount int
}

// NewRequest assembles a request with a fresh id and creation timestamp.
// It does not validate; call Validate before handing the request to the
// scheduler.
func NewRequest(input InputFile, outputPath string, quality Quality, format OutputFormat, options Options, priority Priority) Request {
	return Request{
		ID:         uuid.NewString(),
		Input:      input,
		OutputPath: outputPath,
		Quality:    quality,
		Format:     format,
		Options:    options,
		Priority:   priority,
		CreatedAt:  time.Now().UTC(),
	}
}

// EstimatedOutputBytes predicts how large the converted output will be.
func (r Request) EstimatedOutputBytes() int64 {
	return EstimateOutputSize(r.Input.SizeBytes, r.Quality)
}

// EffectiveSettings is what the scheduler hands to the codec engine after
// admission: the request's options plus the quality the device can actually
// sustain and the thread budget picked for it.
type EffectiveSettings struct {
	Quality     Quality
	Format      OutputFormat
	Options     Options
	ThreadCount int
}
