package media

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidationError reports every invariant a request violates, not just the
// first. Callers can surface the full list to the user in one pass.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Violations) == 0 {
		return "invalid conversion request"
	}
	return "invalid conversion request: " + strings.Join(e.Violations, "; ")
}

// Validate checks the request against the construction invariants: known
// quality and format, output extension matching the format, trim window
// inside the input duration, and crop rectangle inside the frame bounds.
// It returns nil when the request is valid and a *ValidationError listing
// all violations otherwise.
func (r Request) Validate() error {
	var violations []string

	if strings.TrimSpace(r.Input.Path) == "" {
		violations = append(violations, "input path is empty")
	}
	if strings.TrimSpace(r.OutputPath) == "" {
		violations = append(violations, "output path is empty")
	}
	if _, ok := qualityRank[r.Quality]; !ok {
		violations = append(violations, fmt.Sprintf("unknown quality %q", string(r.Quality)))
	}
	if _, ok := formatSet[r.Format]; !ok {
		violations = append(violations, fmt.Sprintf("unknown output format %q", string(r.Format)))
	} else if r.OutputPath != "" {
		ext := strings.ToLower(filepath.Ext(r.OutputPath))
		if ext != r.Format.Extension() {
			violations = append(violations, fmt.Sprintf("output extension %q does not match format %q", ext, string(r.Format)))
		}
	}

	if trim := r.Options.Trim; trim != nil {
		switch {
		case trim.Start < 0:
			violations = append(violations, "trim window start is negative")
		case trim.End <= trim.Start:
			violations = append(violations, "trim window end is not after start")
		case r.Input.Duration > 0 && trim.End > r.Input.Duration:
			violations = append(violations, fmt.Sprintf("trim window end %s exceeds input duration %s", trim.End, r.Input.Duration))
		}
	}

	if crop := r.Options.Crop; crop != nil {
		switch {
		case crop.Width <= 0 || crop.Height <= 0:
			violations = append(violations, "crop rectangle has no area")
		case crop.X < 0 || crop.Y < 0:
			violations = append(violations, "crop rectangle origin is negative")
		case r.Input.FrameWidth > 0 && crop.X+crop.Width > r.Input.FrameWidth,
			r.Input.FrameHeight > 0 && crop.Y+crop.Height > r.Input.FrameHeight:
			violations = append(violations, fmt.Sprintf(
				"crop rectangle %dx%d+%d+%d lies outside frame bounds %dx%d",
				crop.Width, crop.Height, crop.X, crop.Y, r.Input.FrameWidth, r.Input.FrameHeight))
		}
	}

	if r.Options.BitrateKbps < 0 {
		violations = append(violations, "custom bitrate is negative")
	}
	if r.Options.FrameRate < 0 {
		violations = append(violations, "custom frame rate is negative")
	}

	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}
