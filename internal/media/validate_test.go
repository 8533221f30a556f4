package media_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"shrinkray/internal/media"
)

func validRequest() media.Request {
	return media.NewRequest(
		media.InputFile{
			Path:        "/videos/input.mov",
			SizeBytes:   2 << 30,
			Codec:       "h264",
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
}

func TestValidateAcceptsWellFormedRequest(t *testing.T) {
	req := validRequest()
	if err := req.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestValidateReportsSingleViolations(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*media.Request)
		want   string
	}{
		{
			name:   "extension mismatch",
			mutate: func(r *media.Request) { r.OutputPath = "/videos/output.avi" },
			want:   "does not match format",
		},
		{
			name: "trim beyond duration",
			mutate: func(r *media.Request) {
				r.Options.Trim = &media.TrimWindow{Start: 0, End: 10 * time.Minute}
			},
			want: "exceeds input duration",
		},
		{
			name: "trim end before start",
			mutate: func(r *media.Request) {
				r.Options.Trim = &media.TrimWindow{Start: time.Minute, End: time.Second}
			},
			want: "not after start",
		},
		{
			name: "crop outside bounds",
			mutate: func(r *media.Request) {
				r.Options.Crop = &media.CropRect{X: 1000, Y: 0, Width: 1920, Height: 1080}
			},
			want: "outside frame bounds",
		},
		{
			name:   "unknown quality",
			mutate: func(r *media.Request) { r.Quality = media.Quality("cinematic") },
			want:   `unknown quality "cinematic"`,
		},
		{
			name:   "empty input path",
			mutate: func(r *media.Request) { r.Input.Path = "  " },
			want:   "input path is empty",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			err := req.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var verr *media.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if len(verr.Violations) != 1 {
				t.Fatalf("expected exactly one violation, got %v", verr.Violations)
			}
			if !strings.Contains(verr.Violations[0], tc.want) {
				t.Fatalf("violation %q does not mention %q", verr.Violations[0], tc.want)
			}
		})
	}
}

func TestValidateCollectsAllViolations(t *testing.T) {
	req := validRequest()
	req.OutputPath = "/videos/output.avi"
	req.Options.Trim = &media.TrimWindow{Start: 0, End: 10 * time.Minute}
	req.Options.Crop = &media.CropRect{X: -1, Y: 0, Width: 100, Height: 100}

	err := req.Validate()
	var verr *media.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(verr.Violations) != 3 {
		t.Fatalf("expected 3 violations, got %d: %v", len(verr.Violations), verr.Violations)
	}
}

func TestQualityAtMost(t *testing.T) {
	if got := media.QualityUltra.AtMost(media.QualityMedium); got != media.QualityMedium {
		t.Fatalf("expected medium cap, got %s", got)
	}
	if got := media.QualityLow.AtMost(media.QualityHigh); got != media.QualityLow {
		t.Fatalf("expected low preserved, got %s", got)
	}
}

func TestParseFormatAcceptsExtension(t *testing.T) {
	format, ok := media.ParseFormat(".MKV")
	if !ok || format != media.FormatMKV {
		t.Fatalf("ParseFormat(.MKV) = %q, %v", format, ok)
	}
}

func TestEstimateOutputSizeRoundsUp(t *testing.T) {
	if got := media.EstimateOutputSize(0, media.QualityHigh); got != 0 {
		t.Fatalf("expected 0 for empty input, got %d", got)
	}
	est := media.EstimateOutputSize(1000, media.QualityLow)
	if est <= 0 || est > 1000 {
		t.Fatalf("unexpected estimate %d", est)
	}
}
