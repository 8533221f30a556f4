package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"shrinkray/internal/history"
	"shrinkray/internal/media"
)

func TestRetryRequestCarriesLineage(t *testing.T) {
	entry := &history.Entry{
		RequestID:  "req-1",
		InputPath:  "/videos/clip.mov",
		OutputPath: "/videos/out/clip.mp4",
		Quality:    media.QualityHigh,
		Format:     media.FormatMP4,
		Priority:   media.PriorityHigh,
		RetryCount: 1,
	}
	input := media.InputFile{
		Path:        entry.InputPath,
		SizeBytes:   1 << 30,
		Codec:       "h264",
		Duration:    2 * time.Minute,
		FrameWidth:  1920,
		FrameHeight: 1080,
		FrameRate:   30,
	}

	req := retryRequest(entry, input, media.Options{})
	if req.ID != entry.RequestID {
		t.Errorf("request id = %s, want the recorded id %s", req.ID, entry.RequestID)
	}
	if req.RetryCount != 2 {
		t.Errorf("retry count = %d, want 2", req.RetryCount)
	}
	if req.Quality != media.QualityHigh || req.Format != media.FormatMP4 || req.Priority != media.PriorityHigh {
		t.Errorf("settings = %s/%s/%s, want the recorded ones", req.Quality, req.Format, req.Priority)
	}
	if req.OutputPath != entry.OutputPath {
		t.Errorf("output path = %s, want %s", req.OutputPath, entry.OutputPath)
	}
	if err := req.Validate(); err != nil {
		t.Fatalf("rebuilt request failed validation: %v", err)
	}
}

func TestTrimAdjustedFillsOpenEnd(t *testing.T) {
	input := media.InputFile{Duration: 90 * time.Second}
	options := media.Options{Trim: &media.TrimWindow{Start: 10 * time.Second}}

	adjusted := trimAdjusted(options, input)
	if adjusted.Trim.End != input.Duration {
		t.Errorf("trim end = %v, want %v", adjusted.Trim.End, input.Duration)
	}
	if options.Trim.End != 0 {
		t.Error("the caller's trim window must not be mutated")
	}
}

func TestConvertRetryOfRejectsInputArgs(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.toml")
	cfgContent := "[paths]\n" +
		"output_dir = \"" + filepath.Join(tmp, "out") + "\"\n" +
		"work_dir = \"" + filepath.Join(tmp, "work") + "\"\n" +
		"log_dir = \"" + filepath.Join(tmp, "logs") + "\"\n"
	if err := os.WriteFile(cfgPath, []byte(cfgContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := runCLI(t, "--config", cfgPath, "convert", "--retry-of", "req-1", filepath.Join(tmp, "in.mov"))
	if err == nil || !strings.Contains(err.Error(), "--retry-of cannot be combined") {
		t.Fatalf("error = %v, want the retry/input conflict", err)
	}

	_, err = runCLI(t, "--config", cfgPath, "convert")
	if err == nil || !strings.Contains(err.Error(), "at least one input path") {
		t.Fatalf("error = %v, want the missing-input message", err)
	}
}
