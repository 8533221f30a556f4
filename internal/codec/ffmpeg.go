package codec

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"shrinkray/internal/logging"
	"shrinkray/internal/media"
)

// FFmpegEngine runs conversions as ffmpeg subprocesses. Progress is read
// from ffmpeg's machine-readable -progress output; pause and resume map to
// SIGSTOP and SIGCONT.
type FFmpegEngine struct {
	binary string
	logger *slog.Logger
}

// NewFFmpegEngine constructs an engine invoking the given ffmpeg binary.
func NewFFmpegEngine(binary string, logger *slog.Logger) *FFmpegEngine {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &FFmpegEngine{
		binary: binary,
		logger: logging.NewComponentLogger(logger, "ffmpeg"),
	}
}

// Start launches ffmpeg and returns once the process is running.
func (e *FFmpegEngine) Start(ctx context.Context, job Job) (Handle, error) {
	if err := os.MkdirAll(filepath.Dir(job.OutputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	args := buildFFmpegArgs(job)
	cmd := exec.CommandContext(ctx, e.binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		return nil, &EngineError{Message: "failed to start ffmpeg", Err: err}
	}
	e.logger.Debug("ffmpeg started",
		logging.String("input", job.InputPath),
		logging.String("output", job.OutputPath),
		logging.Int("pid", cmd.Process.Pid),
	)

	handle := &ffmpegHandle{
		cmd:    cmd,
		events: make(chan Event, 16),
		job:    job,
	}
	go handle.pump(stdout)
	return handle, nil
}

type ffmpegHandle struct {
	cmd    *exec.Cmd
	events chan Event
	job    Job
}

func (h *ffmpegHandle) Events() <-chan Event { return h.events }

func (h *ffmpegHandle) Pause(ctx context.Context) error {
	return h.signal(ctx, syscall.SIGSTOP)
}

func (h *ffmpegHandle) Resume(ctx context.Context) error {
	return h.signal(ctx, syscall.SIGCONT)
}

func (h *ffmpegHandle) Cancel(ctx context.Context) error {
	// A paused process cannot act on SIGTERM; wake it first.
	_ = h.cmd.Process.Signal(syscall.SIGCONT)
	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return &EngineError{Message: "cancel signal failed", Err: err}
	}
	return nil
}

func (h *ffmpegHandle) signal(ctx context.Context, sig syscall.Signal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := h.cmd.Process.Signal(sig); err != nil {
		return &EngineError{Message: fmt.Sprintf("signal %s failed", sig), Err: err}
	}
	return nil
}

// pump reads -progress blocks from stdout, emits ticks, and finishes with a
// terminal complete or error event before closing the stream.
func (h *ffmpegHandle) pump(stdout io.Reader) {
	defer close(h.events)

	scanner := bufio.NewScanner(stdout)
	tick := media.Tick{
		TotalFrames:   h.job.totalFrames(),
		TotalDuration: h.job.InputDuration,
	}
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "frame":
			if frames, err := strconv.ParseInt(value, 10, 64); err == nil {
				tick.CurrentFrame = frames
			}
		case "out_time_us":
			if micros, err := strconv.ParseInt(value, 10, 64); err == nil {
				tick.ProcessedDuration = time.Duration(micros) * time.Microsecond
			}
		case "progress":
			// The "progress" key ends each block.
			h.events <- Event{Kind: EventTick, Tick: tick}
		}
	}

	if err := h.cmd.Wait(); err != nil {
		code := ""
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = strconv.Itoa(exitErr.ExitCode())
		}
		h.events <- Event{Kind: EventError, Err: &EngineError{Code: code, Message: "ffmpeg exited abnormally", Err: err}}
		return
	}

	result := media.Result{
		OutputPath: h.job.OutputPath,
		Duration:   h.job.InputDuration,
		Quality:    h.job.Settings.Quality,
		Format:     h.job.Settings.Format,
	}
	if info, err := os.Stat(h.job.OutputPath); err == nil {
		result.OutputBytes = info.Size()
	}
	if info, err := os.Stat(h.job.InputPath); err == nil {
		result.InputBytes = info.Size()
	}
	h.events <- Event{Kind: EventComplete, Result: result}
}

// qualityCRF maps quality targets onto libx264/libvpx constant rate factors.
var qualityCRF = map[media.Quality]string{
	media.QualityLow:    "32",
	media.QualityMedium: "26",
	media.QualityHigh:   "21",
	media.QualityUltra:  "17",
}

func buildFFmpegArgs(job Job) []string {
	args := []string{"-hide_banner", "-nostats", "-progress", "pipe:1"}

	if trim := job.Settings.Options.Trim; trim != nil {
		args = append(args, "-ss", formatSeconds(trim.Start))
	}
	args = append(args, "-i", job.InputPath)
	if trim := job.Settings.Options.Trim; trim != nil {
		args = append(args, "-t", formatSeconds(trim.End-trim.Start))
	}

	if crop := job.Settings.Options.Crop; crop != nil {
		args = append(args, "-vf", fmt.Sprintf("crop=%d:%d:%d:%d", crop.Width, crop.Height, crop.X, crop.Y))
	}

	switch job.Settings.Format {
	case media.FormatWebM:
		args = append(args, "-c:v", "libvpx-vp9")
	default:
		args = append(args, "-c:v", "libx264")
	}

	if job.Settings.Options.BitrateKbps > 0 {
		args = append(args, "-b:v", fmt.Sprintf("%dk", job.Settings.Options.BitrateKbps))
	} else {
		crf, ok := qualityCRF[job.Settings.Quality]
		if !ok {
			crf = qualityCRF[media.QualityHigh]
		}
		args = append(args, "-crf", crf)
	}

	if rate := job.Settings.Options.FrameRate; rate > 0 {
		args = append(args, "-r", strconv.FormatFloat(rate, 'f', -1, 64))
	}
	if job.Settings.ThreadCount > 0 {
		args = append(args, "-threads", strconv.Itoa(job.Settings.ThreadCount))
	}
	if job.Settings.Options.RemoveAudio {
		args = append(args, "-an")
	} else if job.Settings.Format == media.FormatWebM {
		// The webm muxer only accepts Vorbis or Opus audio.
		args = append(args, "-c:a", "libopus")
	} else {
		args = append(args, "-c:a", "aac")
	}
	if !job.Settings.Options.PreserveMeta {
		args = append(args, "-map_metadata", "-1")
	}

	return append(args, "-y", job.OutputPath)
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
