package codec

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"shrinkray/internal/media"
)

type probeOutput struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

type probeStream struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	RFrameRate string `json:"r_frame_rate"`
}

// ProbeInput reads the metadata the scheduler needs from a video file using
// ffprobe, resolved from the configured ffmpeg binary name.
func ProbeInput(ctx context.Context, ffmpegBinary, path string) (media.InputFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return media.InputFile{}, fmt.Errorf("stat input: %w", err)
	}
	if info.IsDir() {
		return media.InputFile{}, fmt.Errorf("input %s is a directory", path)
	}

	cmd := exec.CommandContext(ctx, ffprobeBinary(ffmpegBinary),
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return media.InputFile{}, fmt.Errorf("run ffprobe on %s: %w", path, err)
	}

	var probed probeOutput
	if err := json.Unmarshal(output, &probed); err != nil {
		return media.InputFile{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	input := media.InputFile{
		Path:      path,
		SizeBytes: info.Size(),
	}
	if seconds, err := strconv.ParseFloat(probed.Format.Duration, 64); err == nil && seconds > 0 {
		input.Duration = time.Duration(seconds * float64(time.Second))
	}
	for _, stream := range probed.Streams {
		if stream.CodecType != "video" {
			continue
		}
		input.Codec = stream.CodecName
		input.FrameWidth = stream.Width
		input.FrameHeight = stream.Height
		input.FrameRate = parseFrameRate(stream.RFrameRate)
		break
	}
	return input, nil
}

// ffprobeBinary derives the ffprobe path from the configured ffmpeg binary,
// so a custom ffmpeg location carries its sibling ffprobe along.
func ffprobeBinary(ffmpegBinary string) string {
	dir := filepath.Dir(ffmpegBinary)
	base := strings.Replace(filepath.Base(ffmpegBinary), "ffmpeg", "ffprobe", 1)
	if dir == "." && !strings.HasPrefix(ffmpegBinary, "./") {
		return base
	}
	return filepath.Join(dir, base)
}

// parseFrameRate converts ffprobe's rational frame rate ("30000/1001") to a
// float, tolerating a plain number.
func parseFrameRate(value string) float64 {
	if value == "" {
		return 0
	}
	if num, den, found := strings.Cut(value, "/"); found {
		n, errN := strconv.ParseFloat(num, 64)
		d, errD := strconv.ParseFloat(den, 64)
		if errN != nil || errD != nil || d == 0 {
			return 0
		}
		return n / d
	}
	rate, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return rate
}
