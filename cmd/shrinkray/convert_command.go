package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"shrinkray/internal/capability"
	"shrinkray/internal/codec"
	"shrinkray/internal/history"
	"shrinkray/internal/media"
	"shrinkray/internal/resource"
	"shrinkray/internal/scheduler"
	"shrinkray/internal/session"
)

type convertOptions struct {
	outputDir    string
	quality      string
	format       string
	priority     string
	bitrateKbps  int
	frameRate    float64
	noAudio      bool
	keepMetadata bool
	trimStart    time.Duration
	trimEnd      time.Duration
	crop         string
	retryOf      string
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	opts := convertOptions{}

	cmd := &cobra.Command{
		Use:   "convert [input]...",
		Short: "Convert one or more videos, queueing what the device cannot run yet",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, ctx, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", "", "Directory for converted files (defaults to paths.output_dir)")
	cmd.Flags().StringVarP(&opts.quality, "quality", "q", "medium", "Target quality: low, medium, high, ultra")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "mp4", "Output container: mp4, mkv, webm")
	cmd.Flags().StringVarP(&opts.priority, "priority", "p", "normal", "Queue priority: low, normal, high, urgent")
	cmd.Flags().IntVar(&opts.bitrateKbps, "bitrate", 0, "Custom video bitrate in kbit/s (0 uses the quality preset)")
	cmd.Flags().Float64Var(&opts.frameRate, "frame-rate", 0, "Output frame rate (0 keeps the input rate)")
	cmd.Flags().BoolVar(&opts.noAudio, "no-audio", false, "Strip the audio track")
	cmd.Flags().BoolVar(&opts.keepMetadata, "keep-metadata", false, "Preserve container metadata")
	cmd.Flags().DurationVar(&opts.trimStart, "trim-start", 0, "Start of the trim window")
	cmd.Flags().DurationVar(&opts.trimEnd, "trim-end", 0, "End of the trim window (0 means end of input)")
	cmd.Flags().StringVar(&opts.crop, "crop", "", "Crop rectangle as WxH+X+Y")
	cmd.Flags().StringVar(&opts.retryOf, "retry-of", "", "Resubmit a recorded request by id, reusing its recorded settings")

	return cmd
}

func runConvert(cmd *cobra.Command, cctx *commandContext, inputs []string, opts convertOptions) error {
	switch {
	case opts.retryOf != "" && len(inputs) > 0:
		return errors.New("--retry-of cannot be combined with input paths")
	case opts.retryOf == "" && len(inputs) == 0:
		return errors.New("at least one input path is required")
	}

	cfg, err := cctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := cctx.logger()
	if err != nil {
		return err
	}

	quality, ok := media.ParseQuality(opts.quality)
	if !ok {
		return fmt.Errorf("unknown quality %q", opts.quality)
	}
	format, ok := media.ParseFormat(opts.format)
	if !ok {
		return fmt.Errorf("unknown output format %q", opts.format)
	}
	priority, ok := media.ParsePriority(opts.priority)
	if !ok {
		return fmt.Errorf("unknown priority %q", opts.priority)
	}
	options, err := conversionOptions(opts)
	if err != nil {
		return err
	}

	lock := flock.New(filepath.Join(cfg.Paths.WorkDir, "shrinkray.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return errors.New("another shrinkray conversion is already running")
	}
	defer func() {
		_ = lock.Unlock()
	}()

	outputDir := opts.outputDir
	if outputDir == "" {
		outputDir = cfg.Paths.OutputDir
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(cfg)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer store.Close()
	}

	var requests []media.Request
	if opts.retryOf != "" {
		if store == nil {
			return errors.New("--retry-of needs history enabled in the configuration")
		}
		entry, err := store.FindRequest(ctx, opts.retryOf)
		if err != nil {
			return err
		}
		if entry == nil {
			return fmt.Errorf("no recorded conversion for request %s", opts.retryOf)
		}
		input, err := codec.ProbeInput(ctx, cfg.Engine.FFmpegBinary, entry.InputPath)
		if err != nil {
			return err
		}
		req := retryRequest(entry, input, trimAdjusted(options, input))
		if err := req.Validate(); err != nil {
			return fmt.Errorf("%s: %w", entry.InputPath, err)
		}
		requests = append(requests, req)
	}
	for _, path := range inputs {
		input, err := codec.ProbeInput(ctx, cfg.Engine.FFmpegBinary, path)
		if err != nil {
			return err
		}
		outputPath := outputPathFor(outputDir, path, format)
		req := media.NewRequest(input, outputPath, quality, format, trimAdjusted(options, input), priority)
		if err := req.Validate(); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		requests = append(requests, req)
	}

	provider := resource.NewCachedProvider(
		resource.NewHostProber(outputDir),
		time.Duration(cfg.Resource.ProbeIntervalSeconds)*time.Second,
		logger,
	)
	if err := provider.Start(ctx); err != nil {
		return fmt.Errorf("start resource provider: %w", err)
	}
	defer provider.Stop()

	facts := resource.DetectFacts(ctx)
	if cfg.Resource.ProcessorScore > 0 {
		facts.ProcessorScore = cfg.Resource.ProcessorScore
	}

	engine := codec.NewFFmpegEngine(cfg.Engine.FFmpegBinary, logger)
	sched := scheduler.New(cfg, provider, facts, engine, logger)

	if store != nil {
		sched.SubscribeTerminal(store.Recorder(logger))
	}

	terminal := make(chan *session.Session, len(requests))
	sched.SubscribeTerminal(func(sess *session.Session) {
		terminal <- sess
	})

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = sched.Stop(stopCtx)
	}()

	out := cmd.OutOrStdout()
	submitted := 0
	for _, req := range requests {
		receipt, err := sched.Submit(ctx, req)
		if err != nil {
			var nserr *capability.NotSuitableError
			if errors.As(err, &nserr) {
				fmt.Fprintf(out, "%s: device not ready:\n", req.Input.Path)
				for _, blocker := range nserr.Blockers {
					fmt.Fprintf(out, "  - %s\n", blocker)
				}
				continue
			}
			return fmt.Errorf("submit %s: %w", req.Input.Path, err)
		}
		submitted++
		for _, warning := range receipt.Warnings {
			fmt.Fprintf(out, "warning: %s\n", warning)
		}
		if receipt.Started {
			fmt.Fprintf(out, "converting %s\n", req.Input.Path)
		} else {
			fmt.Fprintf(out, "queued %s at position %d\n", req.Input.Path, receipt.QueuePosition)
		}
	}
	if submitted == 0 {
		return errors.New("nothing was admitted for conversion")
	}

	results := waitForConversions(ctx, cmd, sched, terminal, submitted)
	fmt.Fprintln(out, renderConvertSummary(results))

	if failed := countState(results, session.StateFailed); failed > 0 {
		return fmt.Errorf("%d of %d conversions failed", failed, len(results))
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// waitForConversions blocks until every submitted session reaches a terminal
// state, painting progress on a tty while it waits. Interruption stops the
// scheduler via the deferred Stop, which cancels the in-flight sessions and
// delivers their terminal events.
func waitForConversions(ctx context.Context, cmd *cobra.Command, sched *scheduler.Scheduler, terminal <-chan *session.Session, want int) []*session.Session {
	out := cmd.OutOrStdout()
	showProgress := false
	if file, ok := out.(*os.File); ok {
		showProgress = isatty.IsTerminal(file.Fd())
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	results := make([]*session.Session, 0, want)
	for len(results) < want {
		select {
		case sess := <-terminal:
			results = append(results, sess)
		case <-ticker.C:
			if !showProgress {
				continue
			}
			status, err := sched.Status(ctx)
			if err != nil {
				continue
			}
			for _, active := range status.Active {
				fmt.Fprintf(out, "\r%s %.2f%%  %s left  %.2fx ",
					filepath.Base(active.InputPath),
					active.Percentage,
					formatDuration(active.TimeLeft),
					active.SpeedRatio)
			}
		case <-ctx.Done():
			// Collect whatever terminal events the shutdown produces.
			drainDeadline := time.After(10 * time.Second)
			for len(results) < want {
				select {
				case sess := <-terminal:
					results = append(results, sess)
				case <-drainDeadline:
					return results
				}
			}
			return results
		}
	}
	if showProgress {
		fmt.Fprintln(out)
	}
	return results
}

func renderConvertSummary(results []*session.Session) string {
	rows := make([][]string, 0, len(results))
	for _, sess := range results {
		outcome := string(sess.State)
		size := "-"
		reduction := "-"
		if sess.Result != nil && sess.Result.OutputBytes > 0 {
			size = humanize.IBytes(uint64(sess.Result.OutputBytes))
			reduction = fmt.Sprintf("%.1f%%", sess.Result.SizeReductionPercent())
		}
		if sess.FailureMessage != "" {
			outcome += ": " + sess.FailureMessage
		}
		rows = append(rows, []string{
			filepath.Base(sess.Request.Input.Path),
			string(sess.Effective.Quality),
			size,
			reduction,
			formatDuration(sess.Runtime(time.Now().UTC())),
			outcome,
		})
	}
	return renderTable([]string{"Input", "Quality", "Output size", "Saved", "Runtime", "Outcome"}, rows, 3, 4, 5)
}

func conversionOptions(opts convertOptions) (media.Options, error) {
	options := media.Options{
		BitrateKbps:  opts.bitrateKbps,
		FrameRate:    opts.frameRate,
		RemoveAudio:  opts.noAudio,
		PreserveMeta: opts.keepMetadata,
	}
	if opts.trimStart > 0 || opts.trimEnd > 0 {
		options.Trim = &media.TrimWindow{Start: opts.trimStart, End: opts.trimEnd}
	}
	if opts.crop != "" {
		var crop media.CropRect
		if _, err := fmt.Sscanf(opts.crop, "%dx%d+%d+%d", &crop.Width, &crop.Height, &crop.X, &crop.Y); err != nil {
			return media.Options{}, fmt.Errorf("crop %q is not of the form WxH+X+Y", opts.crop)
		}
		options.Crop = &crop
	}
	return options, nil
}

// retryRequest rebuilds a request from its recorded terminal entry. The
// request id survives so every attempt shares one history lineage, and the
// retry counter moves forward.
func retryRequest(entry *history.Entry, input media.InputFile, options media.Options) media.Request {
	req := media.NewRequest(input, entry.OutputPath, entry.Quality, entry.Format, options, entry.Priority)
	req.ID = entry.RequestID
	req.RetryCount = entry.RetryCount + 1
	return req
}

// trimAdjusted resolves an open-ended trim window against the probed input
// duration.
func trimAdjusted(options media.Options, input media.InputFile) media.Options {
	if options.Trim != nil && options.Trim.End == 0 {
		trim := *options.Trim
		trim.End = input.Duration
		options.Trim = &trim
	}
	return options
}

func outputPathFor(outputDir, inputPath string, format media.OutputFormat) string {
	base := filepath.Base(inputPath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, name+format.Extension())
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	return d.Round(time.Second).String()
}

func countState(results []*session.Session, state session.State) int {
	count := 0
	for _, sess := range results {
		if sess.State == state {
			count++
		}
	}
	return count
}
