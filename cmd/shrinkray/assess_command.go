package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"shrinkray/internal/capability"
	"shrinkray/internal/resource"
)

func newAssessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "assess",
		Short: "Report what conversion work the device can sustain right now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssess(cmd, ctx)
		},
	}
}

func runAssess(cmd *cobra.Command, cctx *commandContext) error {
	cfg, err := cctx.ensureConfig()
	if err != nil {
		return err
	}

	probeCtx := cmd.Context()

	prober := resource.NewHostProber(cfg.Paths.OutputDir)
	snapshot, err := prober.Probe(probeCtx)
	if err != nil {
		return fmt.Errorf("probe device: %w", err)
	}
	facts := resource.DetectFacts(probeCtx)
	if cfg.Resource.ProcessorScore > 0 {
		facts.ProcessorScore = cfg.Resource.ProcessorScore
	}

	assessment := capability.Assess(snapshot, facts)
	suitability := capability.CheckSuitability(snapshot, 0)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Capability: %s (score %.2f)\n", assessment.Tier, assessment.Score)
	fmt.Fprintf(out, "  max quality     %s\n", assessment.MaxQuality)
	fmt.Fprintf(out, "  max concurrent  %d\n", assessment.MaxConcurrent)
	fmt.Fprintf(out, "  thread budget   %d\n", assessment.ThreadBudget)
	for _, reason := range assessment.Reasons {
		fmt.Fprintf(out, "  note: %s\n", reason)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Device snapshot:")
	battery := fmt.Sprintf("%.0f%%", snapshot.Battery.Level*100)
	if snapshot.Battery.Charging {
		battery += " (charging)"
	}
	rows := [][]string{
		{"battery", battery},
		{"thermal", fmt.Sprintf("%s (throttle %d/5)", snapshot.Thermal.State, snapshot.Thermal.ThrottleLevel)},
		{"memory", fmt.Sprintf("%s free of %s",
			humanize.IBytes(snapshot.Memory.AvailableBytes),
			humanize.IBytes(snapshot.Memory.TotalBytes))},
		{"cpu", fmt.Sprintf("%d cores, %.0f%% busy", snapshot.CPU.CoreCount, snapshot.CPU.UsagePercent)},
	}
	for _, storage := range snapshot.Storage {
		rows = append(rows, []string{
			"storage " + storage.Location,
			fmt.Sprintf("%s free of %s",
				humanize.IBytes(storage.AvailableBytes),
				humanize.IBytes(storage.TotalBytes)),
		})
	}
	fmt.Fprintln(out, renderTable([]string{"Resource", "Reading"}, rows))

	switch {
	case !suitability.Suitable:
		fmt.Fprintf(out, "Not ready for conversion:\n  %s\n", strings.Join(suitability.Blockers, "\n  "))
	case len(suitability.Warnings) > 0:
		fmt.Fprintf(out, "Ready with warnings:\n  %s\n", strings.Join(suitability.Warnings, "\n  "))
	default:
		fmt.Fprintln(out, "Ready for conversion.")
	}
	return nil
}
