package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"shrinkray/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past conversions",
	}

	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryStatsCommand(ctx))
	historyCmd.AddCommand(newHistoryClearCommand(ctx))

	return historyCmd
}

func (c *commandContext) withHistory(fn func(*history.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return errors.New("history is disabled in the configuration")
	}
	store, err := history.Open(cfg)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded conversions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				entries, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "No conversions recorded yet.")
					return nil
				}

				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					size := "-"
					saved := "-"
					if entry.OutputBytes > 0 {
						size = humanize.IBytes(uint64(entry.OutputBytes))
						saved = fmt.Sprintf("%.1f%%", entry.SizeReductionPercent())
					}
					rows = append(rows, []string{
						entry.CompletedAt.Local().Format("2006-01-02 15:04"),
						filepath.Base(entry.InputPath),
						string(entry.Quality),
						size,
						saved,
						string(entry.State),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Finished", "Input", "Quality", "Output size", "Saved", "Outcome"},
					rows, 4, 5))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show (0 shows everything)")
	return cmd
}

func newHistoryStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize recorded conversions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Conversions: %d (%d completed, %d failed, %d cancelled)\n",
					stats.Total, stats.Completed, stats.Failed, stats.Cancelled)
				fmt.Fprintf(out, "Success rate: %.0f%%\n", stats.SuccessRate*100)
				if stats.TotalInputBytes > 0 {
					fmt.Fprintf(out, "Processed: %s in, %s out\n",
						humanize.IBytes(uint64(stats.TotalInputBytes)),
						humanize.IBytes(uint64(stats.TotalOutputBytes)))
				}
				if stats.AverageRuntime > 0 {
					fmt.Fprintf(out, "Average runtime: %s\n", stats.AverageRuntime.Round(time.Second))
				}
				return nil
			})
		},
	}
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every recorded conversion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				removed, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries.\n", removed)
				return nil
			})
		},
	}
}
