package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/habit-button/internal/analytics"
	"github.com/sweeney/habit-button/internal/config"
	"github.com/sweeney/habit-button/internal/display"
	"github.com/sweeney/habit-button/internal/gpio"
	"github.com/sweeney/habit-button/internal/store"
)

func withStore(cmd *cobra.Command, opts *options, fn func(ctx context.Context, st *store.Store) error) error {
	st, err := store.Open(opts.db)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, st)
}

func computeStats(ctx context.Context, st *store.Store, now time.Time) (analytics.Snapshot, error) {
	history, err := st.AllTimestamps(ctx)
	if err != nil {
		return analytics.Snapshot{}, err
	}
	offset, err := st.Offset(ctx)
	if err != nil {
		return analytics.Snapshot{}, err
	}
	return analytics.Compute(history, offset, now), nil
}

type statsOutput struct {
	Volume int `json:"volume"`
	Streak int `json:"streak"`
	Total  int `json:"total"`
}

func printStats(cmd *cobra.Command, s analytics.Snapshot, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		return enc.Encode(statsOutput{Volume: s.WeeklyVolume, Streak: s.WeeklyStreak, Total: s.Total})
	}
	_, err := fmt.Fprintln(out, display.Draw(display.Stats(s)))
	return err
}

func newStatsCmd(opts *options) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print this week's volume, the weekly streak and the total",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, opts, func(ctx context.Context, st *store.Store) error {
				s, err := computeStats(ctx, st, time.Now())
				if err != nil {
					return err
				}
				return printStats(cmd, s, asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a panel")
	return cmd
}

func newLogsCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "List recorded presses, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, opts, func(ctx context.Context, st *store.Store) error {
				history, err := st.AllTimestamps(ctx)
				if err != nil {
					return err
				}
				if limit > 0 && len(history) > limit {
					history = history[len(history)-limit:]
				}
				out := cmd.OutOrStdout()
				for _, t := range history {
					fmt.Fprintln(out, t.Format(time.RFC3339))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Only print the most recent n presses")
	return cmd
}

func newLogCmd(opts *options) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Record a press now without the button",
		Long: "Record a press now without the button. Writes straight to the store, " +
			"so a running daemon shows it from its next press.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, opts, func(ctx context.Context, st *store.Store) error {
				now := time.Now()
				if err := st.AppendEvent(ctx, now); err != nil {
					return err
				}
				s, err := computeStats(ctx, st, now)
				if err != nil {
					return err
				}
				return printStats(cmd, s, asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a panel")
	return cmd
}

func newOffsetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "offset [n]",
		Short: "Show or set the count of presses recorded before this log",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, func(ctx context.Context, st *store.Store) error {
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n < 0 {
						return fmt.Errorf("offset must be a non-negative integer, got %q", args[0])
					}
					if err := st.SetOffset(ctx, n); err != nil {
						return err
					}
				}
				n, err := st.Offset(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
}

func newMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [stats.json]",
		Short: "Import a legacy stats.json into the store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.legacy
			if len(args) == 1 {
				path = args[0]
			}
			return withStore(cmd, opts, func(ctx context.Context, st *store.Store) error {
				res, err := st.ImportLegacy(ctx, path)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !res.Found {
					fmt.Fprintf(out, "nothing to import: %s not found\n", path)
					return nil
				}
				fmt.Fprintf(out, "imported %d presses, offset %d\n", res.Imported, res.Offset)
				if res.SkippedHistory {
					fmt.Fprintln(out, "history skipped: the log already has presses")
				}
				fmt.Fprintf(out, "moved %s to %s\n", path, res.BackupPath)
				return nil
			})
		},
	}
}

func newPrintStateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "print-state",
		Short: "Print the current button level and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			button, err := gpio.NewRealButton(opts.pinButton, false, 0)
			if err != nil {
				return fmt.Errorf("init button: %w", err)
			}
			defer button.Close()
			return printButtonState(cmd, button)
		},
	}
}

func printButtonState(cmd *cobra.Command, button gpio.Button) error {
	pressed, err := button.Read()
	if err != nil {
		return fmt.Errorf("read button: %w", err)
	}
	state := "RELEASED"
	if pressed {
		state = "PRESSED"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Button: %s\n", state)
	return nil
}

func newConfigCmd(opts *options) *cobra.Command {
	var showPath bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print a commented config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if showPath {
				fmt.Fprintln(cmd.OutOrStdout(), opts.configPath)
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), config.DefaultTemplate())
			return nil
		},
	}
	cmd.Flags().BoolVar(&showPath, "path", false, "Print the config file location instead")
	return cmd
}
