package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mikanarr/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		follow    bool
		lines     int
		component string
		level     string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			filter, err := logs.NewFilter(component, level)
			if err != nil {
				return fmt.Errorf("invalid --level: %w", err)
			}
			path := logs.CurrentPath(cfg.Paths.LogDir)
			out := cmd.OutOrStdout()

			var (
				initial []string
				offset  int64
			)
			if lines <= 0 {
				initial, offset, err = logs.ReadFrom(path, 0)
			} else {
				initial, offset, err = logs.Tail(path, lines)
			}
			if err != nil {
				return err
			}
			printed := 0
			for _, line := range initial {
				if filter.Match(line) {
					fmt.Fprintln(out, line)
					printed++
				}
			}
			if !follow {
				if printed == 0 {
					fmt.Fprintln(out, "No log entries available")
				}
				return nil
			}

			followCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return logs.Follow(followCtx, path, offset, 0, func(line string) {
				if filter.Match(line) {
					fmt.Fprintln(out, line)
				}
			})
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "Number of trailing lines to show (0 for all)")
	cmd.Flags().StringVar(&component, "component", "", "Only show lines from this component (monitor, download, watcher, ...)")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level to show (debug, info, warn, error)")
	return cmd
}
