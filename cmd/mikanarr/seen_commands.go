package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mikanarr/internal/store"
)

func newSeenCommand(ctx *commandContext) *cobra.Command {
	seenCmd := &cobra.Command{
		Use:   "seen",
		Short: "Manage titles already submitted",
	}
	seenCmd.AddCommand(newSeenListCommand(ctx))
	seenCmd.AddCommand(newSeenForgetCommand(ctx))
	seenCmd.AddCommand(newSeenClearCommand(ctx))
	return seenCmd
}

func newSeenListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List seen titles, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(records *store.Store) error {
				seen, err := records.ListSeen(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, seen)
				}
				if len(seen) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No titles seen yet")
					return nil
				}
				rows := make([][]string, 0, len(seen))
				for _, item := range seen {
					rows = append(rows, []string{item.SeenAt.Local().Format(time.DateTime), item.Title})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{{title: "Seen"}, {title: "Title", maxWidth: 96}}, rows))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum titles to list (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	return cmd
}

func newSeenForgetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <title>...",
		Short: "Forget titles so the next cycle submits them again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(records *store.Store) error {
				removed, err := records.Forget(cmd.Context(), args...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Forgot %d title(s)\n", removed)
				return nil
			})
		},
	}
}

func newSeenClearCommand(ctx *commandContext) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget every seen title",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("clearing resubmits every title still in the feeds; pass --yes to confirm")
			}
			return ctx.withStore(cmd.Context(), func(records *store.Store) error {
				removed, err := records.ClearSeen(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d title(s)\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&confirm, "yes", false, "Confirm clearing all seen titles")
	return cmd
}
