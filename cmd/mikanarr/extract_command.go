package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mikanarr/internal/daemon"
	"mikanarr/internal/logging"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var lookup bool
	var nameOnly bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "extract <title>",
		Short: "Show the metadata the configured extractor resolves for a title",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			ex, err := daemon.NewExtractor(cfg, logging.NewNop())
			if err != nil {
				return err
			}
			input := strings.Join(args, " ")

			if nameOnly {
				res, err := ex.AnalyseAnimeName(cmd.Context(), input)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, res)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Anime:   %s\n", res.AnimeName)
				fmt.Fprintf(out, "Season:  %s\n", formatNumber(res.Season))
				return nil
			}

			res, err := ex.AnalyseResourceTitle(cmd.Context(), input, lookup)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, res)
			}
			out := cmd.OutOrStdout()
			if res.IsUnknown() {
				fmt.Fprintln(out, "No episode metadata found")
				return nil
			}
			if res.AnimeName != "" {
				fmt.Fprintf(out, "Anime:     %s\n", res.AnimeName)
				fmt.Fprintf(out, "Season:    %s\n", formatNumber(res.Season))
			}
			fmt.Fprintf(out, "Episode:   %s\n", formatNumber(res.Episode))
			fmt.Fprintf(out, "Quality:   %s\n", res.Quality)
			fmt.Fprintf(out, "Languages: %s\n", strings.Join(res.Languages, ", "))
			fmt.Fprintf(out, "Version:   %d\n", res.Version)
			return nil
		},
	}
	cmd.Flags().BoolVar(&lookup, "lookup", false, "Allow the llm backend to consult TMDB")
	cmd.Flags().BoolVar(&nameOnly, "name", false, "Treat the input as a bare series name")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	return cmd
}

func formatNumber(n int) string {
	if n < 0 {
		return "unknown"
	}
	return strconv.Itoa(n)
}
