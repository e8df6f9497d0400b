package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mikanarr/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var skipFeeds bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check configuration, Alist, LLM and feed reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			lines := renderSectionHeader("Configuration", colorize)
			lines = append(lines, renderStatusLine("Config file", statusInfo, ctx.configPath, colorize))
			lines = append(lines, renderStatusLine("Database", statusInfo, cfg.DatabasePath(), colorize))
			lines = append(lines, renderStatusLine("Extractor", statusInfo, fmt.Sprintf("%s (enabled: %s, lookup: %s)", cfg.Extractor.Mode, yesNo(cfg.Extractor.Enabled), yesNo(cfg.Extractor.UseLookup)), colorize))
			lines = append(lines, renderStatusLine("Rename", statusInfo, yesNo(cfg.Rename.Enabled), colorize))

			results := preflight.RunAll(cmd.Context(), cfg)
			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Services", colorize)...)
			for _, r := range results {
				lines = append(lines, renderStatusLine(r.Name, resultKind(r), r.Detail, colorize))
			}

			if !skipFeeds {
				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Feeds", colorize)...)
				if len(cfg.Feeds.URLs) == 0 {
					lines = append(lines, renderStatusLine("Feeds", statusWarn, "none configured", colorize))
				}
				for _, url := range cfg.Feeds.URLs {
					r := preflight.CheckFeed(cmd.Context(), url)
					lines = append(lines, renderStatusLine(truncate(r.Name, 60), resultKind(r), r.Detail, colorize))
				}
			}

			for _, line := range lines {
				fmt.Fprintln(out, line)
			}
			if failed := preflight.Failed(results); len(failed) > 0 {
				return errors.New("required checks failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipFeeds, "skip-feeds", false, "Do not fetch the configured feeds")
	return cmd
}

func resultKind(r preflight.Result) statusKind {
	switch {
	case r.Passed:
		return statusOK
	case r.Required:
		return statusError
	default:
		return statusWarn
	}
}
