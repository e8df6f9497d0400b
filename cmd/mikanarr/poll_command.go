package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mikanarr/internal/daemon"
	"mikanarr/internal/download"
	"mikanarr/internal/feed"
	"mikanarr/internal/logging"
	"mikanarr/internal/store"
)

func newPollCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Run a single feed cycle",
		Long: "Poll fetches every feed once, filters and extracts new entries, " +
			"and submits them to Alist. With --dry-run nothing is submitted or marked seen.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := logging.NewNop()
			if verbose {
				logger, err = logging.New(logging.Options{Level: "debug", Format: cfg.Logging.Format, OutputPaths: []string{"stderr"}})
				if err != nil {
					return err
				}
			}
			return ctx.withStore(cmd.Context(), func(records *store.Store) error {
				pipeline, err := daemon.Build(cfg, records, logger)
				if err != nil {
					return err
				}
				resources, err := pipeline.Monitor.Cycle(cmd.Context())
				if err != nil {
					return err
				}
				report := pipeline.Monitor.LastReport()
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%d entries, %d filtered, %d seen, %d new\n",
					report.Entries, report.Filtered, report.Seen, len(resources))
				if len(resources) == 0 {
					return nil
				}
				fmt.Fprintln(out, renderResourceTable(cfg.Alist.DownloadPath, resources))
				if dryRun {
					return nil
				}
				if err := pipeline.Manager.Accept(cmd.Context(), resources); err != nil {
					return err
				}
				fmt.Fprintf(out, "Submitted %d resource(s)\n", len(resources))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be submitted without submitting")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log the cycle to stderr")
	return cmd
}

func renderResourceTable(base string, resources []feed.ResourceInfo) string {
	rows := make([][]string, 0, len(resources))
	for _, res := range resources {
		episode := "-"
		if res.HasEpisode() {
			episode = strconv.Itoa(res.Episode)
		}
		rows = append(rows, []string{
			res.Title,
			episode,
			res.Quality,
			download.SavePath(base, res),
		})
	}
	return renderTable([]column{
		{title: "Title", maxWidth: 64},
		{title: "Ep", numeric: true},
		{title: "Quality"},
		{title: "Save path", maxWidth: 48},
	}, rows)
}
