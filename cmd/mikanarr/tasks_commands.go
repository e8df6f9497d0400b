package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mikanarr/internal/alist"
	"mikanarr/internal/daemon"
	"mikanarr/internal/store"
)

func newTasksCommand(ctx *commandContext) *cobra.Command {
	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect and control submitted download tasks",
	}
	tasksCmd.AddCommand(newTasksListCommand(ctx))
	tasksCmd.AddCommand(newTasksRemoteCommand(ctx))
	tasksCmd.AddCommand(newTasksCancelCommand(ctx))
	tasksCmd.AddCommand(newTasksPruneCommand(ctx))
	return tasksCmd
}

func newTasksListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseTaskStatuses(statusFlags)
			if err != nil {
				return err
			}
			return ctx.withStore(cmd.Context(), func(records *store.Store) error {
				tasks, err := records.ListTasks(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, tasks)
				}
				if len(tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tasks recorded")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTaskTable(tasks))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (downloading, transferring, completed, failed, canceled)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	return cmd
}

func parseTaskStatuses(values []string) ([]store.TaskStatus, error) {
	known := []store.TaskStatus{store.TaskDownloading, store.TaskTransferring, store.TaskCompleted, store.TaskFailed, store.TaskCanceled}
	var out []store.TaskStatus
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		matched := false
		for _, status := range known {
			if string(status) == value {
				out = append(out, status)
				matched = true
				break
			}
		}
		if !matched {
			return nil, fmt.Errorf("unknown task status %q", value)
		}
	}
	return out, nil
}

func renderTaskTable(tasks []store.TaskRecord) string {
	rows := make([][]string, 0, len(tasks))
	for _, task := range tasks {
		episode := "-"
		if task.Resource.HasEpisode() {
			episode = strconv.Itoa(task.Resource.Episode)
		}
		location := task.SavePath
		if task.FinalPath != "" {
			location = task.FinalPath
		}
		rows = append(rows, []string{
			task.TaskID,
			string(task.Status),
			task.Resource.AnimeName,
			episode,
			location,
			task.UpdatedAt.Local().Format(time.DateTime),
		})
	}
	return renderTable([]column{
		{title: "Task"},
		{title: "Status"},
		{title: "Anime", maxWidth: 24},
		{title: "Ep", numeric: true},
		{title: "Location", maxWidth: 48},
		{title: "Updated"},
	}, rows)
}

func newTasksRemoteCommand(ctx *commandContext) *cobra.Command {
	var transfers bool
	var undoneOnly bool

	cmd := &cobra.Command{
		Use:   "remote",
		Short: "List tasks as Alist reports them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := daemon.NewAlistClient(cfg)
			if err != nil {
				return err
			}
			taskType := alist.TaskTypeDownload
			if transfers {
				taskType = alist.TaskTypeTransfer
			}
			var status *alist.TaskStatus
			if undoneOnly {
				undone := alist.TaskStatusUndone
				status = &undone
			}
			tasks, err := client.ListTasks(cmd.Context(), taskType, status)
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No remote tasks")
				return nil
			}
			rows := make([][]string, 0, len(tasks))
			for _, task := range tasks {
				rows = append(rows, []string{
					task.ID,
					task.State.String(),
					fmt.Sprintf("%.0f%%", task.Progress),
					task.Name,
					task.Error,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{
				{title: "ID"},
				{title: "State"},
				{title: "Progress", numeric: true},
				{title: "Name", maxWidth: 72},
				{title: "Error", maxWidth: 32},
			}, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&transfers, "transfers", false, "List transfer tasks instead of download tasks")
	cmd.Flags().BoolVar(&undoneOnly, "undone", false, "Only list unfinished tasks")
	return cmd
}

func newTasksCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <task-id>...",
		Short: "Cancel recorded tasks on Alist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := daemon.NewAlistClient(cfg)
			if err != nil {
				return err
			}
			return ctx.withStore(cmd.Context(), func(records *store.Store) error {
				var errs []error
				for _, id := range args {
					if err := cancelTask(cmd.Context(), client, records, id); err != nil {
						errs = append(errs, err)
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Canceled %s\n", id)
				}
				return errors.Join(errs...)
			})
		},
	}
}

type taskCanceler interface {
	CancelTask(ctx context.Context, task alist.Task) error
}

func cancelTask(ctx context.Context, client taskCanceler, records *store.Store, id string) error {
	rec, err := records.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if !rec.Status.Active() {
		return fmt.Errorf("task %s is already %s", id, rec.Status)
	}
	task := alist.Task{ID: rec.TaskID, Type: alist.TaskTypeDownload}
	if rec.Status == store.TaskTransferring && rec.TransferID != "" {
		task = alist.Task{ID: rec.TransferID, Type: alist.TaskTypeTransfer}
	}
	if err := client.CancelTask(ctx, task); err != nil {
		return fmt.Errorf("cancel %s: %w", id, err)
	}
	rec.Status = store.TaskCanceled
	rec.ErrorMessage = "canceled from cli"
	return records.UpdateTask(ctx, rec)
}

func newTasksPruneCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete finished task records",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 0 {
				return errors.New("--days must not be negative")
			}
			return ctx.withStore(cmd.Context(), func(records *store.Store) error {
				cutoff := time.Now().AddDate(0, 0, -days)
				removed, err := records.PruneTasks(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d finished task record(s)\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Keep records updated within this many days")
	return cmd
}
