// Package daemonrun hosts the foreground daemon runtime used by
// "mikanarr run": logging setup, preflight, store lifecycle and signal
// handling around the daemon package.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"mikanarr/internal/config"
	"mikanarr/internal/daemon"
	"mikanarr/internal/logging"
	"mikanarr/internal/logs"
	"mikanarr/internal/preflight"
	"mikanarr/internal/store"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel      string
	Development   bool
	SkipPreflight bool
}

// Run starts the mikanarr daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("mikanarr-%s.log", runID))
	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logConfigSnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update current log link: %v\n", err)
	}
	logging.PruneLogs(logger, cfg.Paths.LogDir, "mikanarr-*.log", logPath, cfg.Logging.RetentionDays)

	if !opts.SkipPreflight {
		if err := runPreflight(signalCtx, logger, cfg); err != nil {
			return err
		}
	}

	records, err := store.Open(signalCtx, cfg.DatabasePath())
	if err != nil {
		logging.ErrorWithContext(logger, "open store failed", "store_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.data_dir permissions or remove a database from an incompatible version"),
		)
		return err
	}
	pruneTaskRecords(signalCtx, logger, records, cfg.Logging.RetentionDays)

	pipeline, err := daemon.Build(cfg, records, logger)
	if err != nil {
		_ = records.Close()
		return fmt.Errorf("build pipeline: %w", err)
	}
	d, err := daemon.New(cfg, records, pipeline, logger)
	if err != nil {
		_ = records.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "stop the other instance or remove a stale lock under paths.data_dir"),
			logging.String(logging.FieldImpact, "no feeds are polled"),
		)
		return err
	}

	select {
	case <-signalCtx.Done():
		logger.Info("mikanarr daemon shutting down")
		return nil
	case err := <-d.Fatal():
		return fmt.Errorf("feed monitor: %w", err)
	}
}

func runPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	results := preflight.RunAll(ctx, cfg)
	for _, r := range results {
		if r.Passed {
			logger.Info("preflight check passed", logging.String("check", r.Name), logging.String("detail", r.Detail))
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.Bool("required", r.Required),
		)
	}
	failed := preflight.Failed(results)
	if len(failed) == 0 {
		return nil
	}
	names := make([]string, 0, len(failed))
	for _, r := range failed {
		names = append(names, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	return errors.New("preflight failed: " + strings.Join(names, "; "))
}

func pruneTaskRecords(ctx context.Context, logger *slog.Logger, records *store.Store, retentionDays int) {
	if retentionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed, err := records.PruneTasks(ctx, cutoff)
	if err != nil {
		logging.WarnWithContext(logger, "task record pruning failed", "task_prune_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "finished task records remain in the database"),
		)
		return
	}
	if removed > 0 {
		logger.Info("finished task records pruned",
			logging.Int64("count", removed),
			logging.String(logging.FieldEventType, "task_records_pruned"),
		)
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := logs.CurrentPath(logDir)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("alist_url", cfg.Alist.BaseURL),
		logging.String("downloader", cfg.Alist.Downloader),
		logging.String("download_path", cfg.Alist.DownloadPath),
		logging.Int("feeds", len(cfg.Feeds.URLs)),
		logging.Duration("feed_interval", cfg.FeedInterval()),
		logging.String("extractor_mode", cfg.Extractor.Mode),
		logging.Bool("extractor_enabled", cfg.Extractor.Enabled),
		logging.Bool("lookup", cfg.Extractor.UseLookup),
		logging.Bool("rename", cfg.Rename.Enabled),
		logging.Bool("ntfy", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Bool("api", cfg.API.Bind != ""),
	)
}
