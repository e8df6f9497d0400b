package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"mikanarr/internal/config"
	"mikanarr/internal/logging"
	"mikanarr/internal/monitor"
	"mikanarr/internal/notifications"
	"mikanarr/internal/store"
)

// Daemon runs the acquisition pipeline and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	pipeline *Pipeline
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
	fatal   chan error
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Feeds        int
	LastCycle    monitor.Report
	ActiveTasks  int
	DatabasePath string
	LockFilePath string
}

// New constructs a daemon around an already wired pipeline.
func New(cfg *config.Config, records *store.Store, pipeline *Pipeline, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || records == nil || pipeline == nil {
		return nil, errors.New("daemon requires config, store, and pipeline")
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    records,
		pipeline: pipeline,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		fatal:    make(chan error, 1),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock and launches the feed monitor, the task
// watcher and the status API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another mikanarr daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.pipeline.Watcher.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start task watcher: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		d.pipeline.Watcher.Stop()
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := d.pipeline.Monitor.Run(runCtx); err != nil {
			logging.ErrorWithContext(d.logger, "feed monitor stopped", "monitor_stopped",
				logging.Error(err),
				logging.String(logging.FieldImpact, "daemon shuts down"),
			)
			select {
			case d.fatal <- err:
			default:
			}
		}
	}()

	d.cancel = cancel
	d.done = done
	d.running.Store(true)
	d.logger.Info("mikanarr daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("feeds", len(d.cfg.Feeds.URLs)),
	)
	return nil
}

// Fatal delivers the error that stopped the feed monitor. It never fires on
// a normal shutdown.
func (d *Daemon) Fatal() <-chan error {
	return d.fatal
}

// Stop halts background work and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.done != nil {
		<-d.done
		d.done = nil
	}
	d.pipeline.Watcher.Stop()
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("mikanarr daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		Feeds:        len(d.cfg.Feeds.URLs),
		LastCycle:    d.pipeline.Monitor.LastReport(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
	}
	if active, err := d.store.ActiveTasks(ctx); err == nil {
		status.ActiveTasks = len(active)
	}
	return status
}
