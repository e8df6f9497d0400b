package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mikanarr/internal/alist"
	"mikanarr/internal/extractor"
	"mikanarr/internal/feed"
	"mikanarr/internal/logging"
	"mikanarr/internal/notifications"
	"mikanarr/internal/services"
	"mikanarr/internal/store"
)

const defaultPollInterval = 10 * time.Second

// TaskLister lists Alist tasks.
type TaskLister interface {
	ListTasks(ctx context.Context, taskType alist.TaskType, status *alist.TaskStatus) (alist.TaskList, error)
}

// TaskStore tracks submitted tasks.
type TaskStore interface {
	ActiveTasks(ctx context.Context) ([]store.TaskRecord, error)
	UpdateTask(ctx context.Context, rec store.TaskRecord) error
	ClaimedTransfers(ctx context.Context) (map[string]struct{}, error)
}

// FileRenamer renames a finished file and returns its new path.
type FileRenamer interface {
	Rename(ctx context.Context, oldPath string, info feed.ResourceInfo) (string, error)
}

// Watcher follows submitted tasks through download and transfer.
type Watcher struct {
	tasks    TaskLister
	store    TaskStore
	renamer  FileRenamer
	notifier notifications.Service
	direct   bool
	interval time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithRenamer enables renaming of finished files.
func WithRenamer(r FileRenamer) WatcherOption {
	return func(w *Watcher) {
		w.renamer = r
	}
}

// WithNotifier sets the notification service.
func WithNotifier(n notifications.Service) WatcherOption {
	return func(w *Watcher) {
		if n != nil {
			w.notifier = n
		}
	}
}

// WithPollInterval overrides how often tasks are polled.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithDirectDownloads marks the downloader as storing files without a
// transfer phase.
func WithDirectDownloads(direct bool) WatcherOption {
	return func(w *Watcher) {
		w.direct = direct
	}
}

// WithWatcherLogger sets the logger.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// NewWatcher constructs a Watcher.
func NewWatcher(tasks TaskLister, records TaskStore, opts ...WatcherOption) (*Watcher, error) {
	if tasks == nil || records == nil {
		return nil, services.Wrap(services.ErrConfiguration, "download", "new watcher", "task lister and store required", nil)
	}
	w := &Watcher{
		tasks:    tasks,
		store:    records,
		notifier: notifications.NewService(nil),
		interval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = logging.NewComponentLogger(w.logger, "watcher")
	return w, nil
}

// Start schedules Poll every interval until Stop. Polls never overlap: a
// tick that fires while the previous poll runs is skipped.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cron != nil {
		return errors.New("watcher already running")
	}
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{w.logger}), cron.SkipIfStillRunning(cronLogger{w.logger})))
	c.Schedule(cron.Every(w.interval), cron.FuncJob(func() {
		if err := w.Poll(ctx); err != nil && ctx.Err() == nil {
			logging.WarnWithContext(w.logger, "task poll failed", "task_poll_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check Alist connectivity"),
				logging.String(logging.FieldImpact, "task progress is picked up on the next poll"),
			)
		}
	}))
	c.Start()
	w.cron = c
	w.logger.Info("task watcher started", logging.Duration("interval", w.interval))
	return nil
}

// Stop halts the schedule and waits for a running poll to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	c := w.cron
	w.cron = nil
	w.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
}

// Poll checks every active record once.
func (w *Watcher) Poll(ctx context.Context) error {
	records, err := w.store.ActiveTasks(ctx)
	if err != nil {
		return fmt.Errorf("load active tasks: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	downloads, err := w.tasks.ListTasks(ctx, alist.TaskTypeDownload, nil)
	if err != nil {
		return fmt.Errorf("list download tasks: %w", err)
	}
	for i := range records {
		if records[i].Status == store.TaskDownloading {
			w.advanceDownload(ctx, &records[i], downloads)
		}
	}

	if w.direct || !hasStatus(records, store.TaskTransferring) {
		return nil
	}
	transfers, err := w.tasks.ListTasks(ctx, alist.TaskTypeTransfer, nil)
	if err != nil {
		return fmt.Errorf("list transfer tasks: %w", err)
	}
	claimed, err := w.store.ClaimedTransfers(ctx)
	if err != nil {
		return fmt.Errorf("load claimed transfers: %w", err)
	}
	for i := range records {
		if records[i].Status == store.TaskTransferring {
			w.advanceTransfer(ctx, &records[i], transfers, claimed)
		}
	}
	return nil
}

func hasStatus(records []store.TaskRecord, status store.TaskStatus) bool {
	for _, rec := range records {
		if rec.Status == status {
			return true
		}
	}
	return false
}

func (w *Watcher) advanceDownload(ctx context.Context, rec *store.TaskRecord, downloads alist.TaskList) {
	task, ok := downloads.Find(rec.TaskID)
	if !ok || !task.State.Terminal() {
		return
	}
	switch task.State {
	case alist.StateSucceeded:
		if w.direct {
			rec.Status = store.TaskCompleted
			rec.FinalPath = rec.SavePath
			w.save(ctx, rec)
			w.notifyCompleted(ctx, rec)
			return
		}
		rec.Status = store.TaskTransferring
		w.save(ctx, rec)
	case alist.StateCanceled:
		rec.Status = store.TaskCanceled
		rec.ErrorMessage = task.Error
		w.save(ctx, rec)
	default:
		w.fail(ctx, rec, task)
	}
}

func (w *Watcher) advanceTransfer(ctx context.Context, rec *store.TaskRecord, transfers alist.TaskList, claimed map[string]struct{}) {
	if rec.TransferID == "" {
		match, ok := matchTransfer(rec, transfers, claimed)
		if !ok {
			return
		}
		rec.TransferID = match.ID
		claimed[match.ID] = struct{}{}
		w.save(ctx, rec)
	}
	task, ok := transfers.Find(rec.TransferID)
	if !ok || !task.State.Terminal() {
		return
	}
	switch task.State {
	case alist.StateSucceeded:
		finalPath := path.Join(task.Target, task.FileName())
		if w.renamer != nil && task.FileName() != "" {
			if renamed, err := w.renamer.Rename(ctx, finalPath, rec.Resource); err == nil {
				finalPath = renamed
			}
		}
		rec.Status = store.TaskCompleted
		rec.FinalPath = finalPath
		w.save(ctx, rec)
		w.notifyCompleted(ctx, rec)
	case alist.StateCanceled:
		rec.Status = store.TaskCanceled
		rec.ErrorMessage = task.Error
		w.save(ctx, rec)
	default:
		w.fail(ctx, rec, task)
	}
}

// matchTransfer picks the transfer into rec's save path. When several are
// unclaimed, the one whose file name carries rec's episode number wins.
func matchTransfer(rec *store.TaskRecord, transfers alist.TaskList, claimed map[string]struct{}) (alist.TransferTask, bool) {
	var candidates []alist.TransferTask
	for _, task := range transfers {
		if _, taken := claimed[task.ID]; taken {
			continue
		}
		if path.Clean(task.Target) == path.Clean(rec.SavePath) {
			candidates = append(candidates, task)
		}
	}
	if len(candidates) == 0 {
		return alist.TransferTask{}, false
	}
	if len(candidates) > 1 && rec.Resource.HasEpisode() {
		names := extractor.NewRegexBackend()
		for _, task := range candidates {
			parsed, ok := names.AnalyseResourceTitle(context.Background(), task.FileName(), false).Value()
			if ok && parsed.Episode == rec.Resource.Episode {
				return task, true
			}
		}
	}
	return candidates[0], true
}

func (w *Watcher) save(ctx context.Context, rec *store.TaskRecord) {
	if err := w.store.UpdateTask(ctx, *rec); err != nil {
		logging.WarnWithContext(w.logger, "task record update failed", "task_record_failed",
			logging.String("task_id", rec.TaskID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the task is re-evaluated on the next poll"),
		)
	}
}

func (w *Watcher) fail(ctx context.Context, rec *store.TaskRecord, task alist.Task) {
	rec.Status = store.TaskFailed
	rec.ErrorMessage = task.Error
	w.save(ctx, rec)
	logging.ErrorWithContext(w.logger, "remote task failed", "task_failed",
		logging.String("task_id", task.ID),
		logging.String(logging.FieldTitle, rec.Resource.Title),
		logging.String("reason", task.Error),
		logging.String(logging.FieldErrorHint, "forget the title with 'mikanarr seen forget' to retry it"),
	)
	if err := w.notifier.NotifyDownloadFailed(ctx, rec.Resource.Title, task.Error); err != nil {
		w.logger.Warn("notification failed", logging.Error(err), logging.String(logging.FieldEventType, "notify_failed"))
	}
}

func (w *Watcher) notifyCompleted(ctx context.Context, rec *store.TaskRecord) {
	w.logger.Info("download completed",
		logging.String("task_id", rec.TaskID),
		logging.String(logging.FieldTitle, rec.Resource.Title),
		logging.String("path", rec.FinalPath),
	)
	fileName := ""
	if rec.FinalPath != rec.SavePath {
		fileName = path.Base(rec.FinalPath)
	}
	if err := w.notifier.NotifyDownloadCompleted(ctx, rec.Resource.AnimeName, fileName); err != nil {
		w.logger.Warn("notification failed", logging.Error(err), logging.String(logging.FieldEventType, "notify_failed"))
	}
}

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{logging.Error(err)}, keysAndValues...)...)
}
