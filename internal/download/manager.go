package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"mikanarr/internal/alist"
	"mikanarr/internal/feed"
	"mikanarr/internal/logging"
	"mikanarr/internal/notifications"
	"mikanarr/internal/services"
	"mikanarr/internal/store"
	"mikanarr/internal/textutil"
)

// Submitter is the part of the Alist client used for submission.
type Submitter interface {
	EnsureFolder(ctx context.Context, dir string) error
	AddOfflineDownload(ctx context.Context, savePath string, urls []string, policy alist.DeletePolicy) ([]alist.DownloadTask, error)
}

// Recorder persists submitted tasks and seen titles.
type Recorder interface {
	RecordTask(ctx context.Context, rec store.TaskRecord) error
	MarkSeen(ctx context.Context, titles ...string) error
}

// Manager submits resource batches.
type Manager struct {
	client   Submitter
	records  Recorder
	notifier notifications.Service
	basePath string
	policy   alist.DeletePolicy
	logger   *slog.Logger
}

// NewManager constructs a Manager saving under basePath.
func NewManager(client Submitter, records Recorder, notifier notifications.Service, basePath string, policy alist.DeletePolicy, logger *slog.Logger) (*Manager, error) {
	if client == nil || records == nil {
		return nil, services.Wrap(services.ErrConfiguration, "download", "new manager", "alist client and store required", nil)
	}
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, services.Wrap(services.ErrConfiguration, "download", "new manager", "download path required", nil)
	}
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	return &Manager{
		client:   client,
		records:  records,
		notifier: notifier,
		basePath: path.Clean("/" + basePath),
		policy:   policy,
		logger:   logging.NewComponentLogger(logger, "download"),
	}, nil
}

// SavePath returns the folder a resource is downloaded into.
func SavePath(base string, info feed.ResourceInfo) string {
	name := textutil.SanitizeFileName(info.AnimeName)
	if name == "" {
		name = "Unknown"
	}
	if !info.HasSeason() {
		return path.Join(base, name)
	}
	return path.Join(base, name, fmt.Sprintf("Season %d", info.Season))
}

type group struct {
	savePath  string
	resources []feed.ResourceInfo
}

// groupBySavePath groups resources by folder in first-seen order. Resources
// without a download URL are returned separately.
func groupBySavePath(base string, resources []feed.ResourceInfo) ([]*group, []feed.ResourceInfo) {
	var (
		order    []*group
		unusable []feed.ResourceInfo
	)
	index := make(map[string]*group)
	for _, res := range resources {
		if len(res.DownloadURLs()) == 0 {
			unusable = append(unusable, res)
			continue
		}
		dir := SavePath(base, res)
		g, ok := index[dir]
		if !ok {
			g = &group{savePath: dir}
			index[dir] = g
			order = append(order, g)
		}
		g.resources = append(g.resources, res)
	}
	return order, unusable
}

// Accept submits resources. Each save path is submitted independently; the
// returned error joins the failures of every group. Resources without a
// download URL are logged and marked seen since no later cycle can submit them.
func (m *Manager) Accept(ctx context.Context, resources []feed.ResourceInfo) error {
	groups, unusable := groupBySavePath(m.basePath, resources)
	m.skipUnusable(ctx, unusable)

	var errs []error
	for _, g := range groups {
		if err := m.submit(ctx, g); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) skipUnusable(ctx context.Context, resources []feed.ResourceInfo) {
	if len(resources) == 0 {
		return
	}
	logger := logging.WithContext(ctx, m.logger)
	titles := make([]string, 0, len(resources))
	for _, res := range resources {
		logging.WarnWithContext(logger, "resource has no download url", "resource_without_url",
			logging.String(logging.FieldTitle, res.Title),
			logging.String("source", res.Source),
			logging.String(logging.FieldImpact, "resource is marked seen and never submitted"),
		)
		titles = append(titles, res.Title)
	}
	if err := m.records.MarkSeen(ctx, titles...); err != nil {
		logging.WarnWithContext(logger, "failed to mark titles seen", "mark_seen_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "titles are enriched again next cycle"),
		)
	}
}

func (m *Manager) submit(ctx context.Context, g *group) error {
	logger := logging.WithContext(ctx, m.logger).With(logging.String("save_path", g.savePath))
	if err := m.client.EnsureFolder(ctx, g.savePath); err != nil {
		return fmt.Errorf("prepare %s: %w", g.savePath, err)
	}

	urls := make([]string, 0, len(g.resources))
	titles := make([]string, 0, len(g.resources))
	for _, res := range g.resources {
		urls = append(urls, res.DownloadURLs()...)
		titles = append(titles, res.Title)
	}
	tasks, err := m.client.AddOfflineDownload(ctx, g.savePath, urls, m.policy)
	if err != nil {
		return fmt.Errorf("submit %d url(s) to %s: %w", len(urls), g.savePath, err)
	}

	if len(tasks) == len(g.resources) {
		for i, task := range tasks {
			rec := store.TaskRecord{TaskID: task.ID, SavePath: g.savePath, Status: store.TaskDownloading, Resource: g.resources[i]}
			if err := m.records.RecordTask(ctx, rec); err != nil {
				logging.WarnWithContext(logger, "task record not saved", "task_record_failed",
					logging.String("task_id", task.ID),
					logging.Error(err),
					logging.String(logging.FieldImpact, "the file will not be renamed when the download finishes"),
				)
			}
		}
	} else {
		logging.WarnWithContext(logger, "alist returned an unexpected task count", "task_count_mismatch",
			logging.Int("urls", len(urls)),
			logging.Int("tasks", len(tasks)),
			logging.String(logging.FieldImpact, "tasks are not tracked and files will not be renamed"),
		)
	}

	if err := m.records.MarkSeen(ctx, titles...); err != nil {
		logging.ErrorWithContext(logger, "failed to mark titles seen", "mark_seen_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the database file; titles may be submitted again"),
		)
	}
	logger.Info("offline download submitted",
		logging.Int("resources", len(g.resources)),
		logging.Int("tasks", len(tasks)),
	)
	if err := m.notifier.NotifySubmitted(ctx, g.resources[0].AnimeName, titles); err != nil {
		logger.Warn("notification failed", logging.Error(err), logging.String(logging.FieldEventType, "notify_failed"))
	}
	return nil
}
