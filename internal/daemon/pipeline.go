package daemon

import (
	"fmt"
	"log/slog"

	"mikanarr/internal/alist"
	"mikanarr/internal/config"
	"mikanarr/internal/download"
	"mikanarr/internal/extractor"
	"mikanarr/internal/feed"
	"mikanarr/internal/filter"
	"mikanarr/internal/monitor"
	"mikanarr/internal/notifications"
	"mikanarr/internal/renamer"
	"mikanarr/internal/services/llm"
	"mikanarr/internal/store"
	"mikanarr/internal/tmdb"
)

// Pipeline holds the wired acquisition components.
type Pipeline struct {
	Alist   *alist.Client
	Monitor *monitor.Monitor
	Manager *download.Manager
	Watcher *download.Watcher
}

// NewAlistClient builds the Alist client described by cfg.
func NewAlistClient(cfg *config.Config) (*alist.Client, error) {
	downloader, err := alist.ParseDownloader(cfg.Alist.Downloader)
	if err != nil {
		return nil, err
	}
	return alist.New(cfg.Alist.BaseURL, cfg.Alist.Token, downloader,
		alist.WithTimeout(cfg.AlistTimeout()),
		alist.WithTempDir(cfg.Paths.DataDir),
	)
}

// NewExtractor builds the extraction backend selected by cfg.Extractor.Mode
// behind the metadata caches.
func NewExtractor(cfg *config.Config, logger *slog.Logger) (*extractor.Extractor, error) {
	var primary extractor.Backend = extractor.NewRegexBackend()
	if cfg.Extractor.Mode == config.ExtractorModeLLM {
		llmCfg := cfg.GetLLM()
		client := llm.NewClient(llm.Config{
			APIKey:         llmCfg.APIKey,
			BaseURL:        llmCfg.BaseURL,
			Model:          llmCfg.Model,
			Referer:        llmCfg.Referer,
			Title:          llmCfg.Title,
			TimeoutSeconds: llmCfg.TimeoutSeconds,
		})
		var searcher tmdb.Searcher
		if cfg.Extractor.UseLookup {
			tmdbClient, err := tmdb.New(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Language)
			if err != nil {
				return nil, fmt.Errorf("tmdb client: %w", err)
			}
			searcher = tmdbClient
		}
		backend, err := extractor.NewLLMBackend(client, searcher)
		if err != nil {
			return nil, err
		}
		primary = backend
	}
	return extractor.New(primary, extractor.WithLogger(logger))
}

// Build wires every pipeline component from cfg. records backs both the
// dedup check and the task records.
func Build(cfg *config.Config, records *store.Store, logger *slog.Logger) (*Pipeline, error) {
	client, err := NewAlistClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("alist client: %w", err)
	}
	policy, err := alist.ParseDeletePolicy(cfg.Alist.DeletePolicy)
	if err != nil {
		return nil, err
	}

	sources, err := feed.NewSources(cfg.Feeds.URLs, feed.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	gate, err := filter.New(cfg.Filter.Presets, cfg.Filter.Patterns, cfg.Filter.Exclude)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}

	var analyzer monitor.Analyzer
	if cfg.Extractor.Enabled {
		ex, err := NewExtractor(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("extractor: %w", err)
		}
		analyzer = ex
	}

	notifier := notifications.NewService(cfg)
	manager, err := download.NewManager(client, records, notifier, cfg.Alist.DownloadPath, policy, logger)
	if err != nil {
		return nil, err
	}

	watcherOpts := []download.WatcherOption{
		download.WithNotifier(notifier),
		download.WithPollInterval(cfg.TaskPollInterval()),
		download.WithDirectDownloads(client.Downloader().Direct()),
		download.WithWatcherLogger(logger),
	}
	if cfg.Rename.Enabled {
		r, err := renamer.New(client, cfg.Rename.Format, renamer.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("renamer: %w", err)
		}
		watcherOpts = append(watcherOpts, download.WithRenamer(r))
	}
	watcher, err := download.NewWatcher(client, records, watcherOpts...)
	if err != nil {
		return nil, err
	}

	mon, err := monitor.New(sources, gate, records, analyzer, manager, logger,
		monitor.WithInterval(cfg.FeedInterval()),
		monitor.WithLookup(cfg.Extractor.UseLookup),
	)
	if err != nil {
		return nil, err
	}

	return &Pipeline{Alist: client, Monitor: mon, Manager: manager, Watcher: watcher}, nil
}
