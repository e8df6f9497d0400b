package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"mikanarr/internal/extractor"
	"mikanarr/internal/feed"
	"mikanarr/internal/filter"
	"mikanarr/internal/logging"
	"mikanarr/internal/services"
)

const (
	defaultInterval    = 300 * time.Second
	defaultConcurrency = 4
)

// SeenChecker reports whether a title was already submitted.
type SeenChecker interface {
	Exists(ctx context.Context, title string) (bool, error)
}

// Sink receives the resources produced by a cycle.
type Sink interface {
	Accept(ctx context.Context, resources []feed.ResourceInfo) error
}

// Analyzer resolves structured metadata. *extractor.Extractor implements it.
type Analyzer interface {
	AnalyseAnimeName(ctx context.Context, name string) (extractor.AnimeNameResult, error)
	AnalyseResourceTitle(ctx context.Context, title string, useLookup bool) (extractor.ResourceTitleResult, error)
}

// Report summarizes one cycle.
type Report struct {
	CycleID       string
	StartedAt     time.Time
	Duration      time.Duration
	Sources       int
	SourceErrors  int
	Entries       int
	Filtered      int
	Seen          int
	Duplicates    int
	ExtractErrors int
	Resources     int
}

// Monitor polls feeds and emits new resources.
type Monitor struct {
	sources     []feed.Source
	gate        filter.Gate
	seen        SeenChecker
	analyzer    Analyzer
	sink        Sink
	logger      *slog.Logger
	interval    time.Duration
	concurrency int
	useLookup   bool

	mu   sync.RWMutex
	last Report
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval overrides the pause between cycles.
func WithInterval(interval time.Duration) Option {
	return func(m *Monitor) {
		if interval > 0 {
			m.interval = interval
		}
	}
}

// WithConcurrency bounds concurrent extractions within a cycle.
func WithConcurrency(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// WithLookup permits catalogue lookups for sources that request them.
func WithLookup(enabled bool) Option {
	return func(m *Monitor) {
		m.useLookup = enabled
	}
}

// New constructs a Monitor. A nil analyzer disables extraction: resources
// then carry only what the source provides. A nil gate admits everything.
// A typed-nil *extractor.Extractor is rejected as uninitialized.
func New(sources []feed.Source, gate filter.Gate, seen SeenChecker, analyzer Analyzer, sink Sink, logger *slog.Logger, opts ...Option) (*Monitor, error) {
	if ex, ok := analyzer.(*extractor.Extractor); ok && ex == nil {
		return nil, fmt.Errorf("monitor: %w", extractor.ErrNotInitialized)
	}
	if seen == nil {
		return nil, services.Wrap(services.ErrConfiguration, "monitor", "new", "dedup store required", nil)
	}
	if sink == nil {
		return nil, services.Wrap(services.ErrConfiguration, "monitor", "new", "sink required", nil)
	}
	m := &Monitor{
		sources:     sources,
		gate:        gate,
		seen:        seen,
		analyzer:    analyzer,
		sink:        sink,
		logger:      logging.NewComponentLogger(logger, "monitor"),
		interval:    defaultInterval,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Interval returns the pause between cycles.
func (m *Monitor) Interval() time.Duration {
	return m.interval
}

// LastReport returns the summary of the most recent cycle.
func (m *Monitor) LastReport() Report {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Run polls until ctx is done. Each non-empty batch is delivered to the
// sink; sink failures are logged and do not stop the loop. A configuration
// error from a cycle stops the loop and is returned.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("feed monitor started",
		logging.Int("sources", len(m.sources)),
		logging.Duration("interval", m.interval),
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		batch, err := m.Cycle(ctx)
		if err != nil {
			return err
		}
		if len(batch) > 0 {
			if err := m.sink.Accept(ctx, batch); err != nil && !errors.Is(err, context.Canceled) {
				logging.ErrorWithContext(m.logger, "download submission failed", "submission_failed",
					logging.Int("resources", len(batch)),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check Alist connectivity; titles stay unseen and are retried next cycle"),
				)
			}
		}
		timer := time.NewTimer(m.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

type candidate struct {
	source feed.Source
	entry  feed.Entry
}

// Cycle performs one poll and returns the new resources in source order.
// Per-source and per-entry failures are logged and skipped; only an error
// marked services.ErrConfiguration aborts the cycle and is returned.
func (m *Monitor) Cycle(ctx context.Context) ([]feed.ResourceInfo, error) {
	report := Report{CycleID: uuid.NewString(), StartedAt: time.Now(), Sources: len(m.sources)}
	ctx = services.WithCycleID(ctx, report.CycleID)
	logger := logging.WithContext(ctx, m.logger)
	logger.Info("feed cycle started", logging.Int("sources", len(m.sources)))

	perSource := m.fetchAll(ctx)

	var candidates []candidate
	inCycle := make(map[string]struct{})
	for i, entries := range perSource {
		if entries == nil {
			report.SourceErrors++
			continue
		}
		src := m.sources[i]
		srcCtx := services.WithSource(ctx, src.Name())
		for _, entry := range entries {
			report.Entries++
			if m.gate != nil && !m.gate.Allow(entry.Title) {
				report.Filtered++
				continue
			}
			if _, dup := inCycle[entry.Title]; dup {
				report.Duplicates++
				continue
			}
			seen, err := m.seen.Exists(srcCtx, entry.Title)
			if err != nil {
				logging.WarnWithContext(logging.WithContext(srcCtx, m.logger), "dedup lookup failed", "dedup_lookup_failed",
					logging.String(logging.FieldTitle, entry.Title),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check the database file"),
					logging.String(logging.FieldImpact, "entry is retried next cycle"),
				)
				continue
			}
			inCycle[entry.Title] = struct{}{}
			if seen {
				report.Seen++
				continue
			}
			candidates = append(candidates, candidate{source: src, entry: entry})
		}
	}

	resources, fatal := m.extractAll(ctx, candidates)
	if fatal != nil {
		report.Duration = time.Since(report.StartedAt)
		m.mu.Lock()
		m.last = report
		m.mu.Unlock()
		logging.ErrorWithContext(logger, "feed cycle aborted", "cycle_aborted",
			logging.Error(fatal),
			logging.String(logging.FieldErrorHint, "fix the extractor configuration and restart"),
			logging.String(logging.FieldImpact, "no resources are submitted until the daemon is restarted"),
		)
		return nil, fatal
	}
	out := make([]feed.ResourceInfo, 0, len(resources))
	for _, res := range resources {
		if res != nil {
			out = append(out, *res)
		}
	}
	report.ExtractErrors = len(candidates) - len(out)
	report.Resources = len(out)
	report.Duration = time.Since(report.StartedAt)

	m.mu.Lock()
	m.last = report
	m.mu.Unlock()

	logger.Info("feed cycle finished",
		logging.Int("entries", report.Entries),
		logging.Int("filtered", report.Filtered),
		logging.Int("seen", report.Seen),
		logging.Int("resources", report.Resources),
		logging.Int("source_errors", report.SourceErrors),
		logging.Int("extract_errors", report.ExtractErrors),
		logging.Duration("duration", report.Duration),
	)
	return out, nil
}

// fetchAll reads every source concurrently. A failed source leaves a nil
// slot; a source with no items leaves an empty non-nil slot.
func (m *Monitor) fetchAll(ctx context.Context) [][]feed.Entry {
	results := make([][]feed.Entry, len(m.sources))
	var wg sync.WaitGroup
	for i, src := range m.sources {
		wg.Add(1)
		go func(i int, src feed.Source) {
			defer wg.Done()
			srcCtx := services.WithSource(ctx, src.Name())
			entries, err := src.Entries(srcCtx)
			if err != nil {
				logging.ErrorWithContext(logging.WithContext(srcCtx, m.logger), "feed fetch failed", "feed_fetch_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check the feed URL and network access"),
				)
				return
			}
			if entries == nil {
				entries = []feed.Entry{}
			}
			results[i] = entries
		}(i, src)
	}
	wg.Wait()
	return results
}

// extractAll resolves candidates concurrently. The first configuration error
// cancels the remaining work and is returned.
func (m *Monitor) extractAll(ctx context.Context, candidates []candidate) ([]*feed.ResourceInfo, error) {
	results := make([]*feed.ResourceInfo, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for i, c := range candidates {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			srcCtx := services.WithSource(gctx, c.source.Name())
			info, err := m.resolve(srcCtx, c)
			if services.IsFatal(err) {
				return err
			}
			if err != nil {
				logging.ErrorWithContext(logging.WithContext(srcCtx, m.logger), "resource skipped", "resource_extract_failed",
					logging.String(logging.FieldTitle, c.entry.Title),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "entry stays unseen and is retried next cycle"),
				)
				return nil
			}
			results[i] = &info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// resolve builds the ResourceInfo for one entry.
func (m *Monitor) resolve(ctx context.Context, c candidate) (feed.ResourceInfo, error) {
	info, err := c.source.Enrich(ctx, c.entry)
	if err != nil {
		return feed.ResourceInfo{}, fmt.Errorf("enrich: %w", err)
	}
	if m.analyzer != nil {
		nameInput := info.AnimeName
		if nameInput == "" {
			nameInput, _ = feed.GuessName(c.entry.Title)
		}
		name, err := m.analyzer.AnalyseAnimeName(ctx, nameInput)
		if err != nil {
			return feed.ResourceInfo{}, err
		}
		if !name.IsUnknown() {
			info.AnimeName = name.AnimeName
			info.Season = name.Season
		}

		title, err := m.analyzer.AnalyseResourceTitle(ctx, c.entry.Title, m.useLookup && c.source.Lookup())
		if err != nil {
			return feed.ResourceInfo{}, err
		}
		info.Episode = title.Episode
		info.Quality = title.Quality
		info.Languages = title.Languages
		info.Version = title.Version
		if strings.TrimSpace(title.AnimeName) != "" {
			info.AnimeName = title.AnimeName
			info.Season = title.Season
		}
	}
	if strings.TrimSpace(info.AnimeName) == "" {
		info.AnimeName = extractor.UnknownName
	}
	return info, nil
}
