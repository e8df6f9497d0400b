package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"mikanarr/internal/logging"
	"mikanarr/internal/services"
)

// ErrNotInitialized is returned when an Extractor is used without a backend.
var ErrNotInitialized = fmt.Errorf("%w: extractor is not initialized", services.ErrConfiguration)

// Backend performs uncached metadata extraction.
type Backend interface {
	AnalyseAnimeName(ctx context.Context, name string) Outcome[AnimeNameResult]
	AnalyseResourceTitle(ctx context.Context, title string, useLookup bool) Outcome[ResourceTitleResult]
}

type titleKey struct {
	title     string
	useLookup bool
}

// Stats groups the counters of both caches.
type Stats struct {
	AnimeNames     CacheStats
	ResourceTitles CacheStats
}

// Extractor is the cached extraction entry point shared by every feed source.
type Extractor struct {
	primary Backend
	names   Backend
	logger  *slog.Logger

	nameCache  *Cache[string, AnimeNameResult]
	titleCache *Cache[titleKey, ResourceTitleResult]
}

// Option customizes an Extractor.
type Option func(*extractorOptions)

type extractorOptions struct {
	logger      *slog.Logger
	cacheSize   int
	nameBackend Backend
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *extractorOptions) { o.logger = logger }
}

// WithCacheSize overrides the per-kind cache capacity.
func WithCacheSize(size int) Option {
	return func(o *extractorOptions) { o.cacheSize = size }
}

// WithNameBackend replaces the regex backend used for series names.
func WithNameBackend(backend Backend) Option {
	return func(o *extractorOptions) { o.nameBackend = backend }
}

// New wraps primary with caching. A nil primary is a configuration error.
func New(primary Backend, opts ...Option) (*Extractor, error) {
	if primary == nil {
		return nil, ErrNotInitialized
	}
	options := extractorOptions{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&options)
	}
	if options.nameBackend == nil {
		options.nameBackend = NewRegexBackend()
	}

	nameCache, err := NewCache(options.cacheSize, UnknownAnimeName(), func(name string) string { return name })
	if err != nil {
		return nil, err
	}
	titleCache, err := NewCache(options.cacheSize, UnknownResourceTitle(), func(k titleKey) string {
		return strconv.FormatBool(k.useLookup) + "|" + k.title
	})
	if err != nil {
		return nil, err
	}
	return &Extractor{
		primary:    primary,
		names:      options.nameBackend,
		logger:     logging.NewComponentLogger(options.logger, "extractor"),
		nameCache:  nameCache,
		titleCache: titleCache,
	}, nil
}

// AnalyseAnimeName resolves the series name and season of name.
func (e *Extractor) AnalyseAnimeName(ctx context.Context, name string) (AnimeNameResult, error) {
	if e == nil || e.primary == nil {
		return AnimeNameResult{}, ErrNotInitialized
	}
	name = strings.TrimSpace(name)
	result, err := e.nameCache.GetOrCompute(ctx, name, func(ctx context.Context) Outcome[AnimeNameResult] {
		outcome := e.names.AnalyseAnimeName(ctx, name)
		e.logOutcome(ctx, "anime name", name, outcome.IsNotFound(), outcome.Err())
		return outcome
	})
	if err != nil {
		return AnimeNameResult{}, fmt.Errorf("analyse anime name %q: %w", name, err)
	}
	return result, nil
}

// AnalyseResourceTitle resolves episode, quality, languages and version of
// a release title. useLookup permits the backend to consult an external
// catalogue and is part of the cache key.
func (e *Extractor) AnalyseResourceTitle(ctx context.Context, title string, useLookup bool) (ResourceTitleResult, error) {
	if e == nil || e.primary == nil {
		return ResourceTitleResult{}, ErrNotInitialized
	}
	title = strings.TrimSpace(title)
	key := titleKey{title: title, useLookup: useLookup}
	result, err := e.titleCache.GetOrCompute(ctx, key, func(ctx context.Context) Outcome[ResourceTitleResult] {
		outcome := e.primary.AnalyseResourceTitle(ctx, title, useLookup)
		e.logOutcome(ctx, "resource title", title, outcome.IsNotFound(), outcome.Err())
		return outcome
	})
	if err != nil {
		return ResourceTitleResult{}, fmt.Errorf("analyse resource title %q: %w", title, err)
	}
	return result.clone(), nil
}

// Stats reports cache counters.
func (e *Extractor) Stats() Stats {
	if e == nil || e.primary == nil {
		return Stats{}
	}
	return Stats{AnimeNames: e.nameCache.Stats(), ResourceTitles: e.titleCache.Stats()}
}

func (e *Extractor) logOutcome(ctx context.Context, kind, input string, notFound bool, err error) {
	logger := logging.WithContext(ctx, e.logger)
	switch {
	case notFound:
		logging.WarnWithContext(logger, kind+" not found; caching unknown result", "extraction_not_found",
			logging.String(logging.FieldTitle, input),
			logging.String(logging.FieldErrorHint, "check the title format or backend configuration"),
			logging.String(logging.FieldImpact, "resource is submitted with unknown metadata"),
		)
	case err != nil:
		logging.ErrorWithContext(logger, kind+" extraction failed", "extraction_failed",
			logging.String(logging.FieldTitle, input),
			logging.Error(err),
		)
	default:
		logger.Debug(kind+" extracted", logging.String(logging.FieldTitle, input))
	}
}
