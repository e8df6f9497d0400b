package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"mikanarr/internal/logging"
	"mikanarr/internal/services"
)

const (
	torrentMIMEType  = "application/x-bittorrent"
	defaultUserAgent = "mikanarr"
	defaultTimeout   = 30 * time.Second
	maxErrorBody     = 512
)

// Source is a single subscribed feed.
type Source interface {
	// Name identifies the source in logs; it is the feed URL.
	Name() string
	// Entries fetches and parses the feed.
	Entries(ctx context.Context) ([]Entry, error)
	// Enrich builds the base ResourceInfo for entry.
	Enrich(ctx context.Context, entry Entry) (ResourceInfo, error)
	// Lookup reports whether title analysis for this source may consult an
	// external catalogue to resolve the series.
	Lookup() bool
}

// Option configures a source.
type Option func(*options)

type options struct {
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
	cacheSize  int
}

// WithHTTPClient overrides the HTTP client used for feeds and homepages.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(agent string) Option {
	return func(o *options) {
		if agent = strings.TrimSpace(agent); agent != "" {
			o.userAgent = agent
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithHomepageCacheSize bounds the Mikan homepage cache.
func WithHomepageCacheSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.cacheSize = size
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  defaultUserAgent,
		cacheSize:  defaultHomepageCacheSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logging.NewComponentLogger(o.logger, "feed")
	return o
}

// NewSource returns the source implementation for rawURL.
func NewSource(rawURL string, opts ...Option) (Source, error) {
	rawURL = strings.TrimSpace(rawURL)
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, services.Wrap(services.ErrConfiguration, "feed", "new source", fmt.Sprintf("invalid url %q", rawURL), err)
	}
	o := buildOptions(opts)
	if isMikanHost(parsed.Hostname()) {
		return newMikan(rawURL, o)
	}
	return newGeneric(rawURL, o), nil
}

// NewSources builds one source per URL, stopping at the first invalid URL.
func NewSources(urls []string, opts ...Option) ([]Source, error) {
	sources := make([]Source, 0, len(urls))
	for _, raw := range urls {
		src, err := NewSource(raw, opts...)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func isMikanHost(host string) bool {
	host = strings.ToLower(host)
	for _, known := range []string{"mikanani.me", "mikanime.tv"} {
		if host == known || strings.HasSuffix(host, "."+known) {
			return true
		}
	}
	return false
}

// get issues a GET and returns the body of a 2xx response. The caller closes it.
func get(ctx context.Context, o options, target string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "feed", "build request", target, err)
	}
	req.Header.Set("User-Agent", o.userAgent)
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "feed", "fetch", target, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		msg := fmt.Sprintf("%s: http %d: %s", target, resp.StatusCode, strings.TrimSpace(string(body)))
		return nil, services.Wrap(services.ErrTransport, "feed", "fetch", msg, nil)
	}
	return resp.Body, nil
}

// parseFeed downloads and parses the feed at target.
func parseFeed(ctx context.Context, o options, target string) (*gofeed.Feed, error) {
	body, err := get(ctx, o, target)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	parsed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, services.Wrap(services.ErrApplication, "feed", "parse", target, err)
	}
	return parsed, nil
}

func torrentEnclosure(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc == nil {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(enc.Type), torrentMIMEType) {
			return strings.TrimSpace(enc.URL)
		}
	}
	return ""
}

func publishedAt(item *gofeed.Item) time.Time {
	switch {
	case item.PublishedParsed != nil:
		return *item.PublishedParsed
	case item.UpdatedParsed != nil:
		return *item.UpdatedParsed
	default:
		return time.Time{}
	}
}
