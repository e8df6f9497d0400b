package feed

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"mikanarr/internal/logging"
	"mikanarr/internal/services"
)

const (
	defaultHomepageCacheSize = 128
	fansubMarker             = "字幕组"
)

// Homepage is the bangumi information scraped from a Mikan episode page.
type Homepage struct {
	AnimeName string
	Fansub    string
}

// Mikan reads mikanani.me feeds. The series name and fansub come from the
// episode homepage, which is scraped once per URL and cached.
type Mikan struct {
	url   string
	opts  options
	pages *lru.Cache[string, Homepage]
	group singleflight.Group
}

var _ Source = (*Mikan)(nil)

func newMikan(rawURL string, o options) (*Mikan, error) {
	pages, err := lru.New[string, Homepage](o.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("feed: homepage cache: %w", err)
	}
	return &Mikan{url: rawURL, opts: o, pages: pages}, nil
}

// Name returns the feed URL.
func (m *Mikan) Name() string { return m.url }

// Lookup is false: the homepage already names the series.
func (m *Mikan) Lookup() bool { return false }

// Entries fetches the feed. Items without a torrent enclosure are skipped.
func (m *Mikan) Entries(ctx context.Context) ([]Entry, error) {
	parsed, err := parseFeed(ctx, m.opts, m.url)
	if err != nil {
		return nil, err
	}
	logger := logging.WithContext(ctx, m.opts.logger)
	entries := make([]Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		torrent := torrentEnclosure(item)
		if torrent == "" {
			logging.WarnWithContext(logger, "feed item has no torrent enclosure", "feed_item_skipped",
				logging.String(logging.FieldTitle, item.Title),
				logging.String(logging.FieldErrorHint, "check that the feed is a Mikan RSS feed"),
				logging.String(logging.FieldImpact, "item is ignored this cycle"),
			)
			continue
		}
		entries = append(entries, Entry{
			Title:       strings.TrimSpace(item.Title),
			TorrentURL:  torrent,
			HomepageURL: strings.TrimSpace(item.Link),
			Published:   publishedAt(item),
			Source:      m.url,
		})
	}
	return entries, nil
}

// Enrich scrapes the entry's homepage for the series name and fansub.
func (m *Mikan) Enrich(ctx context.Context, entry Entry) (ResourceInfo, error) {
	page, err := m.Homepage(ctx, entry.HomepageURL)
	if err != nil {
		return ResourceInfo{}, err
	}
	return baseInfo(entry, page.AnimeName, page.Fansub), nil
}

// Homepage returns the cached scrape of pageURL, fetching it on a miss.
func (m *Mikan) Homepage(ctx context.Context, pageURL string) (Homepage, error) {
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		return Homepage{}, services.Wrap(services.ErrValidation, "feed", "mikan homepage", "entry has no homepage url", nil)
	}
	if page, ok := m.pages.Get(pageURL); ok {
		return page, nil
	}
	value, err, _ := m.group.Do(pageURL, func() (any, error) {
		page, err := m.scrape(ctx, pageURL)
		if err != nil {
			return Homepage{}, err
		}
		m.pages.Add(pageURL, page)
		return page, nil
	})
	if err != nil {
		return Homepage{}, err
	}
	return value.(Homepage), nil
}

func (m *Mikan) scrape(ctx context.Context, pageURL string) (Homepage, error) {
	body, err := get(ctx, m.opts, pageURL)
	if err != nil {
		return Homepage{}, err
	}
	defer body.Close()
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return Homepage{}, services.Wrap(services.ErrApplication, "feed", "mikan homepage", pageURL, err)
	}
	return parseHomepage(doc, pageURL)
}

func parseHomepage(doc *goquery.Document, pageURL string) (Homepage, error) {
	name := strings.TrimSpace(doc.Find("p.bangumi-title").First().Text())
	if name == "" {
		return Homepage{}, services.Wrap(services.ErrApplication, "feed", "mikan homepage", pageURL+": bangumi title not found", nil)
	}
	page := Homepage{AnimeName: name}
	doc.Find("p.bangumi-info").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if !strings.Contains(text, fansubMarker) {
			return true
		}
		parts := strings.Split(text, "：")
		page.Fansub = strings.TrimSpace(parts[len(parts)-1])
		return false
	})
	return page, nil
}
