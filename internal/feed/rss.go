package feed

import (
	"context"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/moistari/rls"

	"mikanarr/internal/logging"
	"mikanarr/internal/textutil"
)

var (
	leadingTagPattern  = regexp.MustCompile(`^\s*[\[【]([^\]】]+)[\]】]`)
	bracketPattern     = regexp.MustCompile(`[\[【][^\]】]*[\]】]`)
	episodeTailPattern = regexp.MustCompile(`\s+-\s+\d{1,4}(\.\d)?\b.*$|\s+(?i:ep?)\d{1,4}\b.*$|\s+S\d{1,2}E\d{1,4}\b.*$`)
)

// Generic reads any RSS or Atom feed. The torrent URL is the first
// bittorrent enclosure, or the item link when it points at a torrent or a
// magnet. Series name and fansub are guessed from the title.
type Generic struct {
	url  string
	opts options
}

var _ Source = (*Generic)(nil)

func newGeneric(rawURL string, o options) *Generic {
	return &Generic{url: rawURL, opts: o}
}

// Name returns the feed URL.
func (g *Generic) Name() string { return g.url }

// Lookup is true: the guessed name benefits from catalogue resolution.
func (g *Generic) Lookup() bool { return true }

// Entries fetches the feed. Items without a usable download URL are skipped.
func (g *Generic) Entries(ctx context.Context) ([]Entry, error) {
	parsed, err := parseFeed(ctx, g.opts, g.url)
	if err != nil {
		return nil, err
	}
	logger := logging.WithContext(ctx, g.opts.logger)
	entries := make([]Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		download := genericDownloadURL(item)
		if download == "" {
			logger.Debug("feed item has no download url", logging.String(logging.FieldTitle, item.Title))
			continue
		}
		entries = append(entries, Entry{
			Title:       strings.TrimSpace(item.Title),
			TorrentURL:  download,
			HomepageURL: strings.TrimSpace(item.Link),
			Published:   publishedAt(item),
			Source:      g.url,
		})
	}
	return entries, nil
}

// Enrich guesses the series name and fansub from the title.
func (g *Generic) Enrich(_ context.Context, entry Entry) (ResourceInfo, error) {
	name, fansub := GuessName(entry.Title)
	return baseInfo(entry, name, fansub), nil
}

func genericDownloadURL(item *gofeed.Item) string {
	if torrent := torrentEnclosure(item); torrent != "" {
		return torrent
	}
	for _, enc := range item.Enclosures {
		if enc != nil && looksLikeTorrent(enc.URL) {
			return strings.TrimSpace(enc.URL)
		}
	}
	for _, link := range append([]string{item.Link}, item.Links...) {
		if looksLikeTorrent(link) {
			return strings.TrimSpace(link)
		}
	}
	return ""
}

func looksLikeTorrent(raw string) bool {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "magnet:") {
		return true
	}
	if idx := strings.IndexAny(raw, "?#"); idx >= 0 {
		raw = raw[:idx]
	}
	return strings.HasSuffix(raw, ".torrent")
}

// GuessName derives a series name and fansub from a release title such as
// "[Group] Series Name - 05 [1080p]". Western scene names go through rls.
func GuessName(title string) (name, fansub string) {
	title = textutil.Normalize(title)
	if m := leadingTagPattern.FindStringSubmatch(title); m != nil {
		fansub = strings.TrimSpace(m[1])
		rest := bracketPattern.ReplaceAllString(title[len(m[0]):], " ")
		rest = episodeTailPattern.ReplaceAllString(rest, "")
		rest = strings.Join(strings.Fields(rest), " ")
		if rest != "" {
			return rest, fansub
		}
	}
	release := rls.ParseString(title)
	if fansub == "" {
		fansub = strings.TrimSpace(release.Group)
	}
	name = textutil.TitleCase(release.Title)
	if name == "" {
		name = strings.TrimSpace(bracketPattern.ReplaceAllString(title, " "))
	}
	return name, fansub
}
