package feed

import (
	"strings"
	"time"
)

// Entry is one item of a parsed feed.
type Entry struct {
	Title       string
	TorrentURL  string
	HomepageURL string
	Published   time.Time
	Source      string
}

// ResourceInfo is an Entry enriched with the metadata needed to submit and
// later rename the download. Season, Episode and Version use -1 when unknown.
type ResourceInfo struct {
	Title       string    `json:"title"`
	TorrentURL  string    `json:"torrent_url"`
	HomepageURL string    `json:"homepage_url,omitempty"`
	Published   time.Time `json:"published"`
	Source      string    `json:"source,omitempty"`

	AnimeName string   `json:"anime_name"`
	Season    int      `json:"season"`
	Episode   int      `json:"episode"`
	Fansub    string   `json:"fansub,omitempty"`
	Quality   string   `json:"quality,omitempty"`
	Languages []string `json:"languages,omitempty"`
	Version   int      `json:"version"`
}

// baseInfo copies the entry fields and leaves the extracted fields unknown.
func baseInfo(entry Entry, animeName, fansub string) ResourceInfo {
	return ResourceInfo{
		Title:       entry.Title,
		TorrentURL:  entry.TorrentURL,
		HomepageURL: entry.HomepageURL,
		Published:   entry.Published,
		Source:      entry.Source,
		AnimeName:   strings.TrimSpace(animeName),
		Season:      -1,
		Episode:     -1,
		Fansub:      strings.TrimSpace(fansub),
		Quality:     "Unknown",
		Version:     -1,
	}
}

// DownloadURLs returns the URLs submitted to the downloader.
func (r ResourceInfo) DownloadURLs() []string {
	if strings.TrimSpace(r.TorrentURL) == "" {
		return nil
	}
	return []string{r.TorrentURL}
}

// HasSeason reports whether the season number is known.
func (r ResourceInfo) HasSeason() bool {
	return r.Season >= 0
}

// HasEpisode reports whether the episode number is known.
func (r ResourceInfo) HasEpisode() bool {
	return r.Episode >= 0
}
