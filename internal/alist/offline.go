package alist

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/anacrolix/torrent/metainfo"

	"mikanarr/internal/services"
)

// Downloader is an offline download tool name as Alist expects it.
type Downloader string

const (
	DownloaderAria2        Downloader = "aria2"
	DownloaderQBittorrent  Downloader = "qBittorrent"
	DownloaderTransmission Downloader = "Transmission"
	DownloaderSimpleHTTP   Downloader = "SimpleHttp"
	Downloader115Cloud     Downloader = "115 Cloud"
	DownloaderPikPak       Downloader = "PikPak"
	DownloaderThunder      Downloader = "Thunder"
)

var downloaders = []Downloader{
	DownloaderAria2,
	DownloaderQBittorrent,
	DownloaderTransmission,
	DownloaderSimpleHTTP,
	Downloader115Cloud,
	DownloaderPikPak,
	DownloaderThunder,
}

// ParseDownloader matches name case-insensitively against the known tools.
func ParseDownloader(name string) (Downloader, error) {
	name = strings.TrimSpace(name)
	for _, d := range downloaders {
		if strings.EqualFold(string(d), name) {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: unsupported alist downloader %q", services.ErrConfiguration, name)
}

// Valid reports whether d is a known tool.
func (d Downloader) Valid() bool {
	for _, known := range downloaders {
		if d == known {
			return true
		}
	}
	return false
}

// Direct reports whether the tool writes straight into Alist storage. Such
// downloads finish without a transfer task.
func (d Downloader) Direct() bool {
	switch d {
	case Downloader115Cloud, DownloaderPikPak, DownloaderThunder:
		return true
	default:
		return false
	}
}

// MagnetOnly reports whether the tool rejects .torrent URLs. Only 115 Cloud
// does; PikPak and Thunder fetch torrents themselves.
func (d Downloader) MagnetOnly() bool {
	return d == Downloader115Cloud
}

// DeletePolicy controls what Alist does with the downloader's local copy.
type DeletePolicy string

const (
	DeleteOnUploadSucceed DeletePolicy = "delete_on_upload_succeed"
	DeleteOnUploadFailed  DeletePolicy = "delete_on_upload_failed"
	DeleteNever           DeletePolicy = "delete_never"
	DeleteAlways          DeletePolicy = "delete_always"
)

// ParseDeletePolicy validates a configured policy. Empty means DeleteAlways.
func ParseDeletePolicy(value string) (DeletePolicy, error) {
	switch policy := DeletePolicy(strings.ToLower(strings.TrimSpace(value))); policy {
	case "":
		return DeleteAlways, nil
	case DeleteOnUploadSucceed, DeleteOnUploadFailed, DeleteNever, DeleteAlways:
		return policy, nil
	default:
		return "", fmt.Errorf("%w: unsupported delete policy %q", services.ErrConfiguration, value)
	}
}

type offlineDownloadRequest struct {
	DeletePolicy DeletePolicy `json:"delete_policy"`
	Path         string       `json:"path"`
	URLs         []string     `json:"urls"`
	Tool         Downloader   `json:"tool"`
}

// AddOfflineDownload submits urls as one offline-download request saving
// into savePath. Torrent URLs are converted to magnet links first when the
// downloader requires it; a failed conversion aborts the whole submission.
func (c *Client) AddOfflineDownload(ctx context.Context, savePath string, urls []string, policy DeletePolicy) ([]DownloadTask, error) {
	if len(urls) == 0 {
		return nil, services.Wrap(services.ErrValidation, "alist", "add offline download", "no urls", nil)
	}
	if policy == "" {
		policy = DeleteAlways
	}
	submitted := urls
	if c.downloader.MagnetOnly() {
		converted := make([]string, 0, len(urls))
		for _, raw := range urls {
			if !isTorrentURL(raw) {
				converted = append(converted, raw)
				continue
			}
			magnet, err := c.torrentToMagnet(ctx, raw)
			if err != nil {
				return nil, err
			}
			converted = append(converted, magnet)
		}
		submitted = converted
	}

	var data struct {
		Tasks []Task `json:"tasks"`
	}
	err := c.call(ctx, request{
		method:   http.MethodPost,
		endpoint: "api/fs/add_offline_download",
		payload: offlineDownloadRequest{
			DeletePolicy: policy,
			Path:         savePath,
			URLs:         submitted,
			Tool:         c.downloader,
		},
	}, &data)
	if err != nil {
		return nil, err
	}
	for i := range data.Tasks {
		data.Tasks[i].Type = TaskTypeDownload
		data.Tasks[i].parseName()
	}
	return data.Tasks, nil
}

func isTorrentURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "magnet" {
		return false
	}
	return strings.HasSuffix(strings.ToLower(parsed.Path), ".torrent")
}

// torrentToMagnet downloads the torrent at torrentURL into a scratch
// directory and returns its magnet URI. The scratch directory is always
// removed before returning.
func (c *Client) torrentToMagnet(ctx context.Context, torrentURL string) (string, error) {
	dir, err := os.MkdirTemp(c.tempDir, "mikanarr-torrent-")
	if err != nil {
		return "", services.Wrap(services.ErrTransport, "alist", "torrent to magnet", "create scratch dir", err)
	}
	defer os.RemoveAll(dir)

	file := filepath.Join(dir, "download.torrent")
	if err := c.fetchFile(ctx, torrentURL, file); err != nil {
		return "", err
	}
	mi, err := metainfo.LoadFromFile(file)
	if err != nil {
		return "", services.Wrap(services.ErrApplication, "alist", "torrent to magnet", "parse "+torrentURL, err)
	}
	info, err := mi.UnmarshalInfo()
	if err != nil {
		return "", services.Wrap(services.ErrApplication, "alist", "torrent to magnet", "decode info "+torrentURL, err)
	}
	magnet := mi.Magnet(nil, &info)
	return magnet.String(), nil
}

func (c *Client) fetchFile(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return services.Wrap(services.ErrValidation, "alist", "fetch torrent", rawURL, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.session().Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransport, "alist", "fetch torrent", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{Method: http.MethodGet, Endpoint: rawURL, StatusCode: resp.StatusCode}
	}

	out, err := os.Create(dest)
	if err != nil {
		return services.Wrap(services.ErrTransport, "alist", "fetch torrent", "create file", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		return services.Wrap(services.ErrTransport, "alist", "fetch torrent", rawURL, err)
	}
	if err := out.Close(); err != nil {
		return services.Wrap(services.ErrTransport, "alist", "fetch torrent", "close file", err)
	}
	return nil
}
