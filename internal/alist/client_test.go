package alist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"

	"mikanarr/internal/services"
)

type recordedRequest struct {
	Method  string
	Path    string
	Query   string
	Headers http.Header
	Length  int64
	Body    []byte
}

type fakeServer struct {
	t        *testing.T
	mu       sync.Mutex
	requests []recordedRequest
	routes   map[string]http.HandlerFunc
	server   *httptest.Server
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{t: t, routes: map[string]http.HandlerFunc{}}
	fs.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fs.mu.Lock()
		fs.requests = append(fs.requests, recordedRequest{
			Method:  r.Method,
			Path:    r.URL.Path,
			Query:   r.URL.RawQuery,
			Headers: r.Header.Clone(),
			Length:  r.ContentLength,
			Body:    body,
		})
		handler, ok := fs.routes[r.URL.Path]
		fs.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		handler(w, r)
	}))
	t.Cleanup(fs.server.Close)
	return fs
}

func (fs *fakeServer) handle(path string, handler http.HandlerFunc) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.routes[path] = handler
}

func (fs *fakeServer) ok(path string, data any) {
	fs.handle(path, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 200, "success", data)
	})
}

func (fs *fakeServer) recorded() []recordedRequest {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]recordedRequest(nil), fs.requests...)
}

func (fs *fakeServer) client(t *testing.T, downloader Downloader, opts ...Option) *Client {
	t.Helper()
	client, err := New(fs.server.URL, "secret-token", downloader, opts...)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return client
}

func writeEnvelope(w http.ResponseWriter, code int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "message": message, "data": data})
}

func buildTorrent(t *testing.T) ([]byte, metainfo.Hash) {
	t.Helper()
	info := metainfo.Info{
		Name:        "[Lilith-Raws] Frieren - 05.mkv",
		PieceLength: 16 * 1024,
		Length:      11,
		Pieces:      make([]byte, 20),
	}
	infoBytes, err := bencode.Marshal(info)
	if err != nil {
		t.Fatalf("marshal info: %v", err)
	}
	mi := metainfo.MetaInfo{InfoBytes: infoBytes, Announce: "udp://tracker.example.org:80"}
	var buf bytes.Buffer
	if err := mi.Write(&buf); err != nil {
		t.Fatalf("write torrent: %v", err)
	}
	return buf.Bytes(), mi.HashInfoBytes()
}

func TestNewValidatesInputs(t *testing.T) {
	if _, err := New("alist.local", "t", DownloaderAria2); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for relative url, got %v", err)
	}
	if _, err := New("http://alist.local", "t", Downloader("wget")); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for unknown downloader, got %v", err)
	}
}

func TestSessionCreatedLazilyOnce(t *testing.T) {
	fs := newFakeServer(t)
	fs.ok("/api/public/settings", map[string]string{"version": "v3.41.0"})
	client := fs.client(t, DownloaderAria2)
	if client.httpClient != nil {
		t.Fatal("expected no session before the first call")
	}

	var wg sync.WaitGroup
	sessions := make([]*http.Client, 8)
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i] = client.session()
		}(i)
	}
	wg.Wait()
	for _, s := range sessions {
		if s != sessions[0] {
			t.Fatal("expected every caller to share one session")
		}
	}
}

func TestVersionStripsPrefixAndCaches(t *testing.T) {
	fs := newFakeServer(t)
	fs.ok("/api/public/settings", map[string]string{"version": "v3.41.0"})
	client := fs.client(t, DownloaderAria2)

	for i := 0; i < 2; i++ {
		version, err := client.Version(context.Background())
		if err != nil {
			t.Fatalf("Version returned error: %v", err)
		}
		if version != "3.41.0" {
			t.Fatalf("unexpected version %q", version)
		}
	}
	requests := fs.recorded()
	if len(requests) != 1 {
		t.Fatalf("expected version to be cached, got %d requests", len(requests))
	}
	headers := requests[0].Headers
	if headers.Get("Authorization") != "secret-token" {
		t.Fatalf("unexpected authorization header %q", headers.Get("Authorization"))
	}
	if headers.Get("User-Agent") != defaultUserAgent {
		t.Fatalf("unexpected user agent %q", headers.Get("User-Agent"))
	}
}

func TestCallErrorKinds(t *testing.T) {
	fs := newFakeServer(t)
	fs.handle("/api/public/settings", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("bad gateway"))
	})
	fs.handle("/api/fs/mkdir", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 403, "permission denied", nil)
	})
	client := fs.client(t, DownloaderAria2)

	_, err := client.Version(context.Background())
	var transportErr *TransportError
	if !errors.As(err, &transportErr) || transportErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected transport error with status 502, got %v", err)
	}
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport marker, got %v", err)
	}

	err = client.CreateFolder(context.Background(), "/Anime")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != 403 || apiErr.Message != "permission denied" {
		t.Fatalf("expected api error, got %v", err)
	}
	if !errors.Is(err, services.ErrApplication) {
		t.Fatalf("expected application marker, got %v", err)
	}
}

func TestListTasksFetchesDoneThenUndone(t *testing.T) {
	fs := newFakeServer(t)
	fs.ok("/api/task/offline_download/done", []map[string]any{
		{"id": "d1", "name": "download https://mikanani.me/a.torrent to (/Anime/Frieren/Season 1)", "state": 2, "progress": 100},
	})
	fs.ok("/api/task/offline_download/undone", []map[string]any{
		{"id": "u1", "name": "download magnet:?xt=urn:btih:abc to (/Anime/Frieren/Season 1)", "state": 1, "progress": 42.5},
		{"id": "u2", "name": "odd name", "state": 0},
	})
	client := fs.client(t, DownloaderAria2)

	tasks, err := client.ListTasks(context.Background(), TaskTypeDownload, nil)
	if err != nil {
		t.Fatalf("ListTasks returned error: %v", err)
	}
	var ids []string
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	if strings.Join(ids, ",") != "d1,u1,u2" {
		t.Fatalf("unexpected order %v", ids)
	}
	requests := fs.recorded()
	if len(requests) != 2 || requests[0].Path != "/api/task/offline_download/done" || requests[1].Path != "/api/task/offline_download/undone" {
		t.Fatalf("unexpected request sequence %+v", requests)
	}
	first := tasks[0]
	if first.Type != TaskTypeDownload || first.State != StateSucceeded || !first.State.Terminal() {
		t.Fatalf("unexpected task %+v", first)
	}
	if first.URL != "https://mikanani.me/a.torrent" || first.SavePath != "/Anime/Frieren/Season 1" {
		t.Fatalf("unexpected parsed name %+v", first)
	}
	if tasks[2].URL != "" {
		t.Fatalf("expected unparsable name to leave URL empty, got %q", tasks[2].URL)
	}
}

func TestListTasksWithStatusAndEmptyData(t *testing.T) {
	fs := newFakeServer(t)
	fs.ok("/api/task/offline_download_transfer/undone", nil)
	client := fs.client(t, DownloaderAria2)

	status := TaskStatusUndone
	tasks, err := client.ListTasks(context.Background(), TaskTypeTransfer, &status)
	if err != nil {
		t.Fatalf("ListTasks returned error: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected no tasks, got %v", tasks)
	}
	if got := len(fs.recorded()); got != 1 {
		t.Fatalf("expected a single fetch, got %d", got)
	}
}

func TestTransferTaskNameParsing(t *testing.T) {
	raw := json.RawMessage(`[{"id":"t1","name":"transfer [/opt/alist/data/temp/qBittorrent/5c1b](/[ANi] Frieren - 05.mp4) to [/Onedrive](/Anime/Frieren/Season 1)","state":2}]`)
	tasks, err := decodeTasks(raw, TaskTypeTransfer)
	if err != nil {
		t.Fatalf("decodeTasks returned error: %v", err)
	}
	task := tasks[0]
	if task.Target != "/Onedrive/Anime/Frieren/Season 1" {
		t.Fatalf("unexpected target %q", task.Target)
	}
	if task.FileName() != "[ANi] Frieren - 05.mp4" {
		t.Fatalf("unexpected file name %q", task.FileName())
	}
}

func TestCancelTask(t *testing.T) {
	fs := newFakeServer(t)
	fs.ok("/api/task/offline_download_transfer/cancel", nil)
	client := fs.client(t, DownloaderAria2)

	if err := client.CancelTask(context.Background(), Task{ID: "abc", Type: TaskTypeTransfer}); err != nil {
		t.Fatalf("CancelTask returned error: %v", err)
	}
	req := fs.recorded()[0]
	if req.Method != http.MethodPost || req.Query != "tid=abc" {
		t.Fatalf("unexpected cancel request %+v", req)
	}
}

func TestAddOfflineDownloadPassesURLsThrough(t *testing.T) {
	fs := newFakeServer(t)
	fs.ok("/api/fs/add_offline_download", map[string]any{
		"tasks": []map[string]any{{"id": "n1", "name": "download https://mikanani.me/a.torrent to (/Anime/X)", "state": 0}},
	})
	client := fs.client(t, DownloaderQBittorrent)

	tasks, err := client.AddOfflineDownload(context.Background(), "/Anime/X", []string{"https://mikanani.me/a.torrent"}, "")
	if err != nil {
		t.Fatalf("AddOfflineDownload returned error: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "n1" || tasks[0].Type != TaskTypeDownload {
		t.Fatalf("unexpected tasks %+v", tasks)
	}
	var payload offlineDownloadRequest
	if err := json.Unmarshal(fs.recorded()[0].Body, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Tool != DownloaderQBittorrent || payload.DeletePolicy != DeleteAlways || payload.Path != "/Anime/X" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if len(payload.URLs) != 1 || payload.URLs[0] != "https://mikanani.me/a.torrent" {
		t.Fatalf("expected torrent url untouched, got %v", payload.URLs)
	}
}

func TestAddOfflineDownloadPikPakKeepsTorrentURLs(t *testing.T) {
	fs := newFakeServer(t)
	fs.ok("/api/fs/add_offline_download", map[string]any{"tasks": []any{}})
	scratch := t.TempDir()
	client := fs.client(t, DownloaderPikPak, WithTempDir(scratch))

	torrentURL := fs.server.URL + "/missing.torrent"
	if _, err := client.AddOfflineDownload(context.Background(), "/Anime", []string{torrentURL}, DeleteNever); err != nil {
		t.Fatalf("AddOfflineDownload returned error: %v", err)
	}
	requests := fs.recorded()
	if len(requests) != 1 || requests[0].Path != "/api/fs/add_offline_download" {
		t.Fatalf("expected a single submission without fetching the torrent, got %+v", requests)
	}
	var payload offlineDownloadRequest
	if err := json.Unmarshal(requests[0].Body, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(payload.URLs) != 1 || payload.URLs[0] != torrentURL {
		t.Fatalf("expected torrent url untouched, got %v", payload.URLs)
	}
	assertEmptyDir(t, scratch)
}

func TestAddOfflineDownloadConvertsTorrentForMagnetOnlyTools(t *testing.T) {
	torrent, hash := buildTorrent(t)
	fs := newFakeServer(t)
	fs.handle("/Download/frieren-05.torrent", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-bittorrent")
		_, _ = w.Write(torrent)
	})
	fs.ok("/api/fs/add_offline_download", map[string]any{"tasks": []any{}})
	scratch := t.TempDir()
	client := fs.client(t, Downloader115Cloud, WithTempDir(scratch))

	existing := "magnet:?xt=urn:btih:0123456789abcdef0123456789abcdef01234567"
	urls := []string{fs.server.URL + "/Download/frieren-05.torrent", existing}
	if _, err := client.AddOfflineDownload(context.Background(), "/Anime/Frieren", urls, DeleteNever); err != nil {
		t.Fatalf("AddOfflineDownload returned error: %v", err)
	}

	var submit recordedRequest
	for _, req := range fs.recorded() {
		if req.Path == "/api/fs/add_offline_download" {
			submit = req
		}
	}
	var payload offlineDownloadRequest
	if err := json.Unmarshal(submit.Body, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(payload.URLs) != 2 {
		t.Fatalf("expected two urls, got %v", payload.URLs)
	}
	if !strings.HasPrefix(payload.URLs[0], "magnet:?") || !strings.Contains(payload.URLs[0], "xt=urn:btih:"+hash.HexString()) {
		t.Fatalf("expected torrent converted to magnet, got %q", payload.URLs[0])
	}
	if payload.URLs[1] != existing {
		t.Fatalf("expected magnet passed through, got %q", payload.URLs[1])
	}
	assertEmptyDir(t, scratch)
}

func TestAddOfflineDownloadConversionFailureSubmitsNothing(t *testing.T) {
	fs := newFakeServer(t)
	fs.ok("/api/fs/add_offline_download", map[string]any{"tasks": []any{}})
	scratch := t.TempDir()
	client := fs.client(t, Downloader115Cloud, WithTempDir(scratch))

	urls := []string{fs.server.URL + "/missing.torrent"}
	_, err := client.AddOfflineDownload(context.Background(), "/Anime", urls, DeleteAlways)
	var transportErr *TransportError
	if !errors.As(err, &transportErr) || transportErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected torrent fetch failure, got %v", err)
	}
	for _, req := range fs.recorded() {
		if req.Path == "/api/fs/add_offline_download" {
			t.Fatal("expected no submission after a failed conversion")
		}
	}
	assertEmptyDir(t, scratch)
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read scratch dir: %v", err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, filepath.Join(dir, e.Name()))
		}
		t.Fatalf("expected scratch space removed, found %v", names)
	}
}

func TestParseDownloaderAndPolicy(t *testing.T) {
	d, err := ParseDownloader("115 cloud")
	if err != nil || d != Downloader115Cloud || !d.MagnetOnly() {
		t.Fatalf("unexpected downloader %q err=%v", d, err)
	}
	for _, d := range []Downloader{DownloaderAria2, DownloaderPikPak, DownloaderThunder} {
		if d.MagnetOnly() {
			t.Fatalf("%s accepts torrents", d)
		}
	}
	if d, err := ParseDownloader("pikpak"); err != nil || d != DownloaderPikPak || !d.Direct() {
		t.Fatalf("unexpected downloader %q err=%v", d, err)
	}
	if _, err := ParseDownloader("curl"); err == nil {
		t.Fatal("expected unknown downloader to fail")
	}
	if p, err := ParseDeletePolicy(""); err != nil || p != DeleteAlways {
		t.Fatalf("expected default policy, got %q err=%v", p, err)
	}
	if _, err := ParseDeletePolicy("delete_sometimes"); err == nil {
		t.Fatal("expected unknown policy to fail")
	}
}
