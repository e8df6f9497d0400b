package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mikanarr/internal/alist"
	"mikanarr/internal/config"
	"mikanarr/internal/feed"
	"mikanarr/internal/logs"
	"mikanarr/internal/store"
	"mikanarr/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t, opts...)
	return &cliTestEnv{cfg: cfg, configPath: testsupport.WriteConfig(t, cfg)}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func seedStore(t *testing.T, cfg *config.Config, fn func(context.Context, *store.Store)) {
	t.Helper()
	records, err := store.Open(context.Background(), cfg.DatabasePath())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer records.Close()
	fn(context.Background(), records)
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "test-token") {
		t.Fatalf("token leaked in output:\n%s", out)
	}
	requireContains(t, out, redacted)

	out, _, err = runCLI(t, []string{"config", "show", "--secrets"}, env.configPath)
	if err != nil {
		t.Fatalf("config show --secrets: %v", err)
	}
	requireContains(t, out, "test-token")
}

func TestSeenCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	seedStore(t, env.cfg, func(ctx context.Context, records *store.Store) {
		if err := records.MarkSeen(ctx, "[ANi] Frieren - 05", "[ANi] Frieren - 06"); err != nil {
			t.Fatalf("MarkSeen: %v", err)
		}
	})

	out, _, err := runCLI(t, []string{"seen", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("seen list: %v", err)
	}
	requireContains(t, out, "[ANi] Frieren - 05")

	out, _, err = runCLI(t, []string{"seen", "forget", "[ANi] Frieren - 05", "missing"}, env.configPath)
	if err != nil {
		t.Fatalf("seen forget: %v", err)
	}
	requireContains(t, out, "Forgot 1 title(s)")

	if _, _, err := runCLI(t, []string{"seen", "clear"}, env.configPath); err == nil {
		t.Fatal("expected clear without --yes to fail")
	}
	out, _, err = runCLI(t, []string{"seen", "clear", "--yes"}, env.configPath)
	if err != nil {
		t.Fatalf("seen clear: %v", err)
	}
	requireContains(t, out, "Cleared 1 title(s)")

	out, _, err = runCLI(t, []string{"seen", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("seen list: %v", err)
	}
	requireContains(t, out, "No titles seen yet")
}

func TestTasksList(t *testing.T) {
	env := setupCLITestEnv(t)
	seedStore(t, env.cfg, func(ctx context.Context, records *store.Store) {
		for _, rec := range []store.TaskRecord{
			{TaskID: "dl-1", SavePath: "/Anime/Frieren/Season 1", Resource: feed.ResourceInfo{Title: "a", AnimeName: "Frieren", Episode: 5}},
			{TaskID: "dl-2", SavePath: "/Anime/Meshi/Season 1", Status: store.TaskFailed, Resource: feed.ResourceInfo{Title: "b", AnimeName: "Meshi", Episode: -1}},
		} {
			if err := records.RecordTask(ctx, rec); err != nil {
				t.Fatalf("RecordTask: %v", err)
			}
		}
	})

	out, _, err := runCLI(t, []string{"tasks", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("tasks list: %v", err)
	}
	requireContains(t, out, "dl-1")
	requireContains(t, out, "dl-2")

	out, _, err = runCLI(t, []string{"tasks", "list", "--status", "failed"}, env.configPath)
	if err != nil {
		t.Fatalf("tasks list --status: %v", err)
	}
	if strings.Contains(out, "dl-1") {
		t.Fatalf("status filter ignored:\n%s", out)
	}

	if _, _, err := runCLI(t, []string{"tasks", "list", "--status", "paused"}, env.configPath); err == nil {
		t.Fatal("expected unknown status to fail")
	}
}

type recordingCanceler struct {
	canceled []alist.Task
	err      error
}

func (c *recordingCanceler) CancelTask(_ context.Context, task alist.Task) error {
	c.canceled = append(c.canceled, task)
	return c.err
}

func TestCancelTask(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	records := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	for _, rec := range []store.TaskRecord{
		{TaskID: "dl-1", SavePath: "/Anime/A"},
		{TaskID: "dl-2", SavePath: "/Anime/B", Status: store.TaskTransferring, TransferID: "tr-9"},
		{TaskID: "dl-3", SavePath: "/Anime/C", Status: store.TaskCompleted},
	} {
		if err := records.RecordTask(ctx, rec); err != nil {
			t.Fatalf("RecordTask: %v", err)
		}
	}

	canceler := &recordingCanceler{}
	if err := cancelTask(ctx, canceler, records, "dl-1"); err != nil {
		t.Fatalf("cancel dl-1: %v", err)
	}
	if err := cancelTask(ctx, canceler, records, "dl-2"); err != nil {
		t.Fatalf("cancel dl-2: %v", err)
	}
	if err := cancelTask(ctx, canceler, records, "dl-3"); err == nil {
		t.Fatal("expected finished task to be rejected")
	}
	if len(canceler.canceled) != 2 {
		t.Fatalf("unexpected cancel calls %+v", canceler.canceled)
	}
	if got := canceler.canceled[1]; got.ID != "tr-9" || got.Type != alist.TaskTypeTransfer {
		t.Fatalf("transferring task should cancel its transfer, got %+v", got)
	}
	rec, err := records.GetTask(ctx, "dl-1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if rec.Status != store.TaskCanceled {
		t.Fatalf("expected canceled, got %s", rec.Status)
	}

	canceler.err = errors.New("alist down")
	if err := records.RecordTask(ctx, store.TaskRecord{TaskID: "dl-4", SavePath: "/Anime/D"}); err != nil {
		t.Fatalf("RecordTask: %v", err)
	}
	if err := cancelTask(ctx, canceler, records, "dl-4"); err == nil {
		t.Fatal("expected remote failure to surface")
	}
	if rec, _ := records.GetTask(ctx, "dl-4"); rec.Status != store.TaskDownloading {
		t.Fatalf("record must stay active when the remote cancel fails, got %s", rec.Status)
	}
}

func TestExtractCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"extract", "[LoliHouse] 葬送的芙莉莲 - 05v2 [WebRip 1080p HEVC-10bit AAC][简繁内封字幕]"}, env.configPath)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	requireContains(t, out, "Episode:   5")
	requireContains(t, out, "Version:   2")

	out, _, err = runCLI(t, []string{"extract", "--name", "葬送的芙莉莲 第二季"}, env.configPath)
	if err != nil {
		t.Fatalf("extract --name: %v", err)
	}
	requireContains(t, out, "Season:  2")
}

func TestPollDryRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(`<?xml version="1.0"?><rss version="2.0"><channel><title>t</title>
<item><title>[SubsPlease] Dungeon Meshi - 01 (1080p)</title><link>magnet:?xt=urn:btih:abc</link></item>
</channel></rss>`))
	}))
	defer srv.Close()

	env := setupCLITestEnv(t, testsupport.WithFeeds(srv.URL+"/rss"))
	out, _, err := runCLI(t, []string{"poll", "--dry-run"}, env.configPath)
	if err != nil {
		t.Fatalf("poll --dry-run: %v", err)
	}
	requireContains(t, out, "1 new")
	requireContains(t, out, "Dungeon Meshi")

	seedStore(t, env.cfg, func(ctx context.Context, records *store.Store) {
		seen, err := records.Exists(ctx, "[SubsPlease] Dungeon Meshi - 01 (1080p)")
		if err != nil {
			t.Fatalf("Exists: %v", err)
		}
		if seen {
			t.Fatal("dry run must not mark titles seen")
		}
	})
}

func TestLogsCommandFiltersByComponent(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content := "2026-10-19T08:00:00Z INFO monitor: cycle finished resources=1\n" +
		"2026-10-19T08:00:01Z WARN download: submission failed\n"
	if err := os.WriteFile(logs.CurrentPath(env.cfg.Paths.LogDir), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "--component", "download"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "submission failed")
	if strings.Contains(out, "cycle finished") {
		t.Fatalf("component filter ignored:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"logs", "--level", "error"}, env.configPath)
	if err != nil {
		t.Fatalf("logs --level: %v", err)
	}
	requireContains(t, out, "No log entries available")
}

func TestExitCode(t *testing.T) {
	if got := exitCode(errors.New("alist unreachable")); got != 1 {
		t.Fatalf("runtime failure exit code = %d, want 1", got)
	}
	_, err := alist.New("relative/path", "", alist.DownloaderAria2)
	if err == nil {
		t.Fatal("expected configuration error")
	}
	if got := exitCode(err); got != 2 {
		t.Fatalf("configuration failure exit code = %d, want 2", got)
	}
}
