package daemon_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"mikanarr/internal/daemon"
	"mikanarr/internal/extractor"
	"mikanarr/internal/feed"
	"mikanarr/internal/logging"
	"mikanarr/internal/monitor"
	"mikanarr/internal/testsupport"
)

type staticSource struct{}

func (staticSource) Name() string { return "static" }

func (staticSource) Entries(context.Context) ([]feed.Entry, error) {
	return []feed.Entry{{Title: "[ANi] Frieren - 05", TorrentURL: "magnet:?xt=urn:btih:abc"}}, nil
}

func (staticSource) Enrich(_ context.Context, entry feed.Entry) (feed.ResourceInfo, error) {
	return feed.ResourceInfo{Title: entry.Title, TorrentURL: entry.TorrentURL}, nil
}

func (staticSource) Lookup() bool { return false }

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	records := testsupport.MustOpenStore(t, cfg)
	pipeline, err := daemon.Build(cfg, records, logging.NewNop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	d, err := daemon.New(cfg, records, pipeline, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LockFilePath != cfg.LockPath() {
		t.Fatalf("unexpected lock path %q", status.LockFilePath)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	records := testsupport.MustOpenStore(t, cfg)

	newDaemon := func() *daemon.Daemon {
		pipeline, err := daemon.Build(cfg, records, logging.NewNop())
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		d, err := daemon.New(cfg, records, pipeline, logging.NewNop())
		if err != nil {
			t.Fatalf("daemon.New: %v", err)
		}
		return d
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := newDaemon()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer first.Stop()

	second := newDaemon()
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected lock contention error")
	}
}

func TestBuildRejectsBadFilter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	records := testsupport.MustOpenStore(t, cfg)
	cfg.Filter.Patterns = []string{"("}
	if _, err := daemon.Build(cfg, records, logging.NewNop()); err == nil {
		t.Fatal("expected invalid pattern to fail")
	}
}

func TestNewExtractorRegexMode(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ex, err := daemon.NewExtractor(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	res, err := ex.AnalyseResourceTitle(context.Background(), "[ANi] 葬送的芙莉莲 - 05 [1080P][Baha][WEB-DL][AAC AVC][CHT][MP4]", false)
	if err != nil {
		t.Fatalf("AnalyseResourceTitle: %v", err)
	}
	if res.Episode != 5 {
		t.Fatalf("expected episode 5, got %d", res.Episode)
	}
}

func TestDaemonReportsMonitorConfigurationError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	records := testsupport.MustOpenStore(t, cfg)
	pipeline, err := daemon.Build(cfg, records, logging.NewNop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	pipeline.Monitor, err = monitor.New([]feed.Source{staticSource{}}, nil, records, &extractor.Extractor{},
		pipeline.Manager, logging.NewNop(), monitor.WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("monitor.New: %v", err)
	}
	d, err := daemon.New(cfg, records, pipeline, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	select {
	case err := <-d.Fatal():
		if !errors.Is(err, extractor.ErrNotInitialized) {
			t.Fatalf("unexpected fatal error %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected the monitor to stop with a configuration error")
	}
}
