package testsupport

import (
	"path/filepath"
	"testing"

	"mikanarr/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a valid config seeded with unique temp directories per
// test. The Alist URL points at a closed local port until WithAlist is used.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Alist.BaseURL = "http://127.0.0.1:1"
	cfgVal.Alist.Token = "test-token"
	cfgVal.Alist.DownloadPath = "/Anime"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithAlist points the config at an Alist server.
func WithAlist(baseURL, downloader string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Alist.BaseURL = baseURL
		if downloader != "" {
			b.cfg.Alist.Downloader = downloader
		}
	}
}

// WithFeeds sets the subscribed feed URLs.
func WithFeeds(urls ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Feeds.URLs = urls
	}
}

// WithRename enables renaming with format.
func WithRename(format string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Rename.Enabled = true
		b.cfg.Rename.Format = format
	}
}

// WithNtfyTopic enables notifications to topic.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
