package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Alist contains the remote file-management service connection.
type Alist struct {
	BaseURL      string `toml:"base_url"`
	Token        string `toml:"token"`
	Downloader   string `toml:"downloader"`
	DownloadPath string `toml:"download_path"`
	DeletePolicy string `toml:"delete_policy"`
	Timeout      int    `toml:"timeout"`
}

// Feeds lists the subscribed syndication sources.
type Feeds struct {
	URLs            []string `toml:"urls"`
	IntervalSeconds int      `toml:"interval_seconds"`
}

// Filter contains the title filter configuration.
type Filter struct {
	Presets  []string `toml:"presets"`
	Patterns []string `toml:"patterns"`
	Exclude  []string `toml:"exclude"`
}

// Extraction backends accepted by Extractor.Mode.
const (
	ExtractorModeRegex = "regex"
	ExtractorModeLLM   = "llm"
)

// Extractor selects the metadata extraction backend.
type Extractor struct {
	// Mode is "regex" or "llm".
	Mode string `toml:"mode"`
	// Enabled turns on structured extraction for feed entries. When false the
	// resource info carries only the feed-provided anime name.
	Enabled bool `toml:"enabled"`
	// UseLookup permits the llm backend to consult TMDB.
	UseLookup bool `toml:"use_lookup"`
}

// LLM contains shared LLM connection settings.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// TMDB contains configuration for The Movie Database API.
type TMDB struct {
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
	Language string `toml:"language"`
}

// Rename controls renaming of finished downloads.
type Rename struct {
	Enabled bool   `toml:"enabled"`
	Format  string `toml:"format"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Workflow contains configuration for daemon timing.
type Workflow struct {
	TaskPollInterval int `toml:"task_poll_interval"`
}

// API contains the optional read-only status endpoint.
type API struct {
	// Bind is the listen address, e.g. "127.0.0.1:7487". Empty disables it.
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for mikanarr.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Alist: remote service URL, token, downloader backend, and save root
//   - Feeds: subscribed RSS URLs and the poll interval
//   - Filter: regex presets and custom patterns applied to titles
//   - Extractor: metadata extraction backend selection
//   - LLM: chat completion settings for the llm backend
//   - TMDB: series lookup for the llm backend
//   - Rename: post-transfer renaming
//   - Notifications: ntfy push notification settings
//   - Workflow: task polling interval
//   - API: optional status endpoint
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Alist         Alist         `toml:"alist"`
	Feeds         Feeds         `toml:"feeds"`
	Filter        Filter        `toml:"filter"`
	Extractor     Extractor     `toml:"extractor"`
	LLM           LLM           `toml:"llm"`
	TMDB          TMDB          `toml:"tmdb"`
	Rename        Rename        `toml:"rename"`
	Notifications Notifications `toml:"notifications"`
	Workflow      Workflow      `toml:"workflow"`
	API           API           `toml:"api"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mikanarr.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the sqlite store.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "mikanarr.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "mikanarr.lock")
}

// FeedInterval returns the poll interval as a duration.
func (c *Config) FeedInterval() time.Duration {
	return time.Duration(c.Feeds.IntervalSeconds) * time.Second
}

// TaskPollInterval returns the remote task polling interval as a duration.
func (c *Config) TaskPollInterval() time.Duration {
	return time.Duration(c.Workflow.TaskPollInterval) * time.Second
}

// AlistTimeout returns the per-request timeout for the Alist client.
func (c *Config) AlistTimeout() time.Duration {
	return time.Duration(c.Alist.Timeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the LLM settings consumed by the extractor.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// GetLLM returns the shared LLM connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}
