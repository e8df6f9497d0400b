package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"mikanarr/internal/filter"
	"mikanarr/internal/renamer"
)

// Downloaders lists the offline download tools Alist accepts in the "tool" field.
var Downloaders = []string{"aria2", "qBittorrent", "Transmission", "SimpleHttp", "115 Cloud", "PikPak", "Thunder"}

var deletePolicies = []string{"delete_on_upload_succeed", "delete_on_upload_failed", "delete_never", "delete_always"}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAlist(); err != nil {
		return err
	}
	if err := c.validateFeeds(); err != nil {
		return err
	}
	if _, err := filter.New(c.Filter.Presets, c.Filter.Patterns, c.Filter.Exclude); err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	if err := c.validateExtractor(); err != nil {
		return err
	}
	if err := c.validateRename(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if c.API.Bind != "" {
		if _, _, err := net.SplitHostPort(c.API.Bind); err != nil {
			return fmt.Errorf("api.bind: %w", err)
		}
	}
	return c.validateLogging()
}

func (c *Config) validateAlist() error {
	if c.Alist.BaseURL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("alist.base_url is required. Edit %s (create with 'mikanarr config init')", defaultPath)
	}
	parsed, err := url.Parse(c.Alist.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("alist.base_url %q is not an absolute URL", c.Alist.BaseURL)
	}
	if c.Alist.Token == "" {
		return errors.New("alist.token is required (or set ALIST_TOKEN)")
	}
	if !containsFold(Downloaders, c.Alist.Downloader) {
		return fmt.Errorf("alist.downloader must be one of %s", strings.Join(Downloaders, ", "))
	}
	if !containsFold(deletePolicies, c.Alist.DeletePolicy) {
		return fmt.Errorf("alist.delete_policy must be one of %s", strings.Join(deletePolicies, ", "))
	}
	if c.Alist.DownloadPath == "" {
		return errors.New("alist.download_path must be set")
	}
	return nil
}

func (c *Config) validateFeeds() error {
	for _, raw := range c.Feeds.URLs {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("feeds.urls entry %q is not an absolute URL", raw)
		}
	}
	return nil
}

func (c *Config) validateExtractor() error {
	switch c.Extractor.Mode {
	case ExtractorModeRegex:
		return nil
	case ExtractorModeLLM:
		if c.LLM.APIKey == "" {
			return errors.New("llm.api_key must be set when extractor.mode is llm (or set OPENROUTER_API_KEY)")
		}
		if c.Extractor.UseLookup && c.TMDB.APIKey == "" {
			return errors.New("tmdb.api_key must be set when extractor.use_lookup is true (or set TMDB_API_KEY)")
		}
		return nil
	default:
		return fmt.Errorf("extractor.mode: unsupported value %q (want regex or llm)", c.Extractor.Mode)
	}
}

func (c *Config) validateRename() error {
	if c.Rename.Enabled {
		if err := renamer.ValidateFormat(c.Rename.Format); err != nil {
			return fmt.Errorf("rename.format: %w", err)
		}
	}
	if c.Rename.Enabled && !c.Extractor.Enabled {
		return errors.New("rename.enabled requires extractor.enabled")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"feeds.interval_seconds":        c.Feeds.IntervalSeconds,
		"workflow.task_poll_interval":   c.Workflow.TaskPollInterval,
		"alist.timeout":                 c.Alist.Timeout,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}

func containsFold(values []string, candidate string) bool {
	for _, v := range values {
		if strings.EqualFold(v, candidate) {
			return true
		}
	}
	return false
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
