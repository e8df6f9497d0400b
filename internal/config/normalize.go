package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAlist()
	c.normalizeFeeds()
	c.normalizeExtractor()
	c.normalizeLLM()
	c.normalizeTMDB()
	c.normalizeAPI()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAlist() {
	c.Alist.BaseURL = strings.TrimRight(strings.TrimSpace(c.Alist.BaseURL), "/")
	c.Alist.Token = strings.TrimSpace(c.Alist.Token)
	if c.Alist.Token == "" {
		if value, ok := os.LookupEnv("ALIST_TOKEN"); ok {
			c.Alist.Token = strings.TrimSpace(value)
		}
	}
	c.Alist.Downloader = strings.TrimSpace(c.Alist.Downloader)
	for _, name := range Downloaders {
		if strings.EqualFold(name, c.Alist.Downloader) {
			c.Alist.Downloader = name
			break
		}
	}
	c.Alist.DeletePolicy = strings.ToLower(strings.TrimSpace(c.Alist.DeletePolicy))
	path := strings.TrimSpace(c.Alist.DownloadPath)
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	c.Alist.DownloadPath = path
}

func (c *Config) normalizeFeeds() {
	urls := make([]string, 0, len(c.Feeds.URLs))
	seen := make(map[string]struct{}, len(c.Feeds.URLs))
	for _, raw := range c.Feeds.URLs {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		urls = append(urls, trimmed)
	}
	c.Feeds.URLs = urls
}

func (c *Config) normalizeExtractor() {
	c.Extractor.Mode = strings.ToLower(strings.TrimSpace(c.Extractor.Mode))
	if c.Extractor.Mode == "" {
		c.Extractor.Mode = defaultExtractorMode
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeTMDB() {
	c.TMDB.APIKey = strings.TrimSpace(c.TMDB.APIKey)
	if c.TMDB.APIKey == "" {
		if value, ok := os.LookupEnv("TMDB_API_KEY"); ok {
			c.TMDB.APIKey = strings.TrimSpace(value)
		}
	}
	c.TMDB.BaseURL = strings.TrimRight(strings.TrimSpace(c.TMDB.BaseURL), "/")
	if c.TMDB.BaseURL == "" {
		c.TMDB.BaseURL = defaultTMDBBaseURL
	}
	c.TMDB.Language = strings.TrimSpace(c.TMDB.Language)
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console":
		c.Logging.Format = "console"
	default:
		c.Logging.Format = format
	}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("MIKANARR_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
}
