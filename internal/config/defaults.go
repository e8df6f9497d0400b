package config

const (
	defaultConfigPath          = "~/.config/mikanarr/config.toml"
	defaultDataDir             = "~/.local/share/mikanarr"
	defaultLogDir              = "~/.local/share/mikanarr/logs"
	defaultLogRetentionDays    = 30
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultAlistDownloader     = "qBittorrent"
	defaultAlistDownloadPath   = "/Onedrive/Anime"
	defaultAlistDeletePolicy   = "delete_always"
	defaultAlistTimeout        = 30
	defaultFeedInterval        = 300
	defaultTaskPollInterval    = 10
	defaultExtractorMode       = ExtractorModeRegex
	defaultLLMBaseURL          = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel            = "google/gemini-3-flash-preview"
	defaultLLMReferer          = "https://github.com/mikanarr/mikanarr"
	defaultLLMTitle            = "mikanarr extractor"
	defaultLLMTimeoutSeconds   = 60
	defaultTMDBBaseURL         = "https://api.themoviedb.org/3"
	defaultTMDBLanguage        = "zh-CN"
	defaultRenameFormat        = "{name} S{season:02d}E{episode:02d}"
	defaultNotifyRequestTimout = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Alist: Alist{
			Downloader:   defaultAlistDownloader,
			DownloadPath: defaultAlistDownloadPath,
			DeletePolicy: defaultAlistDeletePolicy,
			Timeout:      defaultAlistTimeout,
		},
		Feeds: Feeds{
			IntervalSeconds: defaultFeedInterval,
		},
		Extractor: Extractor{
			Mode:    defaultExtractorMode,
			Enabled: true,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		TMDB: TMDB{
			BaseURL:  defaultTMDBBaseURL,
			Language: defaultTMDBLanguage,
		},
		Rename: Rename{
			Format: defaultRenameFormat,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimout,
		},
		Workflow: Workflow{
			TaskPollInterval: defaultTaskPollInterval,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
