package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Library      LibraryConfig      `mapstructure:"library"`
	Remote       RemoteConfig       `mapstructure:"remote"`
	Validation   ValidationConfig   `mapstructure:"validation"`
	Catalog      CatalogConfig      `mapstructure:"catalog"`
	Download     DownloadConfig     `mapstructure:"download"`
	Poster       PosterConfig       `mapstructure:"poster"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
}

// LibraryConfig contains local library configuration
type LibraryConfig struct {
	MediaDirs           []string      `mapstructure:"media_dirs"`
	DatabasePath        string        `mapstructure:"database_path"`
	Watch               bool          `mapstructure:"watch"`
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval"`
}

// RemoteConfig contains remote media server configuration
type RemoteConfig struct {
	ServerURL         string        `mapstructure:"server_url"`
	APIKey            string        `mapstructure:"api_key"`
	UserID            string        `mapstructure:"user_id"`
	PageSize          int           `mapstructure:"page_size"`
	MaxPages          int           `mapstructure:"max_pages"`
	MaxPageRetries    int           `mapstructure:"max_page_retries"`
	RetryBaseDelay    time.Duration `mapstructure:"retry_base_delay"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// Configured reports whether enough is set to talk to the server
func (r RemoteConfig) Configured() bool {
	return r.ServerURL != "" && r.APIKey != "" && r.UserID != ""
}

// ValidationConfig contains local validation configuration
type ValidationConfig struct {
	CacheTTL             time.Duration `mapstructure:"cache_ttl"`
	MaxWorkers           int           `mapstructure:"max_workers"`
	ConcurrencyThreshold int           `mapstructure:"concurrency_threshold"`
	DeleteBatchSize      int           `mapstructure:"delete_batch_size"`
}

// CatalogConfig contains unified catalog configuration
type CatalogConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// DownloadConfig contains download-related configuration
type DownloadConfig struct {
	DownloadDir         string        `mapstructure:"download_dir"`
	StatePath           string        `mapstructure:"state_path"`
	MaxConcurrent       int           `mapstructure:"max_concurrent"`
	ChunkSize           int           `mapstructure:"chunk_size"`
	EvictionDelay       time.Duration `mapstructure:"eviction_delay"`
	OpenRetries         int           `mapstructure:"open_retries"`
	RetryDelay          time.Duration `mapstructure:"retry_delay"`
	SubscriberBuffer    int           `mapstructure:"subscriber_buffer"`
	ProgressMinDelta    float64       `mapstructure:"progress_min_delta"`
	ProgressMinInterval time.Duration `mapstructure:"progress_min_interval"`
}

// PosterConfig contains poster and thumbnail configuration
type PosterConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	ThumbnailDir   string        `mapstructure:"thumbnail_dir"`
	TMDBAPIKey     string        `mapstructure:"tmdb_api_key"`
	Language       string        `mapstructure:"language"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Sound   bool   `mapstructure:"sound"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
	LogsDir    string `mapstructure:"logs_dir"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "localhost",
			Port:           8080,
			MetricsEnabled: true,
		},
		Library: LibraryConfig{
			MediaDirs: []string{
				"$HOME/Media/movies",
				"$HOME/Media/tv-shows",
				"$HOME/Media/downloads",
			},
			DatabasePath:        "$HOME/.mediahub/local_media.db",
			Watch:               true,
			MaintenanceInterval: time.Minute,
		},
		Remote: RemoteConfig{
			PageSize:       200,
			MaxPages:       1000,
			MaxPageRetries: 3,
			RetryBaseDelay: time.Second,
			RequestTimeout: 30 * time.Second,
		},
		Validation: ValidationConfig{
			CacheTTL:             5 * time.Minute,
			MaxWorkers:           10,
			ConcurrencyThreshold: 5,
			DeleteBatchSize:      500,
		},
		Catalog: CatalogConfig{
			CacheTTL: 5 * time.Minute,
		},
		Download: DownloadConfig{
			DownloadDir:         "$HOME/Media/downloads",
			StatePath:           "$HOME/.mediahub/downloads.db",
			MaxConcurrent:       3,
			ChunkSize:           8192,
			EvictionDelay:       3 * time.Second,
			OpenRetries:         3,
			RetryDelay:          time.Second,
			SubscriberBuffer:    16,
			ProgressMinDelta:    0.001,
			ProgressMinInterval: 200 * time.Millisecond,
		},
		Poster: PosterConfig{
			Enabled:        true,
			ThumbnailDir:   "$HOME/.mediahub/thumbnails",
			Language:       "en-US",
			RequestTimeout: 30 * time.Second,
		},
		Notification: NotificationConfig{
			Enabled: false,
			Sound:   false,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
			LogsDir:    "$HOME/.mediahub/logs",
		},
	}
}
