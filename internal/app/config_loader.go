package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/yourusername/mediahub-go/internal/domain"
)

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*domain.Config, error) {
	config := domain.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.mediahub")
		v.AddConfigPath("/etc/mediahub")
	}

	// Env vars only bind to keys viper knows, so register every default
	setDefaults(v, config)
	v.SetEnvPrefix("MEDIAHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config = expandPaths(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// settings flattens c into viper keys
func settings(c *domain.Config) map[string]interface{} {
	return map[string]interface{}{
		"server.host":            c.Server.Host,
		"server.port":            c.Server.Port,
		"server.metrics_enabled": c.Server.MetricsEnabled,

		"library.media_dirs":           c.Library.MediaDirs,
		"library.database_path":        c.Library.DatabasePath,
		"library.watch":                c.Library.Watch,
		"library.maintenance_interval": c.Library.MaintenanceInterval,

		"remote.server_url":          c.Remote.ServerURL,
		"remote.api_key":             c.Remote.APIKey,
		"remote.user_id":             c.Remote.UserID,
		"remote.page_size":           c.Remote.PageSize,
		"remote.max_pages":           c.Remote.MaxPages,
		"remote.max_page_retries":    c.Remote.MaxPageRetries,
		"remote.retry_base_delay":    c.Remote.RetryBaseDelay,
		"remote.request_timeout":     c.Remote.RequestTimeout,
		"remote.requests_per_second": c.Remote.RequestsPerSecond,

		"validation.cache_ttl":             c.Validation.CacheTTL,
		"validation.max_workers":           c.Validation.MaxWorkers,
		"validation.concurrency_threshold": c.Validation.ConcurrencyThreshold,
		"validation.delete_batch_size":     c.Validation.DeleteBatchSize,

		"catalog.cache_ttl": c.Catalog.CacheTTL,

		"download.download_dir":          c.Download.DownloadDir,
		"download.state_path":            c.Download.StatePath,
		"download.max_concurrent":        c.Download.MaxConcurrent,
		"download.chunk_size":            c.Download.ChunkSize,
		"download.eviction_delay":        c.Download.EvictionDelay,
		"download.open_retries":          c.Download.OpenRetries,
		"download.retry_delay":           c.Download.RetryDelay,
		"download.subscriber_buffer":     c.Download.SubscriberBuffer,
		"download.progress_min_delta":    c.Download.ProgressMinDelta,
		"download.progress_min_interval": c.Download.ProgressMinInterval,

		"poster.enabled":         c.Poster.Enabled,
		"poster.thumbnail_dir":   c.Poster.ThumbnailDir,
		"poster.tmdb_api_key":    c.Poster.TMDBAPIKey,
		"poster.language":        c.Poster.Language,
		"poster.request_timeout": c.Poster.RequestTimeout,

		"notification.enabled": c.Notification.Enabled,
		"notification.sound":   c.Notification.Sound,
		"notification.method":  c.Notification.Method,

		"logging.level":       c.Logging.Level,
		"logging.format":      c.Logging.Format,
		"logging.output_path": c.Logging.OutputPath,
		"logging.logs_dir":    c.Logging.LogsDir,
	}
}

func setDefaults(v *viper.Viper, c *domain.Config) {
	for key, value := range settings(c) {
		v.SetDefault(key, value)
	}
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	dirs := make([]string, 0, len(config.Library.MediaDirs))
	for _, d := range config.Library.MediaDirs {
		if d = strings.TrimSpace(d); d != "" {
			dirs = append(dirs, expandPath(d))
		}
	}
	config.Library.MediaDirs = dirs
	config.Library.DatabasePath = expandPath(config.Library.DatabasePath)
	config.Download.DownloadDir = expandPath(config.Download.DownloadDir)
	config.Download.StatePath = expandPath(config.Download.StatePath)
	config.Poster.ThumbnailDir = expandPath(config.Poster.ThumbnailDir)
	config.Logging.LogsDir = expandPath(config.Logging.LogsDir)

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	if strings.Contains(path, "$HOME") {
		if home, err := os.UserHomeDir(); err == nil {
			path = strings.ReplaceAll(path, "$HOME", home)
		}
	}

	path = os.ExpandEnv(path)

	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return path
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Library.DatabasePath == "" {
		return fmt.Errorf("library database path not configured")
	}

	if config.Remote.PageSize < 1 {
		return fmt.Errorf("remote page size must be at least 1")
	}

	if config.Remote.MaxPages < 1 {
		return fmt.Errorf("remote max pages must be at least 1")
	}

	if config.Remote.MaxPageRetries < 1 {
		return fmt.Errorf("remote page retries must be at least 1")
	}

	if config.Validation.CacheTTL < 0 {
		return fmt.Errorf("validation cache ttl cannot be negative")
	}

	if config.Validation.MaxWorkers < 1 {
		return fmt.Errorf("validation workers must be at least 1")
	}

	if config.Validation.DeleteBatchSize < 1 {
		return fmt.Errorf("validation delete batch size must be at least 1")
	}

	if config.Download.DownloadDir == "" {
		return fmt.Errorf("download directory not configured")
	}

	if config.Download.StatePath == "" {
		return fmt.Errorf("download state path not configured")
	}

	if config.Download.MaxConcurrent < 1 {
		return fmt.Errorf("max concurrent downloads must be at least 1")
	}

	if config.Download.ChunkSize < 1 {
		return fmt.Errorf("download chunk size must be at least 1")
	}

	if config.Download.SubscriberBuffer < 1 {
		config.Download.SubscriberBuffer = 1
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}

// SaveConfig writes config as YAML using the same keys LoadConfig reads
func SaveConfig(config *domain.Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")
	for key, value := range settings(config) {
		if d, ok := value.(time.Duration); ok {
			value = d.String()
		}
		v.Set(key, value)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
