package config

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	keyAPIURL           = "NASA_EPIC_API_URL"
	keyStorageDirectory = "NASA_EPIC_IMAGE_STORAGE_DIRECTORY"
	keyRequestTimeout   = "NASA_EPIC_REQUEST_TIMEOUT"
	keyRequestInterval  = "NASA_EPIC_REQUEST_INTERVAL"
	keyUserAgent        = "NASA_EPIC_USER_AGENT"
	keyDatabasePath     = "SQLITE_DB_PATH"
	keyServerPort       = "SERVER_PORT"
	keyLogLevel         = "LOG_LEVEL"
)

type Config struct {
	Catalog  CatalogConfig
	Archive  ArchiveConfig
	Database DatabaseConfig
	Server   ServerConfig
	LogLevel zerolog.Level
}

type CatalogConfig struct {
	BaseURL         string
	UserAgent       string
	RequestTimeout  time.Duration
	RequestInterval time.Duration
}

type ArchiveConfig struct {
	// StorageDirectory is the root every target directory is resolved against
	StorageDirectory string
}

type DatabaseConfig struct {
	Path string
}

type ServerConfig struct {
	Port int
}

// Load reads the configuration from the environment, falling back to defaults
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetDefault(keyAPIURL, "https://epic.gsfc.nasa.gov/")
	v.SetDefault(keyStorageDirectory, "./var/epic")
	v.SetDefault(keyRequestTimeout, "30s")
	v.SetDefault(keyRequestInterval, "250ms")
	v.SetDefault(keyUserAgent, "epicarchive/1.0")
	v.SetDefault(keyDatabasePath, "./epic.db")
	v.SetDefault(keyServerPort, 8080)
	v.SetDefault(keyLogLevel, "info")

	v.AutomaticEnv()

	level, err := zerolog.ParseLevel(v.GetString(keyLogLevel))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", keyLogLevel, err)
	}

	cfg := &Config{
		Catalog: CatalogConfig{
			BaseURL:         v.GetString(keyAPIURL),
			UserAgent:       v.GetString(keyUserAgent),
			RequestTimeout:  v.GetDuration(keyRequestTimeout),
			RequestInterval: v.GetDuration(keyRequestInterval),
		},
		Archive: ArchiveConfig{
			StorageDirectory: v.GetString(keyStorageDirectory),
		},
		Database: DatabaseConfig{
			Path: v.GetString(keyDatabasePath),
		},
		Server: ServerConfig{
			Port: v.GetInt(keyServerPort),
		},
		LogLevel: level,
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Catalog.BaseURL == "" {
		return fmt.Errorf("%s must not be empty", keyAPIURL)
	}
	if cfg.Archive.StorageDirectory == "" {
		return fmt.Errorf("%s must not be empty", keyStorageDirectory)
	}
	if cfg.Catalog.RequestTimeout < 0 {
		return fmt.Errorf("%s must not be negative", keyRequestTimeout)
	}
	if cfg.Catalog.RequestInterval < 0 {
		return fmt.Errorf("%s must not be negative", keyRequestInterval)
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("%s must be a valid port, got %d", keyServerPort, cfg.Server.Port)
	}
	return nil
}
