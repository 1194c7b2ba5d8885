// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultAPIBaseURL is the remote collection used when API_BASE_URL is unset.
const DefaultAPIBaseURL = "https://dev.codeleap.co.uk/careers/"

// Storage drivers accepted by STORAGE_DRIVER and DEVSERVER_DB_DRIVER.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Env      string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	APIBaseURL         string `mapstructure:"API_BASE_URL"`
	APIPageLimit       int    `mapstructure:"API_PAGE_LIMIT"`
	HTTPTimeoutSeconds int    `mapstructure:"HTTP_TIMEOUT_SECONDS"`

	StorageDriver     string `mapstructure:"STORAGE_DRIVER"`
	StoragePath       string `mapstructure:"STORAGE_PATH"`
	StorageDSN        string `mapstructure:"STORAGE_DSN"`
	StorageQuotaBytes int    `mapstructure:"STORAGE_QUOTA_BYTES"`
	RedisURL          string `mapstructure:"REDIS_URL"`
	RedisNamespace    string `mapstructure:"REDIS_NAMESPACE"`

	ImageCompactThresholdKB int `mapstructure:"IMAGE_COMPACT_THRESHOLD_KB"`
	ImageMaxDimension       int `mapstructure:"IMAGE_MAX_DIMENSION"`
	ImageWebPQuality        int `mapstructure:"IMAGE_WEBP_QUALITY"`

	TracingEnabled  bool   `mapstructure:"TRACING_ENABLED"`
	TracingExporter string `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint    string `mapstructure:"OTLP_ENDPOINT"`

	DevServerPort     string `mapstructure:"DEVSERVER_PORT"`
	DevServerDBDriver string `mapstructure:"DEVSERVER_DB_DRIVER"`
	DevServerDBPath   string `mapstructure:"DEVSERVER_DB_PATH"`
	DevServerDBDSN    string `mapstructure:"DEVSERVER_DB_DSN"`
}

// LoadConfig loads application configuration from .env, config files and environment variables.
func LoadConfig() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// Initial read to get APP_ENV if set in base config
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env != "development" && env != "" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read profile config 'config.%s.yml': %w", env, err)
			}
		} else {
			log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
		}
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("API_BASE_URL", DefaultAPIBaseURL)
	viper.SetDefault("API_PAGE_LIMIT", 1000)
	viper.SetDefault("HTTP_TIMEOUT_SECONDS", 15)
	viper.SetDefault("STORAGE_DRIVER", DriverSQLite)
	viper.SetDefault("STORAGE_PATH", "postsync.db")
	viper.SetDefault("STORAGE_DSN", "")
	// Roughly the per-origin budget of browser local storage.
	viper.SetDefault("STORAGE_QUOTA_BYTES", 5*1024*1024)
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("REDIS_NAMESPACE", "postsync:")
	viper.SetDefault("IMAGE_COMPACT_THRESHOLD_KB", 0)
	viper.SetDefault("IMAGE_MAX_DIMENSION", 1080)
	viper.SetDefault("IMAGE_WEBP_QUALITY", 70)
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("DEVSERVER_PORT", "8375")
	viper.SetDefault("DEVSERVER_DB_DRIVER", DriverSQLite)
	viper.SetDefault("DEVSERVER_DB_PATH", "devserver.db")
	viper.SetDefault("DEVSERVER_DB_DSN", "")
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	c.DevServerDBDriver = strings.ToLower(strings.TrimSpace(c.DevServerDBDriver))
	c.APIBaseURL = strings.TrimSpace(c.APIBaseURL)
}

// Validate ensures that required configuration values are present and consistent.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return errors.New("API_BASE_URL is required")
	}
	if !strings.HasPrefix(c.APIBaseURL, "http://") && !strings.HasPrefix(c.APIBaseURL, "https://") {
		return fmt.Errorf("API_BASE_URL must be an http(s) URL, got %q", c.APIBaseURL)
	}
	if c.APIPageLimit <= 0 {
		return errors.New("API_PAGE_LIMIT must be positive")
	}
	if c.StorageQuotaBytes < 0 {
		return errors.New("STORAGE_QUOTA_BYTES cannot be negative")
	}
	if c.ImageCompactThresholdKB < 0 {
		return errors.New("IMAGE_COMPACT_THRESHOLD_KB cannot be negative")
	}
	if c.ImageWebPQuality < 0 || c.ImageWebPQuality > 100 {
		return errors.New("IMAGE_WEBP_QUALITY must be between 0 and 100")
	}

	switch c.StorageDriver {
	case DriverMemory, DriverRedis:
	case DriverSQLite:
		if c.StoragePath == "" {
			return errors.New("STORAGE_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.StorageDSN == "" {
			return errors.New("STORAGE_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	switch c.DevServerDBDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown DEVSERVER_DB_DRIVER %q", c.DevServerDBDriver)
	}

	if c.IsProduction() && c.StorageDriver == DriverMemory {
		log.Println("WARNING: STORAGE_DRIVER is 'memory' in production. Likes, comments and images will not survive a restart.")
	}

	return nil
}

// IsProduction reports whether the production profile is active.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// HTTPTimeout returns the remote request timeout.
func (c *Config) HTTPTimeout() time.Duration {
	if c.HTTPTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// ImageCompactThresholdBytes returns the data URI size above which images are compacted.
func (c *Config) ImageCompactThresholdBytes() int {
	return c.ImageCompactThresholdKB * 1024
}
