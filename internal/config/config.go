package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Retry bounds for the scrape endpoint. Callers may ask for 1 to 5
// attempts; anything else is clamped to DefaultRetries.
const (
	MinRetries     = 1
	MaxRetries     = 5
	DefaultRetries = 3
)

// Worst-case per-attempt delays used to validate the retry budget
// against the platform request ceiling. These mirror the retry policy
// bands: up to 3s courtesy delay plus up to 20s backoff after a 429.
const (
	worstCourtesyDelay = 3 * time.Second
	worstBackoffDelay  = 20 * time.Second
)

// Config holds all configuration for the application.
// Values are read by viper from a config file or environment variables.
type Config struct {
	ListenAddr   string `mapstructure:"LISTEN_ADDR"`
	BadgerDBPath string `mapstructure:"BADGERDB_PATH"`
	LogLevel     string `mapstructure:"LOG_LEVEL"`

	// ScraperVersion is stamped into every ScrapeRecord.
	ScraperVersion string `mapstructure:"SCRAPER_VERSION"`

	// FetchTimeoutSeconds bounds a single HTTP attempt.
	FetchTimeoutSeconds int `mapstructure:"FETCH_TIMEOUT_SECONDS"`

	// MaxBodyBytes caps the decoded response body size.
	MaxBodyBytes int64 `mapstructure:"MAX_BODY_BYTES"`

	// PlatformTimeoutSeconds is the request ceiling imposed by whatever
	// fronts the service (gateway, serverless runtime). The worst-case
	// retry schedule must fit under it; LoadConfig enforces this.
	PlatformTimeoutSeconds int `mapstructure:"PLATFORM_TIMEOUT_SECONDS"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("LISTEN_ADDR", ":8080")
	viper.SetDefault("BADGERDB_PATH", "./badger_data")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("SCRAPER_VERSION", "1.0.0")
	viper.SetDefault("FETCH_TIMEOUT_SECONDS", 30)
	viper.SetDefault("MAX_BODY_BYTES", 5*1024*1024)
	viper.SetDefault("PLATFORM_TIMEOUT_SECONDS", 900)

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	err = viper.ReadInConfig()
	if err != nil {
		// A missing config file is fine; environment variables and
		// defaults still apply. Any other read error is fatal.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Validate checks field ranges and proves the worst-case retry schedule
// fits under the platform request ceiling. The retry loop pays a
// courtesy delay, one bounded fetch, and a backoff per attempt, strictly
// sequentially, for up to MaxRetries attempts.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("LISTEN_ADDR cannot be empty")
	}
	if c.BadgerDBPath == "" {
		return fmt.Errorf("BADGERDB_PATH cannot be empty")
	}
	if c.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT_SECONDS must be positive, got %d", c.FetchTimeoutSeconds)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive, got %d", c.MaxBodyBytes)
	}
	if c.PlatformTimeoutSeconds <= 0 {
		return fmt.Errorf("PLATFORM_TIMEOUT_SECONDS must be positive, got %d", c.PlatformTimeoutSeconds)
	}

	worst := c.WorstCaseRetryBudget()
	ceiling := time.Duration(c.PlatformTimeoutSeconds) * time.Second
	if worst > ceiling {
		return fmt.Errorf(
			"worst-case retry schedule %s exceeds platform timeout %s; lower FETCH_TIMEOUT_SECONDS or raise PLATFORM_TIMEOUT_SECONDS",
			worst, ceiling)
	}
	return nil
}

// FetchTimeout returns the per-attempt HTTP timeout as a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// WorstCaseRetryBudget computes the longest possible scrape duration:
// MaxRetries attempts, each paying the maximum courtesy delay, the full
// fetch timeout, and the maximum backoff.
func (c Config) WorstCaseRetryBudget() time.Duration {
	perAttempt := worstCourtesyDelay + c.FetchTimeout() + worstBackoffDelay
	return time.Duration(MaxRetries) * perAttempt
}
