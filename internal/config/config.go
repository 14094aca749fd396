// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Storage backends.
const (
	BackendSQLite   = "sqlite"
	BackendBigQuery = "bigquery"
)

// Config holds all application configuration.
type Config struct {
	LogLevel                  string `env:"LOG_LEVEL" envDefault:"info"`
	DefaultTimezone           string `env:"DEFAULT_TIMEZONE" envDefault:"UTC"`
	DuplicateThresholdSeconds int    `env:"DUPLICATE_THRESHOLD_SECONDS" envDefault:"10"`

	StoreBackend    string `env:"STORE_BACKEND" envDefault:"sqlite"`
	DatabasePath    string `env:"DATABASE_PATH" envDefault:"data/transactions.db"`
	BigQueryProject string `env:"BIGQUERY_PROJECT"`
	BigQueryDataset string `env:"BIGQUERY_DATASET" envDefault:"sales"`
	GCSBucket       string `env:"GCS_BUCKET"`

	// IngestDir bounds the local files POST /api/ingest may read. Empty
	// allows gs:// sources only.
	IngestDir string `env:"INGEST_DIR"`

	HTTPAddr     string `env:"HTTP_ADDR" envDefault:":8080"`
	JobQueueSize int    `env:"JOB_QUEUE_SIZE" envDefault:"16"`
}

// Load reads configuration from environment variables, after loading a .env
// file from the working directory when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse reads configuration from environment variables only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values the environment parser cannot.
func (c *Config) Validate() error {
	if c.DuplicateThresholdSeconds < 0 {
		return fmt.Errorf("config: DUPLICATE_THRESHOLD_SECONDS must not be negative, got %d", c.DuplicateThresholdSeconds)
	}
	if c.JobQueueSize < 1 {
		return fmt.Errorf("config: JOB_QUEUE_SIZE must be positive, got %d", c.JobQueueSize)
	}

	switch c.StoreBackend {
	case BackendSQLite:
		if c.DatabasePath == "" {
			return fmt.Errorf("config: DATABASE_PATH is required for the sqlite backend")
		}
	case BackendBigQuery:
		if c.BigQueryProject == "" {
			return fmt.Errorf("config: BIGQUERY_PROJECT is required for the bigquery backend")
		}
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("config: DEFAULT_TIMEZONE %q: %w", c.DefaultTimezone, err)
	}
	return nil
}

// DuplicateThreshold returns the near-duplicate window as a duration.
func (c *Config) DuplicateThreshold() time.Duration {
	return time.Duration(c.DuplicateThresholdSeconds) * time.Second
}
