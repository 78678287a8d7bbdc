// Package config loads engine configuration from config.yaml with
// environment-variable overrides. Secrets (API and database credentials)
// come only from the environment. Defaults are resolved once here; no
// component reads raw config maps at call sites.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for a correlation run.
type Config struct {
	Env string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`

	API        APIConfig        `yaml:"api"`
	Database   DatabaseConfig   `yaml:"database"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Extraction ExtractionConfig `yaml:"extraction"`
}

// APIConfig describes the REST channel to the instance.
type APIConfig struct {
	BaseURL    string        `yaml:"base_url" env:"SN_API_BASE_URL"`
	Username   string        `yaml:"username" env:"SN_API_USERNAME"`
	Password   string        `yaml:"-" env:"SN_API_PASSWORD"` // Secret - not in YAML
	Version    string        `yaml:"version" env:"SN_API_VERSION" env-default:"v2"`
	Timeout    time.Duration `yaml:"timeout" env:"SN_API_TIMEOUT" env-default:"30s"`
	MaxRetries int           `yaml:"max_retries" env:"SN_API_MAX_RETRIES" env-default:"3"`
	TLSVerify  bool          `yaml:"tls_verify" env:"SN_API_TLS_VERIFY" env-default:"true"`
	// AllowInsecure permits plain http base URLs. Off unless explicitly set.
	AllowInsecure bool `yaml:"allow_insecure" env:"SN_API_ALLOW_INSECURE" env-default:"false"`
}

// DatabaseConfig describes the direct read-only channel to the instance's
// backing database.
type DatabaseConfig struct {
	Dialect          string        `yaml:"dialect" env:"SN_DB_DIALECT" env-default:"postgres"`
	Host             string        `yaml:"host" env:"SN_DB_HOST" env-default:"localhost"`
	Port             int           `yaml:"port" env:"SN_DB_PORT" env-default:"5432"`
	Database         string        `yaml:"database" env:"SN_DB_NAME"`
	Username         string        `yaml:"username" env:"SN_DB_USERNAME"`
	Password         string        `yaml:"-" env:"SN_DB_PASSWORD"` // Secret - not in YAML
	PoolSize         int           `yaml:"pool_size" env:"SN_DB_POOL_SIZE" env-default:"10"`
	MaxOverflow      int           `yaml:"max_overflow" env:"SN_DB_MAX_OVERFLOW" env-default:"20"`
	StatementTimeout time.Duration `yaml:"statement_timeout" env:"SN_DB_STATEMENT_TIMEOUT" env-default:"30s"`
	SSLMode          string        `yaml:"ssl_mode" env:"SN_DB_SSLMODE" env-default:"require"`
}

// RateLimitConfig bounds outbound request rate, independently per source.
type RateLimitConfig struct {
	APIRequests int           `yaml:"api_requests" env:"RATE_LIMIT_API_REQUESTS" env-default:"100"`
	APIWindow   time.Duration `yaml:"api_window" env:"RATE_LIMIT_API_WINDOW" env-default:"60s"`
	DBRequests  int           `yaml:"db_requests" env:"RATE_LIMIT_DB_REQUESTS" env-default:"100"`
	DBWindow    time.Duration `yaml:"db_window" env:"RATE_LIMIT_DB_WINDOW" env-default:"60s"`
}

// ExtractionConfig tunes the concurrent extraction run.
type ExtractionConfig struct {
	// Workers caps concurrently running entity kinds.
	Workers int `yaml:"workers" env:"EXTRACTION_WORKERS" env-default:"5"`
	// PageSize is the record count requested per API page.
	PageSize int `yaml:"page_size" env:"EXTRACTION_PAGE_SIZE" env-default:"100"`
	// PageCap bounds the number of API pages fetched per kind.
	PageCap int `yaml:"page_cap" env:"EXTRACTION_PAGE_CAP" env-default:"50"`
	// RunTimeout bounds the whole run; zero means no run-level deadline.
	RunTimeout time.Duration `yaml:"run_timeout" env:"EXTRACTION_RUN_TIMEOUT" env-default:"0"`
}

// Load reads configuration from path (default "config.yaml") with
// environment overrides. A missing file is fine as long as the environment
// provides the required values.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}

	cfg := &Config{}
	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	return cfg, nil
}
