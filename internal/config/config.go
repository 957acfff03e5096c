package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// HTTP API
	ListenAddr     string `envconfig:"LISTEN_ADDR" default:":8787"`
	AuthMode       string `envconfig:"AUTH_MODE" default:"none"` // "api-key" or "none"
	APIKey         string `envconfig:"API_KEY"`
	RateLimitRPS   int    `envconfig:"RATE_LIMIT_RPS" default:"50"`
	RateLimitBurst int    `envconfig:"RATE_LIMIT_BURST" default:"100"`
	CORSOrigins    string `envconfig:"CORS_ORIGINS"`

	// Scanner
	MaxScanFiles     int `envconfig:"MAX_SCAN_FILES" default:"10000"`
	ScanWorkers      int `envconfig:"SCAN_WORKERS" default:"4"`
	ReadmeExcerptLen int `envconfig:"README_EXCERPT_LEN" default:"1000"`
	ScanCacheSize    int `envconfig:"SCAN_CACHE_SIZE" default:"64"`

	// Inference (Ollama)
	OllamaBaseURL    string        `envconfig:"OLLAMA_BASE_URL" default:"http://localhost:11434"`
	InferenceTimeout time.Duration `envconfig:"INFERENCE_TIMEOUT" default:"30s"`
	InferenceRetries int           `envconfig:"INFERENCE_RETRIES" default:"2"`
	DefaultModel     string        `envconfig:"DEFAULT_MODEL" default:"llama3"`

	// Classification
	ConfidenceThreshold float64 `envconfig:"CONFIDENCE_THRESHOLD" default:"0.7"`
	TaxonomyFile        string  `envconfig:"TAXONOMY_FILE"` // optional YAML override

	// Organization
	OrganizeRoot string `envconfig:"ORGANIZE_ROOT"` // default target root for previews

	// Audit store
	DBPath string `envconfig:"DB_PATH" default:"codeshelf.db"`
}

// Validate rejects settings that would misbehave at runtime rather than at load.
func (c *Config) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be in [0,1], got %v", c.ConfidenceThreshold)
	}
	if c.MaxScanFiles < 1 {
		return fmt.Errorf("MAX_SCAN_FILES must be positive, got %d", c.MaxScanFiles)
	}
	if c.ScanWorkers < 1 {
		return fmt.Errorf("SCAN_WORKERS must be positive, got %d", c.ScanWorkers)
	}
	if c.AuthMode == "api-key" && c.APIKey == "" {
		return fmt.Errorf("AUTH_MODE=api-key requires API_KEY")
	}
	return nil
}

// AuthEnabled returns true when API-key auth is configured.
func (c *Config) AuthEnabled() bool {
	return c.AuthMode == "api-key" && c.APIKey != ""
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("CODESHELF", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
