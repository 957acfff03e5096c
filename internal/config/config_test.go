package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, ":8787", cfg.ListenAddr)
	assert.Equal(t, 10000, cfg.MaxScanFiles)
	assert.Equal(t, 4, cfg.ScanWorkers)
	assert.Equal(t, 1000, cfg.ReadmeExcerptLen)
	assert.Equal(t, "http://localhost:11434", cfg.OllamaBaseURL)
	assert.InDelta(t, 0.7, cfg.ConfidenceThreshold, 1e-9)
	assert.False(t, cfg.AuthEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CODESHELF_MAX_SCAN_FILES", "250")
	t.Setenv("CODESHELF_CONFIDENCE_THRESHOLD", "0.85")
	t.Setenv("CODESHELF_AUTH_MODE", "api-key")
	t.Setenv("CODESHELF_API_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.MaxScanFiles)
	assert.InDelta(t, 0.85, cfg.ConfidenceThreshold, 1e-9)
	assert.True(t, cfg.AuthEnabled())
}

func TestValidate_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"threshold above one", func(c *Config) { c.ConfidenceThreshold = 1.5 }},
		{"zero file ceiling", func(c *Config) { c.MaxScanFiles = 0 }},
		{"zero workers", func(c *Config) { c.ScanWorkers = 0 }},
		{"api-key mode without key", func(c *Config) { c.AuthMode = "api-key"; c.APIKey = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{
				ConfidenceThreshold: 0.7,
				MaxScanFiles:        100,
				ScanWorkers:         2,
			}
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
