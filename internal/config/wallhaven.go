package config

import (
	"os"
	"time"
)

// WallhavenConfig configures the remote search API and image downloads.
type WallhavenConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	APIKey          string        `mapstructure:"api_key"`     // API key (can be set directly or via env var)
	APIKeyEnv       string        `mapstructure:"api_key_env"` // Environment variable name for API key
	Timeout         time.Duration `mapstructure:"timeout"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
}

// ResolveEnvVars loads APIKey from APIKeyEnv when it is not set directly.
func (c *WallhavenConfig) ResolveEnvVars() {
	if c.APIKeyEnv != "" && c.APIKey == "" {
		if val := os.Getenv(c.APIKeyEnv); val != "" {
			c.APIKey = val
		}
	}
}
