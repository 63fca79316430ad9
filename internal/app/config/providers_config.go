package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"voicepipe/internal/app/api/provider"
)

// ProvidersConfig selects and tunes the transcription providers.
type ProvidersConfig struct {
	DefaultProvider string                    `yaml:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers"`
}

// ProviderConfig tunes a single provider.
type ProviderConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Model       string            `yaml:"model,omitempty"`
	Performance PerformanceConfig `yaml:"performance,omitempty"`
	Retry       RetryConfig       `yaml:"retry,omitempty"`
}

// PerformanceConfig bounds a provider's external calls.
type PerformanceConfig struct {
	TimeoutSec     int `yaml:"timeout_sec,omitempty"`
	MaxConcurrency int `yaml:"max_concurrency,omitempty"`
}

// RetryConfig holds retry settings for transient failures.
type RetryConfig struct {
	MaxAttempts        int     `yaml:"max_attempts,omitempty"`
	InitialBackoffSec  int     `yaml:"initial_backoff_sec,omitempty"`
	BackoffCoefficient float64 `yaml:"backoff_coefficient,omitempty"`
}

// Timeout returns the configured call timeout, defaulting to two minutes.
func (p PerformanceConfig) Timeout() time.Duration {
	if p.TimeoutSec <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(p.TimeoutSec) * time.Second
}

// DefaultProvidersConfig enables the whisper provider with the standard
// retry policy.
func DefaultProvidersConfig() *ProvidersConfig {
	return &ProvidersConfig{
		DefaultProvider: "openai/whisper",
		Providers: map[string]ProviderConfig{
			"openai/whisper": {
				Enabled: true,
				Retry: RetryConfig{
					MaxAttempts:        3,
					InitialBackoffSec:  1,
					BackoffCoefficient: 2.0,
				},
			},
			"gemini": {
				Enabled: false,
			},
		},
	}
}

// ProviderEnabled reports whether the named provider should be registered.
func (c *ProvidersConfig) ProviderEnabled(name string) bool {
	p, ok := c.Providers[name]
	return ok && p.Enabled
}

// RetryFor converts the named provider's retry settings into the runtime
// retry policy, falling back to the defaults for unset fields.
func (c *ProvidersConfig) RetryFor(name string) provider.RetryConfig {
	policy := provider.DefaultRetryConfig()
	p, ok := c.Providers[name]
	if !ok {
		return policy
	}
	if p.Retry.MaxAttempts > 0 {
		policy.MaxAttempts = p.Retry.MaxAttempts
	}
	if p.Retry.InitialBackoffSec > 0 {
		policy.InitialBackoff = time.Duration(p.Retry.InitialBackoffSec) * time.Second
	}
	if p.Retry.BackoffCoefficient > 0 {
		policy.BackoffCoefficient = p.Retry.BackoffCoefficient
	}
	return policy
}

// LoadProvidersConfig loads provider configuration from a YAML file, falling
// back to defaults when the path is empty or missing.
func LoadProvidersConfig(configPath string) (*ProvidersConfig, error) {
	if configPath == "" {
		return DefaultProvidersConfig(), nil
	}
	configPath = os.ExpandEnv(configPath)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultProvidersConfig(), nil
		}
		return nil, fmt.Errorf("failed to read provider config: %w", err)
	}

	var cfg ProvidersConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse provider config: %w", err)
	}
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = "openai/whisper"
	}
	return &cfg, nil
}
