package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// APIKeys holds all API keys loaded from environment
type APIKeys struct {
	OpenAI string
	Gemini string
}

// LoadEnv loads environment variables from a .env file if one exists.
// Missing files are fine; system-wide environment variables may already be
// set.
func LoadEnv() error {
	envPaths := []string{
		".env",
		".env.local",
		"../.env",
		"../../.env",
	}

	for _, envPath := range envPaths {
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return fmt.Errorf("error loading %s file: %w", envPath, err)
			}
			break
		}
	}

	return nil
}

// GetAPIKeys retrieves and validates API keys from environment variables.
// Fails fast on malformed keys rather than at first request time.
func GetAPIKeys() (*APIKeys, error) {
	apiKeys := &APIKeys{
		OpenAI: strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		Gemini: strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
	}

	if apiKeys.OpenAI != "" {
		if !strings.HasPrefix(apiKeys.OpenAI, "sk-") {
			return nil, fmt.Errorf("invalid OPENAI_API_KEY format: must start with 'sk-'")
		}
		if len(apiKeys.OpenAI) < 20 {
			return nil, fmt.Errorf("invalid OPENAI_API_KEY format: too short")
		}
	}

	if apiKeys.Gemini != "" {
		if !strings.HasPrefix(apiKeys.Gemini, "AIza") {
			return nil, fmt.Errorf("invalid GEMINI_API_KEY format: must start with 'AIza'")
		}
		if len(apiKeys.Gemini) < 30 {
			return nil, fmt.Errorf("invalid GEMINI_API_KEY format: too short")
		}
	}

	return apiKeys, nil
}

// GetEnv returns the value of the environment variable or the fallback when
// unset.
func GetEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// GetEnvInt64 parses an int64 environment variable with a fallback
func GetEnvInt64(key string, fallback int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// GetEnvInt parses an int environment variable with a fallback
func GetEnvInt(key string, fallback int) int {
	return int(GetEnvInt64(key, int64(fallback)))
}

// GetEnvDuration parses a duration environment variable with a fallback
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// Limits holds upload and processing bounds, all overridable via env.
type Limits struct {
	MaxUploadBytes    int64
	TranscribeTimeout time.Duration
	BlobTimeout       time.Duration
	AnalysisTimeout   time.Duration
	SignedURLTTL      time.Duration
	BatchConcurrency  int
}

// DefaultLimits reads the processing limits from the environment.
func DefaultLimits() Limits {
	return Limits{
		MaxUploadBytes:    GetEnvInt64("MAX_UPLOAD_BYTES", 100*1024*1024),
		TranscribeTimeout: GetEnvDuration("TRANSCRIBE_TIMEOUT", 120*time.Second),
		BlobTimeout:       GetEnvDuration("BLOB_TIMEOUT", 30*time.Second),
		AnalysisTimeout:   GetEnvDuration("ANALYSIS_TIMEOUT", 60*time.Second),
		SignedURLTTL:      GetEnvDuration("SIGNED_URL_TTL", 15*time.Minute),
		BatchConcurrency:  GetEnvInt("BATCH_CONCURRENCY", 4),
	}
}
