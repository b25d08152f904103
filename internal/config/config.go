// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/llm-gateway/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	Server ServerConfig

	// Providers holds upstream vendor settings.
	Providers ProviderConfig

	// Validation holds pipeline tuning knobs.
	Validation ValidationConfig

	// DatabaseURL enables the postgres-backed trace sink and tenant store
	// when set. Empty means DB-less operation with defaults.
	DatabaseURL string
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Port is the HTTP port to listen on.
	Port string

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Streaming responses are exempt via per-handler flushing.
	WriteTimeout time.Duration
}

// ProviderConfig contains upstream vendor settings.
type ProviderConfig struct {
	// OpenAIKey, AnthropicKey and GeminiKey are per-vendor credentials.
	// A vendor with no key configured fails requests with a credential
	// error rather than a degraded answer.
	OpenAIKey    string
	AnthropicKey string
	GeminiKey    string

	// Timeout is the maximum time to wait for one vendor call.
	Timeout time.Duration

	// MaxRetries is the retry budget for transient vendor failures.
	MaxRetries int

	// MaxTokens is the default completion cap when the request sets none.
	MaxTokens int

	// JSONModeModels extends the built-in allow-list of models trusted to
	// honor native JSON mode (comma-separated).
	JSONModeModels []string

	// MockMode swaps all vendors for a canned enforcer. Testing only.
	MockMode bool
}

// ValidationConfig contains validation pipeline settings.
type ValidationConfig struct {
	// HistoryWindow bounds the historical-violation lookback.
	HistoryWindow time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnvOrDefault("PORT", "8080"),
			ReadTimeout:  getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDurationOrDefault("SERVER_WRITE_TIMEOUT", 120*time.Second),
		},
		Providers: ProviderConfig{
			OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
			AnthropicKey:   os.Getenv("ANTHROPIC_API_KEY"),
			GeminiKey:      os.Getenv("GEMINI_API_KEY"),
			Timeout:        getDurationOrDefault("PROVIDER_TIMEOUT", 60*time.Second),
			MaxRetries:     getIntOrDefault("PROVIDER_MAX_RETRIES", 2),
			MaxTokens:      getIntOrDefault("PROVIDER_MAX_TOKENS", 1024),
			JSONModeModels: getListOrDefault("JSON_MODE_MODELS", nil),
			MockMode:       getBoolOrDefault("MOCK_MODE", false),
		},
		Validation: ValidationConfig{
			HistoryWindow: getDurationOrDefault("HISTORY_WINDOW", 30*24*time.Hour),
		},
		DatabaseURL: os.Getenv("DATABASE_URL"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Providers.Timeout < time.Second {
		return fmt.Errorf("%w: PROVIDER_TIMEOUT must be at least 1 second", domain.ErrInvalidConfig)
	}

	if c.Providers.MaxRetries < 0 {
		return fmt.Errorf("%w: PROVIDER_MAX_RETRIES must not be negative", domain.ErrInvalidConfig)
	}

	if c.Providers.MaxTokens < 100 {
		return fmt.Errorf("%w: PROVIDER_MAX_TOKENS must be at least 100", domain.ErrInvalidConfig)
	}

	if !c.Providers.MockMode &&
		c.Providers.OpenAIKey == "" && c.Providers.AnthropicKey == "" && c.Providers.GeminiKey == "" {
		return fmt.Errorf("%w: at least one vendor API key is required when not in mock mode", domain.ErrInvalidConfig)
	}

	return nil
}

// KeyFor returns the configured credential for a vendor.
func (p *ProviderConfig) KeyFor(vendor domain.Vendor) string {
	switch vendor {
	case domain.VendorOpenAI:
		return p.OpenAIKey
	case domain.VendorAnthropic:
		return p.AnthropicKey
	case domain.VendorGemini:
		return p.GeminiKey
	default:
		return ""
	}
}

// Helper functions for reading environment variables

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getListOrDefault(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultVal
}

func getDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		// Plain integers are seconds (e.g., "15")
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
