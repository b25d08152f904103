package config

import (
	"testing"
	"time"

	"github.com/llm-gateway/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Providers.Timeout != 60*time.Second {
		t.Errorf("Timeout = %v", cfg.Providers.Timeout)
	}
	if cfg.Providers.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d", cfg.Providers.MaxRetries)
	}
	if cfg.Validation.HistoryWindow != 30*24*time.Hour {
		t.Errorf("HistoryWindow = %v", cfg.Validation.HistoryWindow)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("PORT", "9090")
	t.Setenv("PROVIDER_TIMEOUT", "30")
	t.Setenv("JSON_MODE_MODELS", "model-a, model-b")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Port = %q", cfg.Server.Port)
	}
	if cfg.Providers.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, plain integers are seconds", cfg.Providers.Timeout)
	}
	if len(cfg.Providers.JSONModeModels) != 2 || cfg.Providers.JSONModeModels[1] != "model-b" {
		t.Errorf("JSONModeModels = %v", cfg.Providers.JSONModeModels)
	}
}

func TestLoad_RequiresAKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("MOCK_MODE", "")

	if _, err := Load(); err == nil {
		t.Error("Load() should fail without any vendor key")
	}
}

func TestLoad_MockModeNeedsNoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("MOCK_MODE", "true")

	if _, err := Load(); err != nil {
		t.Errorf("Load() error = %v", err)
	}
}

func TestValidate_Bounds(t *testing.T) {
	base := func() *Config {
		return &Config{
			Providers: ProviderConfig{
				OpenAIKey:  "k",
				Timeout:    60 * time.Second,
				MaxRetries: 2,
				MaxTokens:  1024,
			},
		}
	}

	cfg := base()
	cfg.Providers.Timeout = 500 * time.Millisecond
	if err := cfg.Validate(); err == nil {
		t.Error("sub-second timeout should be rejected")
	}

	cfg = base()
	cfg.Providers.MaxRetries = -1
	if err := cfg.Validate(); err == nil {
		t.Error("negative retries should be rejected")
	}

	cfg = base()
	cfg.Providers.MaxTokens = 50
	if err := cfg.Validate(); err == nil {
		t.Error("tiny token cap should be rejected")
	}
}

func TestKeyFor(t *testing.T) {
	p := &ProviderConfig{OpenAIKey: "o", AnthropicKey: "a", GeminiKey: "g"}

	tests := []struct {
		vendor domain.Vendor
		want   string
	}{
		{domain.VendorOpenAI, "o"},
		{domain.VendorAnthropic, "a"},
		{domain.VendorGemini, "g"},
		{domain.Vendor("other"), ""},
	}

	for _, tt := range tests {
		if got := p.KeyFor(tt.vendor); got != tt.want {
			t.Errorf("KeyFor(%s) = %q, want %q", tt.vendor, got, tt.want)
		}
	}
}
