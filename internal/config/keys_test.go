package config

import (
	"testing"
)

func TestGetAPIKey(t *testing.T) {
	t.Run("from environment variable", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test-key")

		key, err := GetAPIKey(&Config{})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if key != "sk-ant-test-key" {
			t.Errorf("expected 'sk-ant-test-key', got %q", key)
		}
	})

	t.Run("from config", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")

		cfg := &Config{LLM: LLMConfig{APIKey: "sk-ant-config-key"}}
		key, err := GetAPIKey(cfg)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if key != "sk-ant-config-key" {
			t.Errorf("expected 'sk-ant-config-key', got %q", key)
		}
	})

	t.Run("gemini provider", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "gem-key")
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant-other")

		key, err := GetAPIKey(&Config{LLM: LLMConfig{Provider: "gemini"}})
		if err != nil || key != "gem-key" {
			t.Errorf("got %q, %v; want gem-key", key, err)
		}
	})

	t.Run("bedrock needs no key", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")

		cfg := &Config{LLM: LLMConfig{Bedrock: BedrockConfig{Enabled: true}}}
		if _, err := GetAPIKey(cfg); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("unresolved reference", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")

		cfg := &Config{LLM: LLMConfig{APIKey: "${QUARRY_TEST_UNSET_KEY}"}}
		if _, err := GetAPIKey(cfg); err != ErrNoAPIKey {
			t.Errorf("expected ErrNoAPIKey, got %v", err)
		}
	})

	t.Run("no key configured", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")

		_, err := GetAPIKey(&Config{})
		if err != ErrNoAPIKey {
			t.Errorf("expected ErrNoAPIKey, got %v", err)
		}
	})
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"", "(not set)"},
		{"short", "***"},
		{"sk-ant-REDACTED", "sk-ant-...mnop"},
	}

	for _, tt := range tests {
		if got := MaskAPIKey(tt.key); got != tt.want {
			t.Errorf("MaskAPIKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestIsSecretKey(t *testing.T) {
	if !IsSecretKey("llm.api_key") || !IsSecretKey("search.API_KEY") {
		t.Error("api keys should be secret")
	}
	if IsSecretKey("engine.max_depth") {
		t.Error("max_depth is not secret")
	}
}

func TestGetAPIKeySource(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	if got := GetAPIKeySource(&Config{}); got != KeySourceNone {
		t.Errorf("expected none, got %s", got)
	}

	if got := GetAPIKeySource(&Config{LLM: LLMConfig{APIKey: "sk-ant-x"}}); got != KeySourceConfig {
		t.Errorf("expected config_file, got %s", got)
	}

	if got := GetAPIKeySource(&Config{LLM: LLMConfig{Bedrock: BedrockConfig{Enabled: true}}}); got != KeySourceBedrock {
		t.Errorf("expected aws_bedrock, got %s", got)
	}

	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env")
	if got := GetAPIKeySource(&Config{}); got != KeySourceEnv {
		t.Errorf("expected environment, got %s", got)
	}
}
