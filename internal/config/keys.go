// Package config provides API key management utilities.
package config

import (
	"errors"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when no API key is configured for the selected
// LLM provider.
var ErrNoAPIKey = errors.New("no LLM API key configured")

// providerEnv maps an LLM provider to the environment variable holding its key.
var providerEnv = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

// GetAPIKey returns the API key for the configured LLM provider.
// It checks in order: environment variable, config file. Bedrock mode uses
// AWS credentials and needs no key.
func GetAPIKey(cfg *Config) (string, error) {
	provider := "anthropic"
	if cfg != nil && cfg.LLM.Provider != "" {
		provider = cfg.LLM.Provider
	}
	if cfg != nil && provider == "anthropic" && cfg.LLM.Bedrock.Enabled {
		return "", nil
	}

	if env, ok := providerEnv[provider]; ok {
		if key := os.Getenv(env); key != "" {
			return key, nil
		}
	}

	if cfg != nil {
		if key := usable(configKey(cfg, provider)); key != "" {
			return key, nil
		}
	}

	return "", ErrNoAPIKey
}

func configKey(cfg *Config, provider string) string {
	if provider == "gemini" {
		return cfg.LLM.GeminiAPIKey
	}
	return cfg.LLM.APIKey
}

// usable expands env references and rejects unresolved ones.
func usable(key string) string {
	key = os.ExpandEnv(key)
	if key == "" || strings.HasPrefix(key, "${") {
		return ""
	}
	return key
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// IsSecretKey reports whether a configuration key holds a credential.
func IsSecretKey(key string) bool {
	return strings.HasSuffix(strings.ToLower(key), "api_key")
}

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv     KeySource = "environment"
	KeySourceConfig  KeySource = "config_file"
	KeySourceBedrock KeySource = "aws_bedrock"
	KeySourceNone    KeySource = "none"
)

// GetAPIKeySource returns where the LLM API key was sourced from.
func GetAPIKeySource(cfg *Config) KeySource {
	provider := "anthropic"
	if cfg != nil && cfg.LLM.Provider != "" {
		provider = cfg.LLM.Provider
	}
	if cfg != nil && provider == "anthropic" && cfg.LLM.Bedrock.Enabled {
		return KeySourceBedrock
	}
	if env, ok := providerEnv[provider]; ok && os.Getenv(env) != "" {
		return KeySourceEnv
	}
	if cfg != nil && usable(configKey(cfg, provider)) != "" {
		return KeySourceConfig
	}
	return KeySourceNone
}
