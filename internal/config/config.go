// Package config handles configuration loading and management for quarry.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for quarry.
type Config struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	Search    SearchConfig    `mapstructure:"search"`
	Timeouts  TimeoutsConfig  `mapstructure:"timeouts"`
	Audit     AuditConfig     `mapstructure:"audit"`
	NotFound  NotFoundConfig  `mapstructure:"not_found"`
	History   HistoryConfig   `mapstructure:"history"`
	Log       LogConfig       `mapstructure:"log"`
}

// LLMConfig selects and configures the language model provider.
type LLMConfig struct {
	// Provider is "anthropic" or "gemini".
	Provider string `mapstructure:"provider" validate:"oneof=anthropic gemini"`
	// Model overrides the provider's default model.
	Model        string        `mapstructure:"model"`
	APIKey       string        `mapstructure:"api_key"`
	GeminiAPIKey string        `mapstructure:"gemini_api_key"`
	MaxTokens    int           `mapstructure:"max_tokens" validate:"gte=0"`
	Bedrock      BedrockConfig `mapstructure:"bedrock"`
}

// BedrockConfig routes Anthropic calls through AWS Bedrock.
type BedrockConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Region  string `mapstructure:"region"`
	Profile string `mapstructure:"profile"`
}

// EngineConfig bounds the question expansion.
type EngineConfig struct {
	MaxDepth        int `mapstructure:"max_depth" validate:"gte=0,lte=6"`
	MaxConcurrency  int `mapstructure:"max_concurrency" validate:"gte=0"`
	MaxFollowups    int `mapstructure:"max_followups" validate:"gte=0,lte=10"`
	MaxSubquestions int `mapstructure:"max_subquestions" validate:"gte=2,lte=10"`
}

// KnowledgeConfig locates the knowledge base document.
type KnowledgeConfig struct {
	// Path is a document file, or a directory of company documents.
	Path  string `mapstructure:"path" validate:"required"`
	Watch bool   `mapstructure:"watch"`
}

// SearchConfig configures the web search tier.
type SearchConfig struct {
	Endpoint         string        `mapstructure:"endpoint" validate:"omitempty,url"`
	APIKey           string        `mapstructure:"api_key"`
	ResultCount      int           `mapstructure:"result_count" validate:"gte=1,lte=20"`
	MaxContextChars  int           `mapstructure:"max_context_chars" validate:"gte=200"`
	CacheDir         string        `mapstructure:"cache_dir"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`
	FailureThreshold uint32        `mapstructure:"failure_threshold" validate:"gte=1"`
}

// TimeoutsConfig holds the per-call timeout of each provider.
type TimeoutsConfig struct {
	Classify      time.Duration `mapstructure:"classify" validate:"gte=0"`
	Decompose     time.Duration `mapstructure:"decompose" validate:"gte=0"`
	KnowledgeBase time.Duration `mapstructure:"knowledge_base" validate:"gte=0"`
	WebSearch     time.Duration `mapstructure:"web_search" validate:"gte=0"`
	Synthesize    time.Duration `mapstructure:"synthesize" validate:"gte=0"`
	Followups     time.Duration `mapstructure:"followups" validate:"gte=0"`
	Audit         time.Duration `mapstructure:"audit" validate:"gte=0"`
}

// AuditConfig configures the optional polishing service.
type AuditConfig struct {
	// URL is the service base URL. Empty disables polishing.
	URL          string        `mapstructure:"url" validate:"omitempty,url"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	MaxAttempts  int           `mapstructure:"max_attempts" validate:"gte=1"`
}

// NotFoundConfig lists the knowledge base replies that mean "no answer".
type NotFoundConfig struct {
	Phrases       []string `mapstructure:"phrases"`
	ErrorPrefixes []string `mapstructure:"error_prefixes"`
}

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Path defaults to history.db in the XDG data directory.
	Path string `mapstructure:"path"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, GEMINI_API_KEY, QUARRY_*)
// 2. Project config (.quarry.yaml in current directory or parent)
// 3. User config (~/.config/quarry/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	return decode(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := newViper()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return decode(v)
}

// newViper returns a viper instance with defaults and environment bindings.
func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("QUARRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("llm.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("llm.gemini_api_key", "GEMINI_API_KEY")
	v.BindEnv("search.api_key", "QUARRY_SEARCH_API_KEY", "SERPER_API_KEY")
	v.BindEnv("audit.url", "QUARRY_AUDIT_URL")
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.LLM.APIKey = expandEnv(cfg.LLM.APIKey)
	cfg.LLM.GeminiAPIKey = expandEnv(cfg.LLM.GeminiAPIKey)
	cfg.Search.APIKey = expandEnv(cfg.Search.APIKey)

	return cfg, nil
}

// Keys returns every known configuration key in sorted order.
func Keys() []string {
	v := viper.New()
	setDefaults(v)
	keys := v.AllKeys()
	sort.Strings(keys)
	return keys
}

// IsKey reports whether key is a known configuration key.
func IsKey(key string) bool {
	key = strings.ToLower(key)
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}

// Set writes a single key to the user config file. The resulting
// configuration must still decode and validate.
func Set(key, value string) error {
	return setIn(getUserConfigDir(), key, value)
}

func setIn(dir, key, value string) error {
	key = strings.ToLower(key)
	if !IsKey(key) {
		return fmt.Errorf("unknown configuration key: %s", key)
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	configPath := filepath.Join(dir, "config.yaml")

	file := viper.New()
	file.SetConfigFile(configPath)
	if _, err := os.Stat(configPath); err == nil {
		if err := file.ReadInConfig(); err != nil {
			return fmt.Errorf("reading user config: %w", err)
		}
	}
	file.Set(key, parseValue(key, value))

	check := viper.New()
	setDefaults(check)
	if err := check.MergeConfigMap(file.AllSettings()); err != nil {
		return fmt.Errorf("merging config: %w", err)
	}
	cfg, err := decode(check)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := file.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// parseValue turns a command-line value into a typed config value. List
// keys take comma-separated items; everything else is read as a YAML scalar
// so numbers and booleans keep their type in the written file.
func parseValue(key, value string) interface{} {
	switch key {
	case "not_found.phrases", "not_found.error_prefixes":
		return splitList(value)
	}
	var parsed interface{}
	if err := yaml.Unmarshal([]byte(value), &parsed); err != nil || parsed == nil {
		return value
	}
	switch parsed.(type) {
	case string, bool, int, float64:
		return parsed
	}
	return value
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.max_tokens", d.LLM.MaxTokens)
	v.SetDefault("llm.bedrock.enabled", false)
	v.SetDefault("llm.bedrock.region", "")
	v.SetDefault("llm.bedrock.profile", "")

	v.SetDefault("engine.max_depth", d.Engine.MaxDepth)
	v.SetDefault("engine.max_concurrency", d.Engine.MaxConcurrency)
	v.SetDefault("engine.max_followups", d.Engine.MaxFollowups)
	v.SetDefault("engine.max_subquestions", d.Engine.MaxSubquestions)

	v.SetDefault("knowledge.path", d.Knowledge.Path)
	v.SetDefault("knowledge.watch", d.Knowledge.Watch)

	v.SetDefault("search.endpoint", d.Search.Endpoint)
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.result_count", d.Search.ResultCount)
	v.SetDefault("search.max_context_chars", d.Search.MaxContextChars)
	v.SetDefault("search.cache_dir", "")
	v.SetDefault("search.cache_ttl", d.Search.CacheTTL.String())
	v.SetDefault("search.failure_threshold", d.Search.FailureThreshold)

	v.SetDefault("timeouts.classify", d.Timeouts.Classify.String())
	v.SetDefault("timeouts.decompose", d.Timeouts.Decompose.String())
	v.SetDefault("timeouts.knowledge_base", d.Timeouts.KnowledgeBase.String())
	v.SetDefault("timeouts.web_search", d.Timeouts.WebSearch.String())
	v.SetDefault("timeouts.synthesize", d.Timeouts.Synthesize.String())
	v.SetDefault("timeouts.followups", d.Timeouts.Followups.String())
	v.SetDefault("timeouts.audit", d.Timeouts.Audit.String())

	v.SetDefault("audit.url", "")
	v.SetDefault("audit.poll_interval", d.Audit.PollInterval.String())
	v.SetDefault("audit.max_attempts", d.Audit.MaxAttempts)

	v.SetDefault("not_found.phrases", d.NotFound.Phrases)
	v.SetDefault("not_found.error_prefixes", d.NotFound.ErrorPrefixes)

	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.path", "")

	v.SetDefault("log.level", d.Log.Level)
}

// getUserConfigDir returns the XDG config directory for quarry.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "quarry")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "quarry")
	}
	return filepath.Join(home, ".config", "quarry")
}

// findProjectConfig searches for .quarry.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".quarry.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:  "anthropic",
			MaxTokens: 1024,
		},
		Engine: EngineConfig{
			MaxDepth:        2,
			MaxConcurrency:  0,
			MaxFollowups:    3,
			MaxSubquestions: 6,
		},
		Knowledge: KnowledgeConfig{
			Path: "companyinfo",
		},
		Search: SearchConfig{
			Endpoint:         "https://google.serper.dev/search",
			ResultCount:      5,
			MaxContextChars:  6000,
			CacheTTL:         24 * time.Hour,
			FailureThreshold: 5,
		},
		Timeouts: TimeoutsConfig{
			Classify:      30 * time.Second,
			Decompose:     45 * time.Second,
			KnowledgeBase: 60 * time.Second,
			WebSearch:     20 * time.Second,
			Synthesize:    60 * time.Second,
			Followups:     45 * time.Second,
			Audit:         2 * time.Minute,
		},
		Audit: AuditConfig{
			PollInterval: 2 * time.Second,
			MaxAttempts:  30,
		},
		NotFound: NotFoundConfig{
			Phrases: []string{
				"not available in our current document",
				"company information file not found",
				"no companies found in the knowledge base",
			},
			ErrorPrefixes: []string{"error:", "api error:", "openai api error:"},
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}
