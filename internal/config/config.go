// Package config loads runtime configuration from the environment with an
// optional YAML file overlay.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envPrefix = "LEXCORE"

// Config is the full runtime configuration for the orchestration core.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development" yaml:"environment"`
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:"127.0.0.1:8090" yaml:"listen_addr"`

	Provider Provider `yaml:"provider"`

	// ToolGatewayURL is the base URL of the research-tool gateway that
	// actually executes court/legislation/registry/document lookups.
	ToolGatewayURL string `envconfig:"TOOL_GATEWAY_URL" yaml:"tool_gateway_url"`

	// RedisURL enables the shared history-summary and tool-result caches.
	// Empty means in-process LRU caches only.
	RedisURL string `envconfig:"REDIS_URL" yaml:"redis_url"`

	// DBPath is the SQLite conversation store location.
	DBPath string `envconfig:"DB_PATH" default:"data/lexcore.db" yaml:"db_path"`

	// CitationCheckEnabled toggles post-answer citation verification.
	CitationCheckEnabled bool `envconfig:"CITATION_CHECK_ENABLED" default:"true" yaml:"citation_check_enabled"`
}

// Provider selects and authenticates the LLM backend.
type Provider struct {
	// Type is one of: openai, openai_compatible, anthropic.
	Type    string `envconfig:"PROVIDER_TYPE" default:"openai" yaml:"type"`
	BaseURL string `envconfig:"PROVIDER_BASE_URL" yaml:"base_url"`
	APIKey  string `envconfig:"PROVIDER_API_KEY" yaml:"api_key"`

	// Model drives the main reasoning loop; FastModel serves classification,
	// planning and history summarization.
	Model      string `envconfig:"MODEL" default:"gpt-4o" yaml:"model"`
	FastModel  string `envconfig:"FAST_MODEL" default:"gpt-4o-mini" yaml:"fast_model"`
	EmbedModel string `envconfig:"EMBED_MODEL" default:"text-embedding-3-small" yaml:"embed_model"`
}

// Load reads env vars (LEXCORE_ prefix) and, when path is non-empty, overlays
// a YAML file on top. The file wins for fields it sets.
func Load(path string) (Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	if err := envconfig.Process(envPrefix, &cfg.Provider); err != nil {
		return Config{}, fmt.Errorf("read provider environment: %w", err)
	}

	path = strings.TrimSpace(path)
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Provider.Type)) {
	case "openai", "openai_compatible", "anthropic":
	default:
		return fmt.Errorf("unsupported provider type %q", c.Provider.Type)
	}
	if strings.TrimSpace(c.Provider.APIKey) == "" {
		return errors.New("missing provider api key")
	}
	return nil
}
