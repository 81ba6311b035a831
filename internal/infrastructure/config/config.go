// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigDir is the directory name for gmcore configuration.
	DefaultConfigDir = ".gmcore"
	// DefaultConfigFile is the default config file name.
	DefaultConfigFile = "config.yaml"
	// DefaultDBFile is the default sqlite database file name.
	DefaultDBFile = "session.db"
)

// Config holds static per-session configuration (read-only after init).
// Values load from yaml first, then environment variables override.
type Config struct {
	Engine   EngineConfig   `yaml:"engine,omitempty"`
	LLM      LLMConfig      `yaml:"llm,omitempty"`
	Embedder EmbedderConfig `yaml:"embedder,omitempty"`
	Qdrant   QdrantConfig   `yaml:"qdrant,omitempty"`
	SQLite   SQLiteConfig   `yaml:"sqlite,omitempty"`
}

// EngineConfig is the host-facing tuning surface of the decision pipeline.
type EngineConfig struct {
	GenerationMode      string        `yaml:"generation_mode,omitempty" env:"GMCORE_GENERATION_MODE"`
	RelevanceThreshold  float64       `yaml:"relevance_threshold,omitempty" env:"GMCORE_RELEVANCE_THRESHOLD"`
	MinDecisionInterval time.Duration `yaml:"min_decision_interval,omitempty" env:"GMCORE_MIN_DECISION_INTERVAL"`
	GenerationTimeout   time.Duration `yaml:"generation_timeout,omitempty" env:"GMCORE_GENERATION_TIMEOUT"`
	MinOptions          int           `yaml:"min_options,omitempty" env:"GMCORE_MIN_OPTIONS"`
	MaxOptions          int           `yaml:"max_options,omitempty" env:"GMCORE_MAX_OPTIONS"`
	TokenBudget         int           `yaml:"token_budget,omitempty" env:"GMCORE_TOKEN_BUDGET"`
}

// LLMConfig holds configuration for the language-model provider.
type LLMConfig struct {
	Provider string `yaml:"provider,omitempty" env:"GMCORE_LLM_PROVIDER"`
	Model    string `yaml:"model,omitempty" env:"GMCORE_LLM_MODEL"`
	APIKey   string `yaml:"api_key,omitempty" env:"OPENAI_API_KEY"`
}

// EmbedderConfig holds configuration for the embedding provider.
type EmbedderConfig struct {
	Provider string `yaml:"provider,omitempty" env:"GMCORE_EMBEDDER_PROVIDER"`
	Model    string `yaml:"model,omitempty" env:"GMCORE_EMBEDDER_MODEL"`
	APIKey   string `yaml:"api_key,omitempty" env:"OPENAI_API_KEY"`
}

// QdrantConfig holds configuration for the Qdrant recall index.
type QdrantConfig struct {
	Host       string `yaml:"host,omitempty" env:"GMCORE_QDRANT_HOST"`
	Port       int    `yaml:"port,omitempty" env:"GMCORE_QDRANT_PORT"`
	Collection string `yaml:"collection,omitempty" env:"GMCORE_QDRANT_COLLECTION"`
	Enabled    bool   `yaml:"enabled,omitempty" env:"GMCORE_QDRANT_ENABLED"`
}

// SQLiteConfig holds configuration for the sqlite state store.
type SQLiteConfig struct {
	// Path is the file path to the sqlite database.
	Path string `yaml:"path,omitempty" env:"GMCORE_SQLITE_PATH"`
}

// ConfigFilePath returns the path to the config file for a directory.
func ConfigFilePath(dir string) string {
	return filepath.Join(dir, DefaultConfigDir, DefaultConfigFile)
}

// Exists reports whether a config file already exists in the directory.
func Exists(dir string) bool {
	_, err := os.Stat(ConfigFilePath(dir))
	return err == nil
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			GenerationMode:      "hybrid",
			RelevanceThreshold:  0.65,
			MinDecisionInterval: 45 * time.Second,
			GenerationTimeout:   12 * time.Second,
			MinOptions:          2,
			MaxOptions:          4,
			TokenBudget:         2048,
		},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Embedder: EmbedderConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		Qdrant: QdrantConfig{
			Host:       "localhost",
			Port:       6334,
			Collection: "gmcore-facts",
		},
	}
}

// Load reads configuration from dir/.gmcore/config.yaml if present, applies
// defaults for missing values, then applies environment overrides.
func Load(dir string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(dir, DefaultConfigDir, DefaultConfigFile)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults plus env only.
	default:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing env overrides: %w", err)
	}

	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = filepath.Join(dir, DefaultConfigDir, DefaultDBFile)
	}
	return cfg, nil
}

// Write persists the config as yaml under dir/.gmcore/.
func Write(dir string, cfg *Config) error {
	configDir := filepath.Join(dir, DefaultConfigDir)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	path := filepath.Join(configDir, DefaultConfigFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}
