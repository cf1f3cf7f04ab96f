// Copyright 2026 The switchroute Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads the server's YAML configuration file and provides
// structured access to application settings: listen address, embedding
// backend, difficulty calibration, semantic routes, default model pair, chat
// store, knowledge indexes, and the management key.
package config

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/traylinx/switchroute/internal/routing/difficulty"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Host is the network host/interface the API server binds to. Empty binds
	// all interfaces.
	Host string `yaml:"host"`
	// Port is the network port the API server listens on.
	Port int `yaml:"port"`

	// Debug enables debug-level logging.
	Debug bool `yaml:"debug"`

	// LoggingToFile writes logs to rotating files instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file"`

	// LogsDir is where rotating log files go when LoggingToFile is set.
	LogsDir string `yaml:"logs-dir"`

	// RequestTimeoutSeconds bounds one completion request end to end,
	// including the availability retry.
	RequestTimeoutSeconds int `yaml:"request-timeout-seconds"`

	// Embedding configures the embedding backend shared by the semantic
	// classifier, the difficulty scorer, and the knowledge indexes.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Difficulty configures the difficulty classifier.
	Difficulty DifficultyConfig `yaml:"difficulty"`

	// Semantic configures the semantic classifier defaults.
	Semantic SemanticConfig `yaml:"semantic"`

	// Models optionally supplies a default strong/weak pair for requests that
	// omit one. The gateway endpoint only consults it when use-defaults is set.
	Models ModelDefaults `yaml:"models"`

	// Store configures the chat database.
	Store StoreConfig `yaml:"store"`

	// Knowledge configures per-chat retrieval.
	Knowledge KnowledgeConfig `yaml:"knowledge"`

	// RemoteManagement nests the management API options.
	RemoteManagement RemoteManagement `yaml:"remote-management"`
}

// EmbeddingConfig selects the OpenAI-compatible embeddings backend.
type EmbeddingConfig struct {
	// BaseURL of the embeddings API. Empty means the hosted OpenAI default.
	BaseURL string `yaml:"base-url"`
	// APIKey for the embeddings API. Empty falls back to OPENAI_API_KEY.
	APIKey string `yaml:"api-key"`
	// Model is the embedding model identifier.
	Model string `yaml:"model"`
}

// DifficultyConfig points at the calibrated scorer artifacts.
type DifficultyConfig struct {
	// WeightsFile is the calibration file path. Empty selects the lexical
	// fallback scorer.
	WeightsFile string `yaml:"weights-file"`
	// Threshold overrides the calibrated cutoff when positive.
	Threshold float64 `yaml:"threshold"`
}

// SemanticConfig tunes the semantic classifier and names the server-default
// routes file used by the chat endpoints.
type SemanticConfig struct {
	// RoutesFile is a YAML file of default routes. Empty selects the built-in
	// defaults for the chat endpoints; the gateway endpoint never uses either.
	RoutesFile string `yaml:"routes-file"`
	// SimilarityFloor overrides the default floor when positive.
	SimilarityFloor float64 `yaml:"similarity-floor"`
	// TopK overrides the default aggregation depth when positive.
	TopK int `yaml:"top-k"`
}

// ModelConfig describes one default backend.
type ModelConfig struct {
	Name                string  `yaml:"name"`
	Provider            string  `yaml:"provider"`
	BaseURL             string  `yaml:"base-url"`
	APIKey              string  `yaml:"api-key"`
	SimulatedThroughput float64 `yaml:"simulated-throughput"`
}

// ModelDefaults is the optional default strong/weak pair. The gateway
// endpoint only falls back to it when UseDefaults is set; otherwise requests
// without models are rejected.
type ModelDefaults struct {
	UseDefaults bool        `yaml:"use-defaults"`
	Strong      ModelConfig `yaml:"strong"`
	Weak        ModelConfig `yaml:"weak"`
}

// StoreConfig configures the SQLite chat store.
type StoreConfig struct {
	// Path of the database file.
	Path string `yaml:"path"`
}

// KnowledgeConfig configures the per-chat retrieval indexes.
type KnowledgeConfig struct {
	// IndexesDir is where per-chat index files are written.
	IndexesDir string `yaml:"indexes-dir"`
	// TopK overrides how many chunks retrieval returns when positive.
	TopK int `yaml:"top-k"`
	// ScoreFloor overrides the retrieval similarity floor when positive.
	ScoreFloor float64 `yaml:"score-floor"`
}

// RemoteManagement holds the management API options.
type RemoteManagement struct {
	// SecretKey is the management key (plaintext or bcrypt hashed). A
	// plaintext value is hashed on load.
	SecretKey string `yaml:"secret-key"`
}

// LoadConfig reads YAML from configFile, applies defaults and environment
// overrides, and validates the result.
func LoadConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Set defaults before unmarshal so that absent keys keep defaults.
	cfg := Defaults()
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	// Hash the management key if plaintext is detected. A value is considered
	// already hashed when it carries a bcrypt prefix.
	if cfg.RemoteManagement.SecretKey != "" && !looksLikeBcrypt(cfg.RemoteManagement.SecretKey) {
		hashed, errHash := hashSecret(cfg.RemoteManagement.SecretKey)
		if errHash != nil {
			return nil, fmt.Errorf("failed to hash management key: %w", errHash)
		}
		cfg.RemoteManagement.SecretKey = hashed
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns a config populated with every default value.
func Defaults() *Config {
	return &Config{
		Host:                  "",
		Port:                  8317,
		RequestTimeoutSeconds: 120,
		LogsDir:               "./logs",
		Store:                 StoreConfig{Path: "./data/switchroute.db"},
		Knowledge:             KnowledgeConfig{IndexesDir: "./data/indexes"},
	}
}

// applyEnvOverrides lets the environment supply credentials and the default
// model names without editing the file.
func (c *Config) applyEnvOverrides() {
	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if v := os.Getenv("STRONG_MODEL_NAME"); v != "" {
		c.Models.Strong.Name = v
	}
	if v := os.Getenv("WEAK_MODEL_NAME"); v != "" {
		c.Models.Weak.Name = v
	}
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("request-timeout-seconds must be positive, got %d", c.RequestTimeoutSeconds)
	}
	if c.Models.UseDefaults {
		if strings.TrimSpace(c.Models.Strong.Name) == "" || strings.TrimSpace(c.Models.Weak.Name) == "" {
			return fmt.Errorf("models.use-defaults requires both strong and weak model names")
		}
	}
	if c.Semantic.SimilarityFloor < 0 || c.Semantic.SimilarityFloor > 1 {
		return fmt.Errorf("semantic.similarity-floor must be within [0, 1], got %g", c.Semantic.SimilarityFloor)
	}
	return nil
}

// DifficultyThreshold returns the effective difficulty cutoff.
func (c *Config) DifficultyThreshold() float64 {
	if c.Difficulty.Threshold > 0 {
		return c.Difficulty.Threshold
	}
	return difficulty.DifficultyThreshold
}

// CheckManagementKey reports whether the supplied plaintext key matches the
// configured management key. An empty configured key rejects everything.
func (c *Config) CheckManagementKey(key string) bool {
	hash := c.RemoteManagement.SecretKey
	if hash == "" || key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}

// looksLikeBcrypt returns true if the provided string appears to be a bcrypt hash.
func looksLikeBcrypt(s string) bool {
	return len(s) > 4 && (s[:4] == "$2a$" || s[:4] == "$2b$" || s[:4] == "$2y$")
}

// hashSecret hashes the given secret using bcrypt.
func hashSecret(secret string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}
