// Package config loads global and per-repository settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// RepoConfigFile is the per-repository settings file name.
const RepoConfigFile = ".code-analyzer.yaml"

// Config holds global configuration
type Config struct {
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Storage   StorageConfig   `yaml:"storage"`
	Indexing  IndexingConfig  `yaml:"indexing"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type AnalysisConfig struct {
	MaxChunkTokens int `yaml:"max_chunk_tokens"`
	Depth          int `yaml:"depth"` // dependency expansion rounds
}

type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // "voyage"
	Model    string `yaml:"model"`    // "voyage-code-3"
}

type StorageConfig struct {
	QdrantURL  string `yaml:"qdrant_url"`
	RedisURL   string `yaml:"redis_url"` // empty disables the embedding cache
	Collection string `yaml:"collection"`
}

type IndexingConfig struct {
	Workers   int `yaml:"workers"`
	BatchSize int `yaml:"batch_size"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // error|warn|info|debug
	File  string `yaml:"file"`  // MCP server log file
}

// RepoConfig holds per-repository configuration
type RepoConfig struct {
	Name    string   `yaml:"name"`
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			MaxChunkTokens: 6000,
			Depth:          1,
		},
		Embedding: EmbeddingConfig{
			Provider: "voyage",
			Model:    "voyage-code-3",
		},
		Storage: StorageConfig{
			QdrantURL:  "http://localhost:6334",
			RedisURL:   "redis://localhost:6379",
			Collection: "python_functions",
		},
		Indexing: IndexingConfig{
			Workers:   4,
			BatchSize: 64,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultConfigPath returns ~/.config/code-analyzer/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".code-analyzer", "config.yaml")
	}
	return filepath.Join(home, ".config", "code-analyzer", "config.yaml")
}

// Validate rejects settings the analyzer cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Analysis.MaxChunkTokens <= 0 {
		errs = append(errs, fmt.Errorf("analysis.max_chunk_tokens must be positive, got %d", c.Analysis.MaxChunkTokens))
	}
	if c.Analysis.Depth < 0 {
		errs = append(errs, fmt.Errorf("analysis.depth must not be negative, got %d", c.Analysis.Depth))
	}
	if c.Indexing.Workers <= 0 {
		errs = append(errs, fmt.Errorf("indexing.workers must be positive, got %d", c.Indexing.Workers))
	}
	if c.Indexing.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("indexing.batch_size must be positive, got %d", c.Indexing.BatchSize))
	}
	return errors.Join(errs...)
}

// LoadConfig loads config from file or returns defaults
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// DefaultRepoConfig indexes every Python file except virtualenvs and caches.
func DefaultRepoConfig(name string) *RepoConfig {
	return &RepoConfig{
		Name:    name,
		Include: []string{"**/*.py"},
		Exclude: []string{"**/.venv/**", "**/venv/**", "**/__pycache__/**", "**/.git/**"},
	}
}

// LoadRepoConfig loads .code-analyzer.yaml from repo root
func LoadRepoConfig(repoPath string) (*RepoConfig, error) {
	path := filepath.Join(repoPath, RepoConfigFile)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg RepoConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return &cfg, nil
}

// WriteRepoConfig saves cfg to repoPath/.code-analyzer.yaml.
func WriteRepoConfig(repoPath string, cfg *RepoConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(repoPath, RepoConfigFile), data, 0o644)
}
