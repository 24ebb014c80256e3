// Package config resolves the memory service's on-disk layout and tunables.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the memory service.
type Config struct {
	// DataDir is the root for all on-disk state.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// EmbeddingModel names the embedding model (for reference; the actual
	// dimension comes from EmbeddingDimensions).
	EmbeddingModel string `yaml:"embedding_model" json:"embedding_model"`

	// EmbeddingDimensions must match the model's output width.
	EmbeddingDimensions int `yaml:"embedding_dimensions" json:"embedding_dimensions"`

	// EmbeddingEndpoint is an OpenAI-compatible /embeddings base URL.
	// Empty means fall back to the deterministic local embedder.
	EmbeddingEndpoint string `yaml:"embedding_endpoint" json:"embedding_endpoint"`

	// MaxRetrievalResults upper-bounds memories returned by Retrieval.
	MaxRetrievalResults int `yaml:"max_retrieval_results" json:"max_retrieval_results"`

	// MinSimilarityScore floors retrieval scores (0..1).
	MinSimilarityScore float32 `yaml:"min_similarity_score" json:"min_similarity_score"`

	// ContextWarningThreshold / ContextCriticalThreshold are budget bands (0..1).
	ContextWarningThreshold  float32 `yaml:"context_warning_threshold" json:"context_warning_threshold"`
	ContextCriticalThreshold float32 `yaml:"context_critical_threshold" json:"context_critical_threshold"`

	// ServerPort is the HTTP listen port.
	ServerPort int `yaml:"server_port" json:"server_port"`

	// NATSPort is the embedded event-bus listen port (loopback only).
	NATSPort int `yaml:"nats_port" json:"nats_port"`

	// LogLevel is loaded from the config file; the service does not
	// consult it and logs the same messages at every setting.
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// Default returns the memory service's default configuration.
func Default() *Config {
	return &Config{
		DataDir:                  filepath.Join(".", "data"),
		EmbeddingModel:           "all-MiniLM-L6-v2",
		EmbeddingDimensions:      384,
		EmbeddingEndpoint:        "",
		MaxRetrievalResults:      10,
		MinSimilarityScore:       0.7,
		ContextWarningThreshold:  0.8,
		ContextCriticalThreshold: 0.95,
		ServerPort:               8420,
		NATSPort:                 8421,
		LogLevel:                 "info",
	}
}

// WithDataDir returns a default Config rooted at the given data directory.
func WithDataDir(dataDir string) *Config {
	c := Default()
	c.DataDir = dataDir
	return c
}

// Load reads a YAML config file, filling in defaults for omitted fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("invalid embedding_dimensions: %d", c.EmbeddingDimensions)
	}
	if c.MaxRetrievalResults <= 0 {
		return fmt.Errorf("invalid max_retrieval_results: %d", c.MaxRetrievalResults)
	}
	if c.MinSimilarityScore < 0 || c.MinSimilarityScore > 1 {
		return fmt.Errorf("min_similarity_score must be in [0,1], got %f", c.MinSimilarityScore)
	}
	if c.ContextWarningThreshold < 0 || c.ContextWarningThreshold > 1 {
		return fmt.Errorf("context_warning_threshold must be in [0,1], got %f", c.ContextWarningThreshold)
	}
	if c.ContextCriticalThreshold < 0 || c.ContextCriticalThreshold > 1 {
		return fmt.Errorf("context_critical_threshold must be in [0,1], got %f", c.ContextCriticalThreshold)
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid server_port: %d", c.ServerPort)
	}
	return nil
}

// SQLitePath returns the path to the MetaStore database.
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "metadata.db")
}

// VectorDBPath returns the path to the VectorIndex database.
func (c *Config) VectorDBPath() string {
	return filepath.Join(c.DataDir, "vectors.db")
}

// ConversationsDir returns the root of the AppendLog tree.
func (c *Config) ConversationsDir() string {
	return filepath.Join(c.DataDir, "conversations")
}

// ConversationLogPath returns the path to one topic's JSONL log.
func (c *Config) ConversationLogPath(agentID, topicID string) string {
	return filepath.Join(c.ConversationsDir(), agentID, topicID+".jsonl")
}

// EnsureDirs creates every directory the memory service needs up front.
func (c *Config) EnsureDirs() error {
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return err
	}
	if err := os.MkdirAll(c.ConversationsDir(), 0o755); err != nil {
		return err
	}
	return nil
}
