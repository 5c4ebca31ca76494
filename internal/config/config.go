// Package config provides configuration loading and structs for the Kotae server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	Model     ModelConfig     `yaml:"model"`
	Retry     RetryConfig     `yaml:"retry"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Behavior  BehaviorConfig  `yaml:"behavior"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the metadata database path.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// RedisConfig holds connection settings for the Redis/RediSearch instance
// backing the vector index, the embedding cache, and upload locks.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ModelConfig holds settings for the external embedding and chat provider
// (any OpenAI-compatible API).
type ModelConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	EmbeddingModel string `yaml:"embedding_model"`
	ChatModel      string `yaml:"chat_model"`
	Dimensions     int    `yaml:"dimensions"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	CacheTTLDays   int    `yaml:"cache_ttl_days"`
}

// RetryConfig holds backoff settings for provider calls.
type RetryConfig struct {
	MaxAttempts   int      `yaml:"max_attempts"`
	BaseBackoffMs int      `yaml:"base_backoff_ms"`
	JitterFactor  *float64 `yaml:"jitter_factor"`
}

// JitterFactorOrDefault returns the configured jitter factor; defaults to 0.1 when unset.
func (r *RetryConfig) JitterFactorOrDefault() float64 {
	if r.JitterFactor != nil {
		return *r.JitterFactor
	}
	return 0.1
}

// ChunkingConfig holds chunk extraction settings (sizes in characters).
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// RetrievalConfig holds search and evidence gate settings.
type RetrievalConfig struct {
	IndexName      string   `yaml:"index_name"`
	TopK           int      `yaml:"top_k"`
	ScoreThreshold *float64 `yaml:"score_threshold"`
	MinCitations   int      `yaml:"min_citations"`
}

// ScoreThresholdOrDefault returns the configured score threshold; defaults to 0.5 when unset.
func (r *RetrievalConfig) ScoreThresholdOrDefault() float64 {
	if r.ScoreThreshold != nil {
		return *r.ScoreThreshold
	}
	return 0.5
}

// IngestConfig holds ingestion limits and lock/vectorization settings.
type IngestConfig struct {
	MaxFileSizeMB      int `yaml:"max_file_size_mb"`
	LockWaitSeconds    int `yaml:"lock_wait_seconds"`
	LockLeaseSeconds   int `yaml:"lock_lease_seconds"`
	VectorizeBatchSize int `yaml:"vectorize_batch_size"`
}

// BehaviorConfig holds the async behavior recorder settings.
type BehaviorConfig struct {
	QueueSize int `yaml:"queue_size"`
}

// WatchConfig holds drop-directory ingestion settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
