package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for feedsearch.
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	Queue     QueueConfig     `yaml:"queue"`
	Search    SearchConfig    `yaml:"search"`
	Store     StoreConfig     `yaml:"store"`
	Feed      FeedConfig      `yaml:"feed"`
	Events    EventsConfig    `yaml:"events"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// EmbeddingConfig describes the remote embedding endpoint.
type EmbeddingConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Model         string        `yaml:"model"`
	Dimensions    int           `yaml:"dimensions"`
	APIKeyEnv     string        `yaml:"api_key_env"` // environment variable holding the credential
	MaxInputChars int           `yaml:"max_input_chars"`
	RequestDelay  time.Duration `yaml:"request_delay"`
	Timeout       time.Duration `yaml:"timeout"`
}

// QueueConfig holds embedding queue pacing.
type QueueConfig struct {
	BatchSize       int           `yaml:"batch_size"`
	InterBatchDelay time.Duration `yaml:"inter_batch_delay"`
}

// SearchConfig holds ranking defaults.
type SearchConfig struct {
	TopK           int           `yaml:"top_k"`
	SimilarTopK    int           `yaml:"similar_top_k"`
	SemanticWeight float64       `yaml:"semantic_weight"`
	QueryCacheSize int           `yaml:"query_cache_size"`
	QueryCacheTTL  time.Duration `yaml:"query_cache_ttl"`
	K1             float64       `yaml:"k1"`
	B              float64       `yaml:"b"`
	TitleBoost     float64       `yaml:"title_boost"`
}

// StoreConfig locates the vector database. Relative paths resolve against the working directory.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// FeedConfig selects feed export files.
type FeedConfig struct {
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// EventsConfig configures the NATS item event subscriber.
type EventsConfig struct {
	Enabled        bool   `yaml:"enabled"`
	NATSURL        string `yaml:"nats_url"`
	SubjectAdded   string `yaml:"subject_added"`
	SubjectDeleted string `yaml:"subject_deleted"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			BaseURL:       "https://api.openai.com/v1",
			Model:         "text-embedding-3-small",
			Dimensions:    1536,
			APIKeyEnv:     "OPENAI_API_KEY",
			MaxInputChars: 32000,
			RequestDelay:  20 * time.Millisecond,
			Timeout:       60 * time.Second,
		},
		Queue: QueueConfig{
			BatchSize:       10,
			InterBatchDelay: 100 * time.Millisecond,
		},
		Search: SearchConfig{
			TopK:           20,
			SimilarTopK:    10,
			SemanticWeight: 0.7,
			QueryCacheSize: 128,
			QueryCacheTTL:  10 * time.Minute,
			K1:             1.2,
			B:              0.75,
			TitleBoost:     0.5,
		},
		Store: StoreConfig{
			Path: filepath.Join(".feedsearch", "vectors.db"),
		},
		Feed: FeedConfig{
			Includes: []string{"**/*.json"},
			Excludes: []string{"**/.feedsearch/**", "**/node_modules/**", "**/.git/**"},
		},
		Events: EventsConfig{
			Enabled:        false,
			NATSURL:        "nats://127.0.0.1:4222",
			SubjectAdded:   "feed.items.added",
			SubjectDeleted: "feed.items.deleted",
		},
		Server: ServerConfig{
			Addr: ":8570",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir looks for feedsearch.yaml, then .feedsearch/config.yaml.
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "feedsearch.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".feedsearch", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Validate rejects settings the embedding pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model must be set")
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Queue.BatchSize <= 0 {
		return fmt.Errorf("queue.batch_size must be positive, got %d", c.Queue.BatchSize)
	}
	if c.Search.SemanticWeight < 0 || c.Search.SemanticWeight > 1 {
		return fmt.Errorf("search.semantic_weight must be within [0,1], got %g", c.Search.SemanticWeight)
	}
	return nil
}

// Credential reads the embedding credential from the configured environment variable.
func (c *Config) Credential() string {
	if c.Embedding.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Embedding.APIKeyEnv)
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// StorePath resolves the vector database path against dir.
func (c *Config) StorePath(dir string) string {
	if filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(dir, c.Store.Path)
}

// EnsureStoreDir creates the directory holding the vector database.
func (c *Config) EnsureStoreDir(dir string) error {
	return os.MkdirAll(filepath.Dir(c.StorePath(dir)), 0755)
}
