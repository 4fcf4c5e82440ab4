package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dvloznov/finance-assistant/internal/answer"
	"github.com/dvloznov/finance-assistant/internal/assembler"
	"github.com/dvloznov/finance-assistant/internal/conversation"
	"github.com/dvloznov/finance-assistant/internal/embedding"
	"github.com/dvloznov/finance-assistant/internal/indexer"
)

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port         int    `yaml:"port"`
	AllowOrigins string `yaml:"allow_origins"`
}

// BigQueryConfig points at the transactions dataset.
type BigQueryConfig struct {
	ProjectID string `yaml:"project_id"`
	Dataset   string `yaml:"dataset"`
}

// EmbedderConfig configures the Gemini embedder. The API key comes from the
// environment variable named by APIKeyEnv, never from the file itself.
type EmbedderConfig struct {
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// VectorStoreConfig selects the vector index implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"` // "memory" or "qdrant"
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// AnswerConfig configures answer generation.
type AnswerConfig struct {
	Model         string `yaml:"model"`
	MaxTokens     int    `yaml:"max_tokens"`
	TokenBudget   int    `yaml:"token_budget"`
	HistoryWindow int    `yaml:"history_window"`
	APIKeyEnv     string `yaml:"api_key_env"`
}

// IndexerConfig configures document chunking.
type IndexerConfig struct {
	WindowTokens  int `yaml:"window_tokens"`
	OverlapTokens int `yaml:"overlap_tokens"`
}

// JobsConfig configures the in-memory indexing queue.
type JobsConfig struct {
	BufferSize int `yaml:"buffer_size"`
	Workers    int `yaml:"workers"`
}

// ConversationConfig bounds per-session history.
type ConversationConfig struct {
	MaxTurns int `yaml:"max_turns"`
}

// Config is the root application configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	BigQuery     BigQueryConfig     `yaml:"bigquery"`
	Embedder     EmbedderConfig     `yaml:"embedder"`
	VectorStore  VectorStoreConfig  `yaml:"vector_store"`
	Answer       AnswerConfig       `yaml:"answer"`
	Indexer      IndexerConfig      `yaml:"indexer"`
	Jobs         JobsConfig         `yaml:"jobs"`
	Conversation ConversationConfig `yaml:"conversation"`
}

// Load reads a config file. A missing file is not an error: defaults apply
// and secrets still come from the environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := &Config{}
			applyDefaults(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("Load: reading %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("Load: parsing %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// GeminiAPIKey resolves the embedder's API key from the environment.
func (c *EmbedderConfig) GeminiAPIKey() string {
	return os.Getenv(c.APIKeyEnv)
}

// GeminiAPIKey resolves the answer model's API key from the environment.
func (c *AnswerConfig) GeminiAPIKey() string {
	return os.Getenv(c.APIKeyEnv)
}

// APIKey resolves the Qdrant API key from the environment. Empty means no
// authentication, which is the default for local Qdrant.
func (c *QdrantConfig) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

// Validate checks the fields that have no workable default.
func (c *Config) Validate() error {
	if c.BigQuery.ProjectID == "" {
		return fmt.Errorf("Validate: bigquery.project_id is required")
	}
	if c.VectorStore.Type != "memory" && c.VectorStore.Type != "qdrant" {
		return fmt.Errorf("Validate: unknown vector_store.type %q", c.VectorStore.Type)
	}
	if c.VectorStore.Type == "qdrant" && (c.VectorStore.Qdrant == nil || c.VectorStore.Qdrant.URL == "") {
		return fmt.Errorf("Validate: vector_store.qdrant.url is required for the qdrant store")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.AllowOrigins == "" {
		cfg.Server.AllowOrigins = "*"
	}
	if cfg.BigQuery.Dataset == "" {
		cfg.BigQuery.Dataset = "finance"
	}
	if cfg.Embedder.Model == "" {
		cfg.Embedder.Model = embedding.DefaultEmbeddingModel
	}
	if cfg.Embedder.Dimension == 0 {
		cfg.Embedder.Dimension = embedding.DefaultDimension
	}
	if cfg.Embedder.APIKeyEnv == "" {
		cfg.Embedder.APIKeyEnv = "GEMINI_API_KEY"
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if q := cfg.VectorStore.Qdrant; q != nil {
		if q.Collection == "" {
			q.Collection = "finance_chunks"
		}
		if q.TimeoutSecs == 0 {
			q.TimeoutSecs = 10
		}
	}
	if cfg.Answer.Model == "" {
		cfg.Answer.Model = answer.DefaultModelName
	}
	if cfg.Answer.MaxTokens == 0 {
		cfg.Answer.MaxTokens = answer.DefaultMaxTokens
	}
	if cfg.Answer.TokenBudget == 0 {
		cfg.Answer.TokenBudget = assembler.DefaultTokenBudget
	}
	if cfg.Answer.HistoryWindow == 0 {
		cfg.Answer.HistoryWindow = answer.DefaultHistoryWindow
	}
	if cfg.Answer.APIKeyEnv == "" {
		cfg.Answer.APIKeyEnv = "GEMINI_API_KEY"
	}
	if cfg.Indexer.WindowTokens == 0 {
		cfg.Indexer.WindowTokens = indexer.DefaultWindowTokens
	}
	if cfg.Indexer.OverlapTokens == 0 {
		cfg.Indexer.OverlapTokens = indexer.DefaultOverlapTokens
	}
	if cfg.Jobs.BufferSize == 0 {
		cfg.Jobs.BufferSize = 100
	}
	if cfg.Jobs.Workers == 0 {
		cfg.Jobs.Workers = 5
	}
	if cfg.Conversation.MaxTurns == 0 {
		cfg.Conversation.MaxTurns = conversation.DefaultMaxTurns
	}
}
