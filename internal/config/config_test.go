package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dvloznov/finance-assistant/internal/embedding"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Embedder.Model != embedding.DefaultEmbeddingModel {
		t.Errorf("embedder model = %q", cfg.Embedder.Model)
	}
	if cfg.VectorStore.Type != "memory" {
		t.Errorf("vector store type = %q", cfg.VectorStore.Type)
	}
	if cfg.Jobs.Workers != 5 {
		t.Errorf("workers = %d", cfg.Jobs.Workers)
	}
}

func TestLoadOverridesAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  port: 9090
bigquery:
  project_id: demo-project
vector_store:
  type: qdrant
  qdrant:
    url: http://localhost:6334
answer:
  history_window: 10
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.BigQuery.ProjectID != "demo-project" {
		t.Errorf("project = %q", cfg.BigQuery.ProjectID)
	}
	if cfg.BigQuery.Dataset != "finance" {
		t.Errorf("dataset = %q", cfg.BigQuery.Dataset)
	}
	if cfg.VectorStore.Qdrant == nil || cfg.VectorStore.Qdrant.Collection != "finance_chunks" {
		t.Errorf("qdrant = %+v", cfg.VectorStore.Qdrant)
	}
	if cfg.Answer.HistoryWindow != 10 {
		t.Errorf("history window = %d", cfg.Answer.HistoryWindow)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected a parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "defaults with project",
			mutate: func(c *Config) { c.BigQuery.ProjectID = "p" },
		},
		{
			name:    "missing project",
			mutate:  func(c *Config) {},
			wantErr: true,
		},
		{
			name: "unknown store type",
			mutate: func(c *Config) {
				c.BigQuery.ProjectID = "p"
				c.VectorStore.Type = "redis"
			},
			wantErr: true,
		},
		{
			name: "qdrant without url",
			mutate: func(c *Config) {
				c.BigQuery.ProjectID = "p"
				c.VectorStore.Type = "qdrant"
			},
			wantErr: true,
		},
		{
			name: "qdrant with url",
			mutate: func(c *Config) {
				c.BigQuery.ProjectID = "p"
				c.VectorStore.Type = "qdrant"
				c.VectorStore.Qdrant = &QdrantConfig{URL: "http://localhost:6334"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			applyDefaults(cfg)
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAPIKeyResolution(t *testing.T) {
	t.Setenv("TEST_GEMINI_KEY", "secret")

	e := EmbedderConfig{APIKeyEnv: "TEST_GEMINI_KEY"}
	if got := e.GeminiAPIKey(); got != "secret" {
		t.Errorf("embedder key = %q", got)
	}

	q := QdrantConfig{}
	if got := q.APIKey(); got != "" {
		t.Errorf("qdrant key without env = %q", got)
	}
}
