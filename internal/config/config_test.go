package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromFile_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "drdoc.yaml")

	content := `embedding:
  provider: openai
  api_key: test-key
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}

	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("default model = %q, want text-embedding-3-small", cfg.Embedding.Model)
	}
	if cfg.Embedding.Dimensions != 1536 {
		t.Errorf("default dimensions = %d, want 1536", cfg.Embedding.Dimensions)
	}
	if cfg.Retrieval.TopK != 5 {
		t.Errorf("default top_k = %d, want 5", cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.MinSimilarity != 0.25 {
		t.Errorf("default min_similarity = %v, want 0.25", cfg.Retrieval.MinSimilarity)
	}
	if cfg.Completion.APIKey != "test-key" {
		t.Errorf("completion api_key should inherit embedding api_key, got %q", cfg.Completion.APIKey)
	}
	if cfg.Ingest.MaxWorkers != 4 {
		t.Errorf("default max_workers = %d, want 4", cfg.Ingest.MaxWorkers)
	}
}

func TestLoadFromFile_NotFound(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config")
	}
	if !IsConfigNotFound(err) {
		t.Errorf("expected ConfigNotFoundError, got %T", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing api key",
			mutate:  func(c *Config) { c.Embedding.APIKey = "" },
			wantErr: true,
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Embedding.Provider = "cohere" },
			wantErr: true,
		},
		{
			name:    "similarity out of range",
			mutate:  func(c *Config) { c.Retrieval.MinSimilarity = 1.5 },
			wantErr: true,
		},
		{
			name:    "low confidence below min similarity",
			mutate:  func(c *Config) { c.Retrieval.LowConfidence = 0.1 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.Embedding.Provider = "openai"
			cfg.Embedding.APIKey = "key"
			cfg.ApplyDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWriteDefaultTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "drdoc.yaml")

	created, err := WriteDefaultTemplate(path)
	if err != nil {
		t.Fatalf("WriteDefaultTemplate() error: %v", err)
	}
	if !created {
		t.Error("expected template to be created")
	}

	// Second call should be a no-op.
	created, err = WriteDefaultTemplate(path)
	if err != nil {
		t.Fatalf("WriteDefaultTemplate() second call error: %v", err)
	}
	if created {
		t.Error("expected template to already exist")
	}
}
