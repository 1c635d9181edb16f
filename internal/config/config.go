package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Completion CompletionConfig `yaml:"completion"`
	Database   DatabaseConfig   `yaml:"database"`
	Ingest     IngestConfig     `yaml:"ingest,omitempty"`
	Retrieval  RetrievalConfig  `yaml:"retrieval,omitempty"`
	Server     ServerConfig     `yaml:"server,omitempty"`
}

// EmbeddingConfig holds embedding service configuration
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // "openai" | "volcengine"

	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint,omitempty"`
	Model    string `yaml:"model"`

	Dimensions int `yaml:"dimensions"` // fixed vector dimension
	BatchSize  int `yaml:"batch_size"` // texts per embedding request

	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`
	MaxRetries     int `yaml:"max_retries,omitempty"`
}

// CompletionConfig holds the text-completion service configuration used
// for final answer phrasing.
type CompletionConfig struct {
	Provider string `yaml:"provider,omitempty"` // "openai" | "volcengine"
	APIKey   string `yaml:"api_key,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
	Model    string `yaml:"model,omitempty"`

	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`
	MaxRetries     int `yaml:"max_retries,omitempty"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	// Path to SQLite database file
	// If empty, uses ~/.drdoc/data/drdoc.db
	Path string `yaml:"path,omitempty"`

	// TextIndexDir is the bleve keyword index directory
	// If empty, uses ~/.drdoc/data/textindex
	TextIndexDir string `yaml:"text_index_dir,omitempty"`
}

// IngestConfig holds ingestion-specific configuration
type IngestConfig struct {
	MaxWorkers int      `yaml:"max_workers,omitempty"` // parallel file workers
	Include    []string `yaml:"include,omitempty"`     // glob patterns, default **/*.md
	Exclude    []string `yaml:"exclude,omitempty"`     // glob patterns
	ChunkChars int      `yaml:"chunk_chars,omitempty"` // target chunk size in chars
	Overlap    int      `yaml:"overlap,omitempty"`     // window overlap in chars
}

// RetrievalConfig holds query-time retrieval configuration
type RetrievalConfig struct {
	TopK int `yaml:"top_k,omitempty"` // vector results per question

	// MinSimilarity drops vector hits below this cosine similarity.
	MinSimilarity float32 `yaml:"min_similarity,omitempty"`

	// LowConfidence marks vector evidence as weak below this similarity;
	// an answer built only from weak vector hits reports low confidence.
	LowConfidence float32 `yaml:"low_confidence,omitempty"`

	MaxEvidence int `yaml:"max_evidence,omitempty"` // evidence items passed to the composer
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// Load loads configuration from the default config file
// Default location: ~/.drdoc/config/drdoc.yaml
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".drdoc", "config", "drdoc.yaml")
	return LoadFromFile(configPath)
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			homeDir, _ := os.UserHomeDir()
			defaultPath := filepath.Join(homeDir, ".drdoc", "config", "drdoc.yaml")
			return nil, &ConfigNotFoundError{
				RequestedPath: path,
				DefaultPath:   defaultPath,
			}
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// ConfigNotFoundError is returned when config file is not found
type ConfigNotFoundError struct {
	RequestedPath string
	DefaultPath   string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("config file not found at: %s\n\nDefault location: %s\n\nYou can:\n"+
		"  1. Create the config file at the default location\n"+
		"  2. Specify a custom path with -config flag\n"+
		"  3. Run 'drdoc init' to create a config template",
		e.RequestedPath, e.DefaultPath)
}

// IsConfigNotFound checks if error is config not found
func IsConfigNotFound(err error) bool {
	_, ok := err.(*ConfigNotFoundError)
	return ok
}

// expandPath expands ~ and $HOME to the user's home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "$HOME/") || path == "$HOME" {
		homeDir := os.Getenv("HOME")
		if homeDir == "" {
			var err error
			homeDir, err = os.UserHomeDir()
			if err != nil {
				return path
			}
		}
		if path == "$HOME" {
			return homeDir
		}
		return filepath.Join(homeDir, path[6:])
	}

	if strings.HasPrefix(path, "~/") || path == "~" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return homeDir
		}
		return filepath.Join(homeDir, path[2:])
	}

	return path
}

// ApplyDefaults sets default values for missing configuration
func (c *Config) ApplyDefaults() {
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions == 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Embedding.BatchSize == 0 {
		c.Embedding.BatchSize = 32
	}
	if c.Embedding.TimeoutSeconds == 0 {
		c.Embedding.TimeoutSeconds = 30
	}
	if c.Embedding.MaxRetries == 0 {
		c.Embedding.MaxRetries = 3
	}

	if c.Completion.Provider == "" {
		c.Completion.Provider = c.Embedding.Provider
	}
	if c.Completion.APIKey == "" {
		c.Completion.APIKey = c.Embedding.APIKey
	}
	if c.Completion.Model == "" {
		c.Completion.Model = "gpt-4o-mini"
	}
	if c.Completion.TimeoutSeconds == 0 {
		c.Completion.TimeoutSeconds = 60
	}
	if c.Completion.MaxRetries == 0 {
		c.Completion.MaxRetries = 3
	}

	if c.Database.Path != "" {
		c.Database.Path = expandPath(c.Database.Path)
	}
	if c.Database.TextIndexDir != "" {
		c.Database.TextIndexDir = expandPath(c.Database.TextIndexDir)
	}

	if c.Ingest.MaxWorkers == 0 {
		c.Ingest.MaxWorkers = 4
	}
	if len(c.Ingest.Include) == 0 {
		c.Ingest.Include = []string{"**/*.md", "**/*.markdown", "**/*.txt"}
	}
	if c.Ingest.ChunkChars == 0 {
		c.Ingest.ChunkChars = 1000
	}
	if c.Ingest.Overlap == 0 {
		c.Ingest.Overlap = 120
	}

	if c.Retrieval.TopK == 0 {
		c.Retrieval.TopK = 5
	}
	if c.Retrieval.MinSimilarity == 0 {
		c.Retrieval.MinSimilarity = 0.25
	}
	if c.Retrieval.LowConfidence == 0 {
		c.Retrieval.LowConfidence = 0.45
	}
	if c.Retrieval.MaxEvidence == 0 {
		c.Retrieval.MaxEvidence = 10
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case "openai", "volcengine":
		if c.Embedding.APIKey == "" {
			return fmt.Errorf("%s provider requires embedding.api_key", c.Embedding.Provider)
		}
	default:
		return fmt.Errorf("unsupported embedding provider: %s", c.Embedding.Provider)
	}

	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got: %d", c.Embedding.Dimensions)
	}

	if c.Embedding.BatchSize <= 0 || c.Embedding.BatchSize > 256 {
		return fmt.Errorf("embedding.batch_size must be between 1 and 256, got: %d", c.Embedding.BatchSize)
	}

	if c.Retrieval.MinSimilarity < 0 || c.Retrieval.MinSimilarity > 1 {
		return fmt.Errorf("retrieval.min_similarity must be in [0,1], got: %v", c.Retrieval.MinSimilarity)
	}
	if c.Retrieval.LowConfidence < c.Retrieval.MinSimilarity {
		return fmt.Errorf("retrieval.low_confidence must be >= min_similarity")
	}

	if c.Ingest.MaxWorkers <= 0 {
		return fmt.Errorf("ingest.max_workers must be positive, got: %d", c.Ingest.MaxWorkers)
	}

	return nil
}

// DataDir returns the base data directory (~/.drdoc/data).
func DataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".drdoc", "data"), nil
}

// ResolveDatabasePath returns the configured database path or the default.
func (c *Config) ResolveDatabasePath() (string, error) {
	if c.Database.Path != "" {
		return c.Database.Path, nil
	}
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "drdoc.db"), nil
}

// ResolveTextIndexDir returns the configured bleve index directory or the default.
func (c *Config) ResolveTextIndexDir() (string, error) {
	if c.Database.TextIndexDir != "" {
		return c.Database.TextIndexDir, nil
	}
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "textindex"), nil
}

const defaultConfigTemplate = `# Dr.Doc Configuration
#
# Copy and edit this file for your environment.
# Default location: $HOME/.drdoc/config/drdoc.yaml

embedding:
  # Provider: "openai" or "volcengine"
  provider: openai
  api_key: your-api-key
  model: text-embedding-3-small
  dimensions: 1536
  batch_size: 32

completion:
  # Defaults to the embedding provider and API key when omitted.
  model: gpt-4o-mini

# database:
#   path: ~/.drdoc/data/drdoc.db

# ingest:
#   max_workers: 4
#   include: ["**/*.md"]
#   exclude: ["**/node_modules/**"]

# retrieval:
#   top_k: 5
#   min_similarity: 0.25
#   low_confidence: 0.45
`

// WriteDefaultTemplate creates a default configuration file if it does not exist.
// It returns true if a file was created, false if it already existed.
func WriteDefaultTemplate(path string) (bool, error) {
	if path == "" {
		return false, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0644); err != nil {
		return false, fmt.Errorf("failed to write config template: %w", err)
	}

	return true, nil
}
