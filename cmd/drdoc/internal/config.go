package internal

import (
	"os"
	"path/filepath"

	"github.com/drdoc/drdoc/internal/config"
)

// LoadConfig reads the YAML config from the given path, or the default
// location when the path is empty.
func LoadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

// DefaultConfigPath returns ~/.drdoc/config/drdoc.yaml.
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".drdoc", "config", "drdoc.yaml"), nil
}
