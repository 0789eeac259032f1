package cli

import (
	"bytes"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Config is the YAML file named by --config. Command-line flags override it.
type Config struct {
	Database           string        `yaml:"db"`
	ReadOnly           bool          `yaml:"readonly"`
	BusyTimeout        time.Duration `yaml:"busy_timeout"`
	Pragmas            []string      `yaml:"pragmas"`
	StatementCacheSize *int          `yaml:"statement_cache_size"`
	BlobsAsBase64      bool          `yaml:"blobs_as_base64"`
}

// LoadConfig reads a config file. Unknown keys are rejected.
func LoadConfig(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.BusyTimeout < 0 {
		return nil, fmt.Errorf("invalid config: busy_timeout must not be negative")
	}
	if cfg.StatementCacheSize != nil && *cfg.StatementCacheSize < 0 {
		return nil, fmt.Errorf("invalid config: statement_cache_size must not be negative")
	}
	return &cfg, nil
}
