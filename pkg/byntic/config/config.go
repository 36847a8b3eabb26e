// Package config loads codec settings from YAML or TOML files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/byntic/byntic-go/pkg/byntic/compress"
)

// DefaultMaxListLen bounds list counts read from untrusted payloads.
const DefaultMaxListLen = 1 << 24

// Config represents the codec configuration
type Config struct {
	Compression Compression `yaml:"compression" toml:"compression"`
	Decode      Decode      `yaml:"decode" toml:"decode"`
	Logging     Logging     `yaml:"logging" toml:"logging"`
}

// Compression selects the whole-payload transform
type Compression struct {
	// Algorithm is one of none, zstd, snappy, brotli, gzip or zlib.
	Algorithm string `yaml:"algorithm" toml:"algorithm"`
	Level     int    `yaml:"level" toml:"level"`
}

// Decode contains decoding limits and zip policy
type Decode struct {
	MaxListLen int `yaml:"max_list_len" toml:"max_list_len"`

	// HeuristicZip zips any node whose children are all lists instead of
	// only the lists of records declared by the schema.
	HeuristicZip bool `yaml:"heuristic_zip" toml:"heuristic_zip"`
	ZipSingleKey bool `yaml:"zip_single_key" toml:"zip_single_key"`

	AllowTrailingBytes bool `yaml:"allow_trailing_bytes" toml:"allow_trailing_bytes"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Compression: Compression{Algorithm: compress.NameNone},
		Decode:      Decode{MaxListLen: DefaultMaxListLen},
		Logging:     Logging{Level: "info", Format: "text"},
	}
}

// LoadConfig reads a .yaml, .yml or .toml file over the defaults and
// validates the result.
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	switch ext := strings.ToLower(filepath.Ext(configPath)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	case ".toml":
		err = toml.Unmarshal(data, config)
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig writes the configuration as YAML or TOML depending on the
// extension of configPath.
func SaveConfig(config *Config, configPath string) error {
	var (
		data []byte
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(configPath)); ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(config)
	case ".toml":
		var sb strings.Builder
		err = toml.NewEncoder(&sb).Encode(config)
		data = []byte(sb.String())
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks that every setting can be applied.
func (c *Config) Validate() error {
	if c.Decode.MaxListLen <= 0 {
		return fmt.Errorf("invalid config: decode.max_list_len must be positive, got %d", c.Decode.MaxListLen)
	}
	if err := compress.Check(c.Compression.Algorithm, c.Compression.Level); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid config: unknown logging format %q", c.Logging.Format)
	}
	return nil
}

// Transform builds the configured compression transform.
func (c *Config) Transform() (compress.Transform, error) {
	return compress.ByName(c.Compression.Algorithm, c.Compression.Level)
}

// NewLogger returns a logger honoring the logging section.
func (c *Config) NewLogger() *logrus.Logger {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(c.Logging.Level); err == nil {
		log.SetLevel(lvl)
	}
	if c.Logging.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log
}
