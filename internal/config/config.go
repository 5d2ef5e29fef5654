// internal/config/config.go

// Package config loads engine settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// DefaultMaxFirings bounds a single Run so that a rule set which keeps
// re-deriving its own activations cannot spin forever.
const DefaultMaxFirings = 65535

// Config holds the runtime settings of an engine.
type Config struct {
	// HaltOnError stops Run and Step at the first failed action instead of
	// logging it and moving on.
	HaltOnError bool `yaml:"halt_on_error"`
	// MaxFirings caps the firings of one Run. Zero means unbounded.
	MaxFirings int    `yaml:"max_firings"`
	LogLevel   string `yaml:"log_level"`

	Metrics MetricsConfig `yaml:"metrics"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		MaxFirings: DefaultMaxFirings,
		LogLevel:   zerolog.InfoLevel.String(),
		Metrics: MetricsConfig{
			Namespace: "rex",
		},
	}
}

// Load reads and validates a YAML config file. Fields missing from the file
// keep their defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// fields are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings.
func (c Config) Validate() error {
	if c.MaxFirings < 0 {
		return fmt.Errorf("max_firings must not be negative, got %d", c.MaxFirings)
	}
	if c.LogLevel == "" {
		return errors.New("log_level must not be empty")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level '%s': %w", c.LogLevel, err)
	}
	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		return errors.New("metrics.namespace is required when metrics are enabled")
	}
	return nil
}

// Level returns the configured log level, falling back to info.
func (c Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
