// Package config loads and saves the YAML configuration file. Flags override
// file values; file values override defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/rumor-ml/commons.systems/stmtparse/internal/dedup"
)

// Extraction holds the tunables of the table extraction stage.
type Extraction struct {
	// AccuracyThreshold is the minimum table accuracy score (0-100) a
	// detected table must reach to be used. Tables at or below it are
	// discarded and the document falls back to text-mode extraction when
	// nothing usable remains.
	AccuracyThreshold float64 `yaml:"accuracy_threshold"`
	// AssumedYear completes short statement dates like "Apr 16" that carry
	// no year of their own. Zero means the current year.
	AssumedYear int `yaml:"assumed_year"`
}

// Learning holds the category-correction store settings.
type Learning struct {
	// Database is the SQLite file path. Empty disables the store.
	Database string `yaml:"database"`
}

// Config is the full on-disk configuration.
type Config struct {
	Dedup      dedup.Config `yaml:"dedup"`
	Extraction Extraction   `yaml:"extraction"`
	Learning   Learning     `yaml:"learning"`
	LogLevel   string       `yaml:"log_level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Dedup: dedup.DefaultConfig(),
		Extraction: Extraction{
			AccuracyThreshold: 50,
		},
		LogLevel: "info",
	}
}

// Load reads a config file and overlays it on the defaults, so a partial
// file only overrides the fields it names.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %q (check YAML syntax and field names): %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("invalid config in %q: %w", path, err)
	}

	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func Save(cfg Config, path string) error {
	if err := cfg.validate(); err != nil {
		return fmt.Errorf("refusing to save invalid config: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %q: %w", path, err)
	}

	return nil
}

func (c Config) validate() error {
	if c.Dedup.Tolerance < 0 {
		return fmt.Errorf("dedup.tolerance cannot be negative, got %f", c.Dedup.Tolerance)
	}
	if c.Dedup.TokenOverlapRatio < 0 || c.Dedup.TokenOverlapRatio > 1 {
		return fmt.Errorf("dedup.token_overlap_ratio must be in [0,1], got %f", c.Dedup.TokenOverlapRatio)
	}
	if c.Dedup.MinContainmentLen < 0 {
		return fmt.Errorf("dedup.min_containment_len cannot be negative, got %d", c.Dedup.MinContainmentLen)
	}
	if c.Dedup.MinTokenLen < 0 {
		return fmt.Errorf("dedup.min_token_len cannot be negative, got %d", c.Dedup.MinTokenLen)
	}
	if c.Extraction.AccuracyThreshold < 0 || c.Extraction.AccuracyThreshold > 100 {
		return fmt.Errorf("extraction.accuracy_threshold must be in [0,100], got %f", c.Extraction.AccuracyThreshold)
	}
	if c.Extraction.AssumedYear != 0 && (c.Extraction.AssumedYear < 1900 || c.Extraction.AssumedYear > 2200) {
		return fmt.Errorf("extraction.assumed_year %d is out of range", c.Extraction.AssumedYear)
	}
	return nil
}
