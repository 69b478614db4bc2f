// Package config provides unified configuration for the RoboLake CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Config holds the configuration for a RoboLake invocation.
// Precedence is flags > environment > file > defaults.
type Config struct {
	// Flatten configuration
	Flatten FlattenConfig `json:"flatten" yaml:"flatten"`

	// Convert configuration
	Convert ConvertConfig `json:"convert" yaml:"convert"`

	// Storage configuration for artifact publication
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// FlattenConfig holds flattening policy knobs.
type FlattenConfig struct {
	// MaxArraySlots is the array slot bound: sequences up to this length
	// flatten to numbered columns, longer ones collapse to one json_text
	// column
	MaxArraySlots int `json:"max_array_slots" yaml:"max_array_slots"`
}

// ConvertConfig holds conversion pipeline configuration.
type ConvertConfig struct {
	// Format is the default output format: sqlite, csv, json
	Format string `json:"format" yaml:"format"`

	// Concurrency is the number of channels converted in parallel
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// StorageConfig holds artifact storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Prefix is the object key prefix for published artifacts
	Prefix string `json:"prefix" yaml:"prefix"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing (required for MinIO)
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Flatten: FlattenConfig{
			MaxArraySlots: 5,
		},
		Convert: ConvertConfig{
			Format:      "sqlite",
			Concurrency: 4,
		},
		Storage: StorageConfig{
			Type: "local",
		},
	}
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the ROBOLAKE_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("ROBOLAKE_MAX_ARRAY_SLOTS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Flatten.MaxArraySlots)
	}
	if v := os.Getenv("ROBOLAKE_FORMAT"); v != "" {
		cfg.Convert.Format = v
	}
	if v := os.Getenv("ROBOLAKE_CONCURRENCY"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Convert.Concurrency)
	}
	if v := os.Getenv("ROBOLAKE_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("ROBOLAKE_STORAGE_PREFIX"); v != "" {
		cfg.Storage.Prefix = v
	}
	if v := os.Getenv("ROBOLAKE_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("ROBOLAKE_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("ROBOLAKE_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Flatten.MaxArraySlots < 1 {
		return fmt.Errorf("flatten.max_array_slots must be at least 1, got %d", c.Flatten.MaxArraySlots)
	}

	switch c.Convert.Format {
	case "sqlite", "csv", "json":
	default:
		return fmt.Errorf("invalid format: %s (must be sqlite, csv, or json)", c.Convert.Format)
	}

	if c.Convert.Concurrency < 1 {
		return fmt.Errorf("convert.concurrency must be at least 1, got %d", c.Convert.Concurrency)
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}

	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	return nil
}
