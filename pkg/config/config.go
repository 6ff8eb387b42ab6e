// Package config loads and validates the SlippiDump server
// configuration from file, environment, and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vladfi1/SlippiDump/pkg/replay"
)

// Config represents the complete SlippiDump configuration.
//
// This structure captures all configurable aspects of the server:
//   - Logging configuration
//   - HTTP server settings
//   - Blob store selection and configuration (store-specific)
//   - Metadata store selection and configuration (store-specific)
//   - Preconfigured database quota parameters
//   - Garbage collection settings
//   - Metrics exposure
//
// Configuration sources (in order of precedence):
//  1. Environment variables (SLIPPIDUMP_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// Store Configuration Pattern:
// Each store implementation defines its own configuration shape. The
// Config struct carries type-specific sections as raw maps (e.g.
// blob.filesystem, blob.s3) and only the section matching the selected
// type is decoded.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains HTTP server settings
	Server ServerConfig `mapstructure:"server"`

	// Blob specifies the blob store type and type-specific configuration
	Blob BlobConfig `mapstructure:"blob"`

	// Metadata specifies the metadata store type and type-specific configuration
	Metadata MetadataConfig `mapstructure:"metadata"`

	// Databases lists quota parameters to seed at startup. Databases
	// not listed here are created on first upload with defaults.
	Databases []replay.Params `mapstructure:"databases" validate:"dive"`

	// GC contains garbage collection settings
	GC GCConfig `mapstructure:"gc"`

	// Metrics controls Prometheus metrics exposure
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// ListenAddr is the address the upload API listens on
	ListenAddr string `mapstructure:"listen_addr" validate:"required"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// MaxUploadBytes caps the size of a single request body. Uploads
	// above this are refused before reaching the admission pipeline.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes" validate:"gt=0"`
}

// BlobConfig specifies blob store configuration.
//
// The Type field determines which store implementation is used. Only
// the corresponding type-specific section is decoded.
type BlobConfig struct {
	// Type specifies which blob store implementation to use
	// Valid values: filesystem, memory, s3
	Type string `mapstructure:"type" validate:"required,oneof=filesystem memory s3"`

	// Filesystem contains filesystem-specific configuration
	Filesystem map[string]any `mapstructure:"filesystem"`

	// Memory contains memory-specific configuration
	Memory map[string]any `mapstructure:"memory"`

	// S3 contains S3-specific configuration
	S3 map[string]any `mapstructure:"s3"`
}

// MetadataConfig specifies metadata store configuration.
type MetadataConfig struct {
	// Type specifies which metadata store implementation to use
	// Valid values: memory, badger
	Type string `mapstructure:"type" validate:"required,oneof=memory badger"`

	// Memory contains memory-specific configuration
	Memory map[string]any `mapstructure:"memory"`

	// Badger contains BadgerDB-specific configuration
	Badger map[string]any `mapstructure:"badger"`
}

// GCConfig controls the orphan-blob collector.
type GCConfig struct {
	// Enabled turns periodic collection on
	Enabled bool `mapstructure:"enabled"`

	// Interval is how often to run collection
	Interval time.Duration `mapstructure:"interval"`

	// BatchSize is how many orphaned blobs to delete per batch
	BatchSize int `mapstructure:"batch_size"`

	// DryRun logs what would be deleted without deleting
	DryRun bool `mapstructure:"dry_run"`
}

// MetricsConfig controls Prometheus metrics exposure.
type MetricsConfig struct {
	// Enabled turns metrics collection on
	Enabled bool `mapstructure:"enabled"`

	// Path is the HTTP path the metrics handler is mounted on
	Path string `mapstructure:"path"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (SLIPPIDUMP_*)
//  2. Configuration file
//  3. Default values
//
// An empty configPath uses the default location under the user config
// directory; a missing config file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config
// file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the SLIPPIDUMP_ prefix with
	// underscores, e.g. SLIPPIDUMP_LOGGING_LEVEL=DEBUG.
	v.SetEnvPrefix("SLIPPIDUMP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is acceptable - use defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path. Uses
// XDG_CONFIG_HOME if set, otherwise ~/.config, or the current
// directory as a last resort.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "slippidump")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "slippidump")
}
