package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vladfi1/SlippiDump/pkg/replay"
)

// writeConfigFile marshals the given document to YAML in a temp dir
// and returns its path.
func writeConfigFile(t *testing.T, doc map[string]any) string {
	t.Helper()

	data, err := yaml.Marshal(doc)
	if err != nil {
		t.Fatalf("Failed to marshal config: %v", err)
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfigFile(t, map[string]any{
		"logging": map[string]any{"level": "debug"},
		"server": map[string]any{
			"listen_addr":      ":9090",
			"shutdown_timeout": "45s",
		},
		"blob":     map[string]any{"type": "memory"},
		"metadata": map[string]any{"type": "memory"},
		"databases": []map[string]any{
			{
				"name":      "ranked",
				"max_files": 500,
			},
		},
		"gc": map[string]any{
			"enabled":  true,
			"interval": "1h",
		},
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected normalized level DEBUG, got %s", cfg.Logging.Level)
	}
	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("Expected listen addr :9090, got %s", cfg.Server.ListenAddr)
	}
	if cfg.Server.ShutdownTimeout != 45*time.Second {
		t.Errorf("Expected shutdown timeout 45s, got %s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Blob.Type != "memory" {
		t.Errorf("Expected blob store memory, got %s", cfg.Blob.Type)
	}
	if cfg.GC.Interval != time.Hour {
		t.Errorf("Expected GC interval 1h, got %s", cfg.GC.Interval)
	}

	if len(cfg.Databases) != 1 {
		t.Fatalf("Expected 1 database, got %d", len(cfg.Databases))
	}
	params := cfg.Databases[0]
	if params.Name != "ranked" {
		t.Errorf("Expected database ranked, got %s", params.Name)
	}
	if params.MaxFiles != 500 {
		t.Errorf("Expected max_files 500, got %d", params.MaxFiles)
	}
	// Unset limits are backfilled.
	if params.MaxSizePerFile != replay.DefaultMaxSizePerFile {
		t.Errorf("Expected backfilled max size, got %d", params.MaxSizePerFile)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("Expected default listen addr, got %s", cfg.Server.ListenAddr)
	}
}

func TestLoad_InvalidFileRejected(t *testing.T) {
	path := writeConfigFile(t, map[string]any{
		"blob": map[string]any{"type": "tape"},
	})

	if _, err := Load(path); err == nil {
		t.Error("Expected validation error for unknown blob store type")
	}
}
