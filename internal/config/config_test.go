package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Expected error for explicit missing config file")
	}

	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Model.MaxAttempts != 5 {
		t.Fatalf("MaxAttempts = %d, want 5", cfg.Model.MaxAttempts)
	}
	if cfg.Model.AutoDownload {
		t.Fatal("AutoDownload should default to false")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
model:
  name: test-model
  url: https://example.com/model.task
  max_attempts: 3
engine:
  mock: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Model.Name != "test-model" {
		t.Fatalf("Model name = %q", cfg.Model.Name)
	}
	if cfg.Model.MaxAttempts != 3 {
		t.Fatalf("MaxAttempts = %d, want 3", cfg.Model.MaxAttempts)
	}
	if !cfg.Engine.Mock {
		t.Fatal("Engine mock should be enabled")
	}
	// Unset keys keep defaults.
	if cfg.Database.Path != "./data/pocketsage.db" {
		t.Fatalf("Database path = %q", cfg.Database.Path)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("POCKETSAGE_SERVER_PORT", "7070")
	t.Setenv("POCKETSAGE_MODEL_AUTH_TOKEN", "env-token")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("Port = %d, want 7070 from environment", cfg.Server.Port)
	}
	if cfg.Model.AuthToken != "env-token" {
		t.Fatalf("AuthToken = %q, want env-token", cfg.Model.AuthToken)
	}
}

func TestAddress(t *testing.T) {
	sc := ServerConfig{Host: "127.0.0.1", Port: 8080}
	if got := sc.Address(); got != "127.0.0.1:8080" {
		t.Fatalf("Address = %q", got)
	}
}
