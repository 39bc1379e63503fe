package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing test file %s: %v", path, err)
	}
}

func TestLoadConfigFileMissingFileReturnsNil(t *testing.T) {
	cfg, err := LoadConfigFile(filepath.Join(t.TempDir(), "does-not-exist.yml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != nil {
		t.Fatal("expected a nil FileConfig for a missing file")
	}
}

func TestLoadConfigFileMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	writeFile(t, path, "bind_host: [unterminated\n")

	if _, err := LoadConfigFile(path); err == nil {
		t.Fatal("expected an error for malformed YAML")
	}
}

func TestLoadConfigFilePopulatesPointers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	writeFile(t, path, `
bind_host: 0.0.0.0
port: 9000
stateless: true
max_sessions: 50
host_policy: custom
allowed_hosts:
  - api.internal
allowed_origins:
  - https://dashboard.internal
log_level: debug
strict_mode: true
`)

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected a non-nil FileConfig")
	}
	if cfg.BindHost == nil || *cfg.BindHost != "0.0.0.0" {
		t.Errorf("BindHost = %v", cfg.BindHost)
	}
	if cfg.Port == nil || *cfg.Port != 9000 {
		t.Errorf("Port = %v", cfg.Port)
	}
	if cfg.Stateless == nil || !*cfg.Stateless {
		t.Errorf("Stateless = %v", cfg.Stateless)
	}
	if cfg.MaxSessions == nil || *cfg.MaxSessions != 50 {
		t.Errorf("MaxSessions = %v", cfg.MaxSessions)
	}
	if cfg.HostPolicy == nil || *cfg.HostPolicy != "custom" {
		t.Errorf("HostPolicy = %v", cfg.HostPolicy)
	}
	if len(cfg.AllowedHosts) != 1 || cfg.AllowedHosts[0] != "api.internal" {
		t.Errorf("AllowedHosts = %v", cfg.AllowedHosts)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "https://dashboard.internal" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.LogLevel == nil || *cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
	if cfg.StrictMode == nil || !*cfg.StrictMode {
		t.Errorf("StrictMode = %v", cfg.StrictMode)
	}

	// Keys absent from the file must stay nil, not zero-valued, so callers
	// can distinguish "not set" from "set to false/0".
	if cfg.Debug != nil {
		t.Errorf("Debug = %v, want nil (absent from file)", cfg.Debug)
	}
	if cfg.MetricsEnabled != nil {
		t.Errorf("MetricsEnabled = %v, want nil (absent from file)", cfg.MetricsEnabled)
	}
}

func TestLoadConfigFileEmptyFileIsValidAndAllNil(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	writeFile(t, path, "")

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected a non-nil, all-zero-value FileConfig for an empty file")
	}
	if cfg.BindHost != nil || cfg.Port != nil || cfg.HostPolicy != nil {
		t.Error("expected every pointer field to be nil for an empty file")
	}
}
