// Package config provides the MCP runtime's YAML file configuration and its
// optional hot-reload watcher.
package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// DefaultConfigPath is the standard location for the runtime's config file.
const DefaultConfigPath = "/etc/mcp-runtime/config.yml"

// FileConfig is the YAML configuration file structure. Every field is a
// pointer so an absent key is distinguishable from an explicit zero value;
// values present in the file serve as a second default layer beneath CLI
// flags and environment variables, per the CLI/env > file > struct-default
// precedence the runtime's entry point applies.
type FileConfig struct {
	// Transport and listener settings
	Transport   *string `yaml:"transport,omitempty"` // "stdio" or "http"
	BindHost    *string `yaml:"bind_host,omitempty"`
	Port        *int    `yaml:"port,omitempty"`
	Path        *string `yaml:"path,omitempty"`
	Stateless   *bool   `yaml:"stateless,omitempty"`
	MaxSessions *int    `yaml:"max_sessions,omitempty"`
	MaxBodyMiB  *int    `yaml:"max_body_mib,omitempty"`

	// DNS-rebinding protection
	HostPolicy     *string  `yaml:"host_policy,omitempty"` // "none", "automatic", "custom"
	AllowedHosts   []string `yaml:"allowed_hosts,omitempty"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`

	// Logging
	LogLevel *string `yaml:"log_level,omitempty"`
	LogsDir  *string `yaml:"logs_dir,omitempty"`
	Debug    *bool   `yaml:"debug,omitempty"`

	// Protocol negotiation
	ProtocolVersion *string `yaml:"protocol_version,omitempty"`
	StrictMode      *bool   `yaml:"strict_mode,omitempty"`

	// Metrics
	MetricsEnabled *bool   `yaml:"metrics_enabled,omitempty"`
	MetricsPath    *string `yaml:"metrics_path,omitempty"`
}

// LoadConfigFile reads and parses a YAML config file. Returns nil without
// error if the file does not exist, so a missing config file is simply "no
// overrides" rather than a startup failure.
func LoadConfigFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is a trusted config file path, not user input
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return &cfg, nil
}
