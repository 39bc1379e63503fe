// Package main is the entry point for the MCP runtime: a bidirectional
// JSON-RPC 2.0 engine implementing the Model Context Protocol, runnable
// over stdio (for local AI clients) or Streamable HTTP (for networked
// deployments).
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/ruaan-deysel/mcp-runtime/cmd"
	"github.com/ruaan-deysel/mcp-runtime/config"
	"github.com/ruaan-deysel/mcp-runtime/logger"
	"github.com/ruaan-deysel/mcp-runtime/mcp"
)

// Version is the application version, set at build time via ldflags.
var Version = "dev"

var cli struct {
	LogsDir  string `default:"/var/log" help:"directory to store logs"`
	LogLevel string `default:"info" help:"log level: debug, info, warning, error"`
	Debug    bool   `default:"false" help:"enable debug mode with stdout logging"`

	ConfigFile string `default:"" env:"MCP_RUNTIME_CONFIG" help:"path to a YAML config file (defaults to the standard location if present)"`

	BindHost    string `default:"127.0.0.1" env:"MCP_RUNTIME_HOST" help:"HTTP bind host (serve command only)"`
	Port        int    `default:"8090" env:"MCP_RUNTIME_PORT" help:"HTTP bind port (serve command only)"`
	Path        string `default:"/mcp" help:"MCP endpoint path (serve command only)"`
	Stateless   bool   `default:"false" help:"disable session tracking; every request gets a throwaway peer"`
	MaxSessions int    `default:"1000" help:"maximum concurrent HTTP sessions (0 = unbounded)"`
	MaxBodyMiB  int    `default:"32" help:"request body size in MiB; not applied: the HTTP transport reads at most 32 MiB of each POST body"`

	HostPolicy     string   `default:"automatic" help:"DNS-rebinding policy: none, automatic, custom"`
	AllowedHosts   []string `help:"allowed Host header values when --host-policy=custom"`
	AllowedOrigins []string `help:"allowed Origin header values when --host-policy=custom"`

	StrictMode bool `default:"false" help:"reject outbound/inbound calls against capabilities the peer never advertised"`

	MetricsEnabled bool   `default:"true" help:"expose Prometheus metrics (serve command only)"`
	MetricsPath    string `default:"/metrics" help:"metrics endpoint path (serve command only)"`

	Stdio cmd.Stdio `cmd:"" help:"run the MCP server over stdin/stdout"`
	Serve cmd.Serve `cmd:"" default:"1" help:"run the MCP server behind the Streamable HTTP transport"`
}

func main() {
	kctx := kong.Parse(&cli)

	isStdio := kctx.Command() == "stdio"

	fileCfg, err := config.LoadConfigFile(resolvedConfigPath())
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "WARNING: failed to load config file: %v\n", err)
	}
	applyFileConfig(fileCfg)

	logger.SetLevel(logger.ParseLevel(strings.ToLower(cli.LogLevel)))
	logger.Setup(cli.LogsDir, isStdio, cli.Debug)

	logger.Info("Starting MCP runtime v%s (log level: %s)", Version, cli.LogLevel)

	appCtx := &cmd.Context{
		Version: Version,
		ServerInfo: mcp.Implementation{
			Name:    "mcp-runtime",
			Version: Version,
		},
		Capabilities: mcp.ServerCapabilities{
			Tools:   &mcp.ListChangedCapability{ListChanged: true},
			Logging: &struct{}{},
		},
		Instructions: "Reference MCP runtime exposing a small demo tool set (echo, time).",
		StrictMode:   cli.StrictMode,

		ConfigPath:     resolvedConfigPath(),
		BindHost:       cli.BindHost,
		Port:           cli.Port,
		Path:           cli.Path,
		Stateless:      cli.Stateless,
		MaxSessions:    cli.MaxSessions,
		MaxBodyBytes:   int64(cli.MaxBodyMiB) * 1024 * 1024,
		HostPolicy:     resolveHostPolicy(),
		MetricsEnabled: cli.MetricsEnabled,
		MetricsPath:    cli.MetricsPath,
	}

	err = kctx.Run(appCtx)
	kctx.FatalIfErrorf(err)
}

func resolvedConfigPath() string {
	if cli.ConfigFile != "" {
		return cli.ConfigFile
	}
	return config.DefaultConfigPath
}

func resolveHostPolicy() mcp.HostPolicy {
	switch strings.ToLower(cli.HostPolicy) {
	case "none":
		return mcp.NoHostPolicy()
	case "custom":
		return mcp.CustomHostPolicy(cli.AllowedHosts, cli.AllowedOrigins)
	default:
		return mcp.AutomaticHostPolicy(cli.BindHost)
	}
}

// applyFileConfig merges config file values into the CLI struct. Kong sets
// fields to their declared defaults before parsing, so file config values
// are applied after kong.Parse to fill in non-defaulted values: CLI flag >
// env var > config file > struct default.
func applyFileConfig(cfg *config.FileConfig) {
	if cfg == nil {
		return
	}

	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setStr := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}

	setStr(&cli.BindHost, cfg.BindHost)
	setInt(&cli.Port, cfg.Port)
	setStr(&cli.Path, cfg.Path)
	setBool(&cli.Stateless, cfg.Stateless)
	setInt(&cli.MaxSessions, cfg.MaxSessions)
	setInt(&cli.MaxBodyMiB, cfg.MaxBodyMiB)

	setStr(&cli.HostPolicy, cfg.HostPolicy)
	if len(cfg.AllowedHosts) > 0 {
		cli.AllowedHosts = cfg.AllowedHosts
	}
	if len(cfg.AllowedOrigins) > 0 {
		cli.AllowedOrigins = cfg.AllowedOrigins
	}

	setStr(&cli.LogLevel, cfg.LogLevel)
	setStr(&cli.LogsDir, cfg.LogsDir)
	setBool(&cli.Debug, cfg.Debug)

	setBool(&cli.StrictMode, cfg.StrictMode)

	setBool(&cli.MetricsEnabled, cfg.MetricsEnabled)
	setStr(&cli.MetricsPath, cfg.MetricsPath)
}
