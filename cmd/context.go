// Package cmd provides the MCP runtime's kong subcommand implementations.
package cmd

import (
	"github.com/ruaan-deysel/mcp-runtime/mcp"
)

// Context carries the resolved settings a subcommand needs to construct its
// Server and transport: one small struct built once in main, passed to
// Run by kong.
type Context struct {
	Version string

	// Server identity and capabilities advertised during initialize.
	ServerInfo   mcp.Implementation
	Capabilities mcp.ServerCapabilities
	Instructions string
	StrictMode   bool

	// ConfigPath, when non-empty and present on disk, is watched for
	// changes and hot-reloaded into the running serve command's DNS
	// rebinding policy and session cap.
	ConfigPath string

	// HTTP listener settings (serve command only). MaxBodyBytes is not
	// passed to the HTTP transport, which reads at most 32 MiB of each
	// POST body whatever its value.
	BindHost       string
	Port           int
	Path           string
	Stateless      bool
	MaxSessions    int
	MaxBodyBytes   int64
	HostPolicy     mcp.HostPolicy
	MetricsEnabled bool
	MetricsPath    string
}
