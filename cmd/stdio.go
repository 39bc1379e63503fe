package cmd

import (
	"os"

	"github.com/ruaan-deysel/mcp-runtime/logger"
	"github.com/ruaan-deysel/mcp-runtime/mcp"
)

// Stdio runs the MCP server over stdin/stdout, the preferred transport for
// local AI clients (Claude Desktop, Cursor, etc.) launching this binary as
// a subprocess. One small struct with a Run method, kong's command shape.
//
// Usage in Claude Desktop config:
//
//	{
//	  "mcpServers": {
//	    "mcp-runtime": {
//	      "command": "/usr/local/bin/mcp-runtime",
//	      "args": ["stdio"]
//	    }
//	  }
//	}
type Stdio struct{}

// Run starts the server over stdio and blocks until the transport closes.
func (s *Stdio) Run(ctx *Context) error {
	server := mcp.NewServer(ctx.ServerInfo, ctx.Capabilities, ctx.Instructions, ctx.StrictMode, func() {
		logger.Info("mcp-runtime: client initialized")
	})
	installDemoTools(server)

	transport := mcp.NewStdioTransport(os.Stdin, os.Stdout)
	if err := server.Connect(transport); err != nil {
		return err
	}

	// Block until stdin closes (the client disconnected or the process is
	// being shut down); the reader goroutine inside the transport exits
	// when Read returns io.EOF, closing the peer's reader loop.
	<-server.Peer().Done()
	return nil
}
