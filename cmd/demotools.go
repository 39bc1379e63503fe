package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ruaan-deysel/mcp-runtime/mcp"
)

// Tool describes one entry of a tools/list response (MCP's tool declaration
// shape). The core engine deliberately knows nothing about tool schemas;
// this lives in cmd as the external tool registry, reusing
// RegisterRequestHandler the same way any other embedder of the mcp package
// would.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema"`
}

type listToolsResult struct {
	Tools []Tool `json:"tools"`
}

type callToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type toolContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type callToolResult struct {
	Content []toolContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type echoArgs struct {
	Message string `json:"message"`
}

// installDemoTools registers a minimal "echo" and "time" tool pair so the
// stdio/serve commands have something to actually serve out of the box,
// exercising the tools/list and tools/call dispatch paths end-to-end rather
// than leaving them entirely to a future embedder.
func installDemoTools(s *mcp.Server) {
	tools := []Tool{
		{
			Name:        "echo",
			Description: "Echoes back the given message",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"message": map[string]any{"type": "string"}},
				"required":   []string{"message"},
			},
		},
		{
			Name:        "time",
			Description: "Returns the current server time in RFC3339",
			InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
		},
	}

	mcp.RegisterRequestHandler(s.Peer(), mcp.MethodToolsList, func(hc *mcp.HandlerContext, _ json.RawMessage) (json.RawMessage, error) {
		return json.Marshal(listToolsResult{Tools: tools})
	})

	mcp.RegisterRequestHandler(s.Peer(), mcp.MethodToolsCall, func(hc *mcp.HandlerContext, raw json.RawMessage) (json.RawMessage, error) {
		var params callToolParams
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, mcp.ErrInvalidParams(err.Error())
		}
		switch params.Name {
		case "echo":
			var args echoArgs
			if len(params.Arguments) > 0 {
				if err := json.Unmarshal(params.Arguments, &args); err != nil {
					return nil, mcp.ErrInvalidParams(err.Error())
				}
			}
			return json.Marshal(callToolResult{Content: []toolContent{{Type: "text", Text: args.Message}}})
		case "time":
			return json.Marshal(callToolResult{Content: []toolContent{{Type: "text", Text: time.Now().Format(time.RFC3339)}}})
		default:
			return json.Marshal(callToolResult{
				IsError: true,
				Content: []toolContent{{Type: "text", Text: fmt.Sprintf("unknown tool %q", params.Name)}},
			})
		}
	})
}
