package mcp

import (
	"context"
	"encoding/json"
	"time"
)

// Client is the client-role facade over Peer: it owns the handshake and
// exposes the fixed outbound methods plus a generic escape hatch for
// anything the external tool/resource/prompt registries need to call.
//
// Grounded on dominicnunez-codex-sdk-go/client.go's thin Client wrapper
// around its dispatcher, adapted to route through Peer instead of owning
// its own pending table.
type Client struct {
	peer *Peer

	info Implementation
	caps ClientCapabilities
}

// NewClient constructs an unconnected client-role peer. info/caps are sent
// during Initialize.
func NewClient(info Implementation, caps ClientCapabilities, strict bool) *Client {
	c := &Client{peer: NewPeer(strict), info: info, caps: caps}
	RegisterRequestHandler(c.peer, MethodPing, func(_ *HandlerContext, _ PingParams) (PingResult, error) {
		return PingResult{}, nil
	})
	return c
}

// Peer exposes the underlying engine for transport wiring, logger/metrics
// hooks, and registering server-to-client request handlers (sampling,
// elicitation, roots).
func (c *Client) Peer() *Peer { return c.peer }

// Connect attaches a transport and starts the reader loop. Call Initialize
// afterward to complete the handshake.
func (c *Client) Connect(t Transport) error { return c.peer.Connect(t) }

// Disconnect tears the transport down and fails any pending calls.
func (c *Client) Disconnect() error { return c.peer.Disconnect() }

// Initialize runs the client handshake: send initialize with
// preferredVersion, then notifications/initialized once a result arrives.
func (c *Client) Initialize(ctx context.Context, preferredVersion string, timeout time.Duration) (*InitializeResult, error) {
	return clientHandshake(ctx, c.peer, c.info, c.caps, preferredVersion, timeout)
}

// Ping sends the fixed no-op liveness check.
func (c *Client) Ping(ctx context.Context, timeout time.Duration) error {
	_, err := SendRequest(ctx, c.peer, MethodPing, PingParams{}, timeout)
	return err
}

// ListTools calls tools/list. params/result are left as raw JSON since the
// concrete shape belongs to whichever tool registry the server installed.
func (c *Client) ListTools(ctx context.Context, params []byte, timeout time.Duration) ([]byte, error) {
	return SendRequest(ctx, c.peer, MethodToolsList, params, timeout)
}

// CallTool calls tools/call.
func (c *Client) CallTool(ctx context.Context, params []byte, timeout time.Duration) ([]byte, error) {
	return SendRequest(ctx, c.peer, MethodToolsCall, params, timeout)
}

// ListResources calls resources/list.
func (c *Client) ListResources(ctx context.Context, params []byte, timeout time.Duration) ([]byte, error) {
	return SendRequest(ctx, c.peer, MethodResourcesList, params, timeout)
}

// ReadResource calls resources/read.
func (c *Client) ReadResource(ctx context.Context, params []byte, timeout time.Duration) ([]byte, error) {
	return SendRequest(ctx, c.peer, MethodResourcesRead, params, timeout)
}

// ListPrompts calls prompts/list.
func (c *Client) ListPrompts(ctx context.Context, params []byte, timeout time.Duration) ([]byte, error) {
	return SendRequest(ctx, c.peer, MethodPromptsList, params, timeout)
}

// GetPrompt calls prompts/get.
func (c *Client) GetPrompt(ctx context.Context, params []byte, timeout time.Duration) ([]byte, error) {
	return SendRequest(ctx, c.peer, MethodPromptsGet, params, timeout)
}

// Complete calls completion/complete.
func (c *Client) Complete(ctx context.Context, params []byte, timeout time.Duration) ([]byte, error) {
	return SendRequest(ctx, c.peer, MethodCompletionComplete, params, timeout)
}

// SetLogLevel calls logging/setLevel, gated by the server's advertised
// logging capability in strict mode.
func (c *Client) SetLogLevel(ctx context.Context, level string, timeout time.Duration) error {
	_, err := SendRequest(ctx, c.peer, MethodLoggingSetLevel, SetLevelParams{Level: level}, timeout)
	return err
}

// OnLogMessage registers a handler for inbound notifications/message:
// server-pushed structured log lines.
func (c *Client) OnLogMessage(fn func(LogMessageParams)) {
	RegisterNotificationHandler(c.peer, NotificationMessage, fn)
}

// OnToolsListChanged registers a handler for notifications/tools/list_changed.
func (c *Client) OnToolsListChanged(fn func()) {
	RegisterNotificationHandler(c.peer, NotificationToolsListChanged, func(json.RawMessage) { fn() })
}

// OnResourcesUpdated registers a handler for notifications/resources/updated.
func (c *Client) OnResourcesUpdated(fn func(raw []byte)) {
	RegisterNotificationHandler(c.peer, NotificationResourcesUpdated, func(raw json.RawMessage) { fn(raw) })
}

// Cancel requests cancellation of an outstanding client-issued call.
func (c *Client) Cancel(id RequestId) { c.peer.Cancel(id) }
