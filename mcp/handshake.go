package mcp

import (
	"context"
	"encoding/json"
	"time"
)

// ProtocolVersions lists the versions this engine understands, newest last.
var ProtocolVersions = []string{"2024-11-05", "2025-03-26", "2025-06-18", "2025-11-25"}

// DefaultProtocolVersion is assumed by the HTTP server transport in
// stateless mode when a request omits MCP-Protocol-Version.
const DefaultProtocolVersion = "2025-03-26"

func supportsVersion(v string) bool {
	for _, s := range ProtocolVersions {
		if s == v {
			return true
		}
	}
	return false
}

// nearestSupportedVersion implements the server-side negotiation fallback:
// validate the client's protocol version against the server's supported
// set; if an exact match fails, choose the nearest supported version.
// "Nearest" is taken as the latest version this server
// supports, mirroring the common MCP SDK behavior of falling back to the
// server's own preferred version when the client's is unrecognized.
func nearestSupportedVersion(clientVersion string) string {
	if supportsVersion(clientVersion) {
		return clientVersion
	}
	return ProtocolVersions[len(ProtocolVersions)-1]
}

// Implementation identifies a client or server (name + version) during
// initialize.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeParams is the params of an initialize request.
type InitializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      Implementation     `json:"clientInfo"`
}

// InitializeResult is the result of a successful initialize.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

var methodInitialize = NewMethod[InitializeParams, InitializeResult]("initialize")

const methodNotificationsInitialized = "notifications/initialized"

var notificationInitialized = NewNotificationMethod[Empty](methodNotificationsInitialized)

// Empty is the params type for notifications that carry no payload
// (notifications/initialized). It implements NotRequired so
// an absent params body decodes cleanly.
type Empty struct{}

func (Empty) DefaultParams() any { return Empty{} }

// PingParams is the (empty) params of the ping method, usable with an
// absent params body since it implements NotRequired.
type PingParams struct{}

func (PingParams) DefaultParams() any { return PingParams{} }

// PingResult is the (empty) result of ping.
type PingResult struct{}

var MethodPing = NewMethod[PingParams, PingResult]("ping")

// clientHandshake runs the client-role handshake: immediately on connect,
// send initialize; on success record negotiated
// version/capabilities and send notifications/initialized.
func clientHandshake(ctx context.Context, p *Peer, info Implementation, caps ClientCapabilities, preferredVersion string, timeout time.Duration) (*InitializeResult, error) {
	p.role = roleClient
	p.localClientCaps = &caps

	result, err := SendRequest(ctx, p, methodInitialize, InitializeParams{
		ProtocolVersion: preferredVersion,
		Capabilities:    caps,
		ClientInfo:      info,
	}, timeout)
	if err != nil {
		return nil, err
	}

	p.negotiatedVersion = result.ProtocolVersion
	capsCopy := result.Capabilities
	p.remoteServerCaps = &capsCopy
	p.initialized.Store(true)

	if err := SendNotification(p, notificationInitialized, Empty{}); err != nil {
		return nil, err
	}
	return &result, nil
}

// installServerHandshake registers the server-role initialize handler: the
// first inbound request must be initialize; validate/negotiate protocol
// version; mark the
// session live only after notifications/initialized arrives.
func installServerHandshake(p *Peer, info Implementation, caps ServerCapabilities, instructions string, onInitialized func()) {
	p.role = roleServer
	p.localServerCaps = &caps

	RegisterRequestHandler(p, methodInitialize, func(hc *HandlerContext, params InitializeParams) (InitializeResult, error) {
		version := nearestSupportedVersion(params.ProtocolVersion)
		clientCapsCopy := params.Capabilities
		p.remoteClientCaps = &clientCapsCopy
		p.negotiatedVersion = version
		return InitializeResult{
			ProtocolVersion: version,
			Capabilities:    caps,
			ServerInfo:      info,
			Instructions:    instructions,
		}, nil
	})

	RegisterNotificationHandler(p, notificationInitialized, func(Empty) {
		p.initialized.Store(true)
		if onInitialized != nil {
			onInitialized()
		}
	})
}

// requireInitialized enforces that initialize has completed before any
// other method call: in strict mode, reject calls with invalid-request
// until initialize completes. Default mode's precise semantics are an open
// design question; this engine's default mode passes calls through
// unchanged (neither queues nor blocks), the conservative reading until
// client behavior in the wild clarifies which is expected.
func (p *Peer) requireInitialized(method string) error {
	if method == "initialize" {
		return nil
	}
	if !p.strictMode {
		return nil
	}
	if p.initialized.Load() {
		return nil
	}
	return ErrInvalidRequest("initialize has not completed")
}

// NegotiatedVersion returns the protocol version agreed during the
// initialize handshake, or "" before it completes.
func (p *Peer) NegotiatedVersion() string { return p.negotiatedVersion }

// Initialized reports whether the handshake has completed on this peer.
func (p *Peer) Initialized() bool { return p.initialized.Load() }

// RemoteServerCapabilities returns the server's advertised capabilities, as
// learned by a client peer during initialize. Nil before/without a
// completed handshake or on a server-role peer.
func (p *Peer) RemoteServerCapabilities() *ServerCapabilities { return p.remoteServerCaps }

// RemoteClientCapabilities returns the client's advertised capabilities, as
// learned by a server peer during initialize.
func (p *Peer) RemoteClientCapabilities() *ClientCapabilities { return p.remoteClientCaps }

// marshalMeta is a small helper for building _meta JSON blobs (used by
// request senders that want to attach a progressToken).
func marshalMeta(progressToken *Value) json.RawMessage {
	if progressToken == nil {
		return nil
	}
	raw, err := json.Marshal(struct {
		ProgressToken Value `json:"progressToken"`
	}{ProgressToken: *progressToken})
	if err != nil {
		return nil
	}
	return raw
}
