package mcp

import "encoding/json"

// Server is the server-role facade over Peer: it installs the initialize
// handshake handler and exposes registration helpers plus the server-to-
// client notification senders (list-changed, resource-updated, log
// messages).
//
// Grounded on daemon/services/mcp/server.go (install handlers, then Serve
// loop), restructured around the generic typed registry instead of the
// metoro-io/mcp-golang tool-struct reflection it used.
type Server struct {
	peer *Peer

	info         Implementation
	caps         ServerCapabilities
	instructions string
}

// NewServer constructs an unconnected server-role peer advertising caps.
// onInitialized fires once notifications/initialized arrives (nil is fine).
func NewServer(info Implementation, caps ServerCapabilities, instructions string, strict bool, onInitialized func()) *Server {
	s := &Server{peer: NewPeer(strict), info: info, caps: caps, instructions: instructions}
	installServerHandshake(s.peer, info, caps, instructions, onInitialized)
	s.installPing()
	s.installLogging()
	return s
}

// Peer exposes the underlying engine for transport wiring and installing
// tool/resource/prompt registry handlers.
func (s *Server) Peer() *Peer { return s.peer }

// Connect attaches a transport (typically an HTTP server transport or
// stdio) and starts the reader loop.
func (s *Server) Connect(t Transport) error { return s.peer.Connect(t) }

// Disconnect tears the transport down.
func (s *Server) Disconnect() error { return s.peer.Disconnect() }

func (s *Server) installPing() {
	RegisterRequestHandler(s.peer, MethodPing, func(_ *HandlerContext, _ PingParams) (PingResult, error) {
		return PingResult{}, nil
	})
}

// logLevelOrder ranks the levels that logging/setLevel accepts; EmitLog
// uses it to drop messages below the client's requested threshold
// (Peer.minLogLevel). Ordering mirrors RFC
// 5424 syslog severities, the convention the MCP logging capability borrows.
var logLevelOrder = map[string]int{
	"debug": 0, "info": 1, "notice": 2, "warning": 3,
	"error": 4, "critical": 5, "alert": 6, "emergency": 7,
}

func (s *Server) installLogging() {
	if s.caps.Logging == nil {
		return
	}
	RegisterRequestHandler(s.peer, MethodLoggingSetLevel, func(_ *HandlerContext, p SetLevelParams) (SetLevelResult, error) {
		if _, ok := logLevelOrder[p.Level]; !ok {
			return SetLevelResult{}, ErrInvalidParams("unknown log level " + p.Level)
		}
		s.peer.mu.Lock()
		s.peer.minLogLevel = p.Level
		s.peer.mu.Unlock()
		return SetLevelResult{}, nil
	})
}

// EmitLog sends notifications/message to the client, silently dropping
// messages below whatever level logging/setLevel last requested (default
// "info", matching the logger package's default threshold).
func (s *Server) EmitLog(level, logger string, data Value) error {
	s.peer.mu.Lock()
	threshold := s.peer.minLogLevel
	s.peer.mu.Unlock()
	if threshold == "" {
		threshold = "info"
	}
	if logLevelOrder[level] < logLevelOrder[threshold] {
		return nil
	}
	return SendNotification(s.peer, NotificationMessage, LogMessageParams{Level: level, Logger: logger, Data: data})
}

// NotifyToolsListChanged sends notifications/tools/list_changed.
func (s *Server) NotifyToolsListChanged() error {
	return SendNotification(s.peer, NotificationToolsListChanged, json.RawMessage(nil))
}

// NotifyResourcesListChanged sends notifications/resources/list_changed.
func (s *Server) NotifyResourcesListChanged() error {
	return SendNotification(s.peer, NotificationResourcesListChanged, json.RawMessage(nil))
}

// NotifyResourceUpdated sends notifications/resources/updated for a single
// resource URI.
func (s *Server) NotifyResourceUpdated(uri string) error {
	raw, err := json.Marshal(struct {
		URI string `json:"uri"`
	}{URI: uri})
	if err != nil {
		return err
	}
	return SendNotification(s.peer, NotificationResourcesUpdated, json.RawMessage(raw))
}

// NotifyPromptsListChanged sends notifications/prompts/list_changed.
func (s *Server) NotifyPromptsListChanged() error {
	return SendNotification(s.peer, NotificationPromptsListChanged, json.RawMessage(nil))
}
