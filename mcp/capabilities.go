package mcp

// RootsCapability advertises client support for the roots/list family.
type RootsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ElicitationCapability advertises which elicitation flavors a client
// supports.
type ElicitationCapability struct {
	Form bool `json:"form,omitempty"`
	URL  bool `json:"url,omitempty"`
}

// ClientCapabilities is the client-advertised half of capability
// negotiation.
type ClientCapabilities struct {
	Sampling     *struct{}               `json:"sampling,omitempty"`
	Roots        *RootsCapability        `json:"roots,omitempty"`
	Elicitation  *ElicitationCapability  `json:"elicitation,omitempty"`
	Experimental map[string]any          `json:"experimental,omitempty"`
}

// ResourcesCapability advertises server support for resource
// subscription/list-change notifications.
type ResourcesCapability struct {
	Subscribe   bool `json:"subscribe,omitempty"`
	ListChanged bool `json:"listChanged,omitempty"`
}

type ListChangedCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ServerCapabilities is the server-advertised half of capability
// negotiation.
type ServerCapabilities struct {
	Tools        *ListChangedCapability `json:"tools,omitempty"`
	Resources    *ResourcesCapability   `json:"resources,omitempty"`
	Prompts      *ListChangedCapability `json:"prompts,omitempty"`
	Logging      *struct{}              `json:"logging,omitempty"`
	Completions  *struct{}              `json:"completions,omitempty"`
	Experimental map[string]any         `json:"experimental,omitempty"`
}

// requiredServerCapability names the gate a given server-bound method
// requires, used by strict-mode local capability checks. Methods absent
// from this table require no capability (e.g. initialize, ping).
var requiredServerCapability = map[string]func(*ServerCapabilities) bool{
	"resources/subscribe":             func(c *ServerCapabilities) bool { return c.Resources != nil && c.Resources.Subscribe },
	"resources/unsubscribe":           func(c *ServerCapabilities) bool { return c.Resources != nil && c.Resources.Subscribe },
	"resources/list":                  func(c *ServerCapabilities) bool { return c.Resources != nil },
	"resources/read":                  func(c *ServerCapabilities) bool { return c.Resources != nil },
	"resources/templates/list":        func(c *ServerCapabilities) bool { return c.Resources != nil },
	"prompts/list":                    func(c *ServerCapabilities) bool { return c.Prompts != nil },
	"prompts/get":                     func(c *ServerCapabilities) bool { return c.Prompts != nil },
	"tools/list":                      func(c *ServerCapabilities) bool { return c.Tools != nil },
	"tools/call":                      func(c *ServerCapabilities) bool { return c.Tools != nil },
	"logging/setLevel":                func(c *ServerCapabilities) bool { return c.Logging != nil },
	"completion/complete":             func(c *ServerCapabilities) bool { return c.Completions != nil },
}

// requiredClientCapability is the inverse table for client-bound methods a
// server might call back (sampling/createMessage, elicitation/create,
// roots/list).
var requiredClientCapability = map[string]func(*ClientCapabilities) bool{
	"sampling/createMessage": func(c *ClientCapabilities) bool { return c.Sampling != nil },
	"elicitation/create":     func(c *ClientCapabilities) bool { return c.Elicitation != nil },
	"roots/list":             func(c *ClientCapabilities) bool { return c.Roots != nil },
}

// checkOutboundCapability implements the strict-mode local gate: outbound
// requests that require a server capability the server did not advertise
// must fail locally with invalidRequest before touching the wire. The
// remote side's capabilities consulted are whichever are relevant to the
// direction of the call (server caps when the client is calling out, client
// caps when the server is calling out).
func (p *Peer) checkOutboundCapability(method string) error {
	if !p.strictMode {
		return nil
	}
	switch p.role {
	case roleClient:
		if gate, ok := requiredServerCapability[method]; ok {
			if p.remoteServerCaps == nil || !gate(p.remoteServerCaps) {
				return ErrInvalidRequest("server does not advertise capability required by " + method)
			}
		}
	case roleServer:
		if gate, ok := requiredClientCapability[method]; ok {
			if p.remoteClientCaps == nil || !gate(p.remoteClientCaps) {
				return ErrInvalidRequest("client does not advertise capability required by " + method)
			}
		}
	}
	return nil
}

// checkInboundCapability rejects inbound requests that target capabilities
// the local side did not advertise, with methodNotFound: if I am a server
// and a client calls tools/call but I never advertised a tools capability,
// reject regardless of whether a
// handler happens to be registered.
func (p *Peer) checkInboundCapability(method string) bool {
	switch p.role {
	case roleServer:
		if gate, ok := requiredServerCapability[method]; ok {
			return p.localServerCaps != nil && gate(p.localServerCaps)
		}
	case roleClient:
		if gate, ok := requiredClientCapability[method]; ok {
			return p.localClientCaps != nil && gate(p.localClientCaps)
		}
	}
	return true
}
