package mcp

import "testing"

func TestCheckInboundCapabilityServerSide(t *testing.T) {
	p := NewPeer(false)
	p.role = roleServer
	p.localServerCaps = &ServerCapabilities{Tools: &ListChangedCapability{ListChanged: true}}

	if !p.checkInboundCapability("tools/list") {
		t.Error("expected tools/list to be allowed: tools capability is advertised")
	}
	if p.checkInboundCapability("resources/list") {
		t.Error("expected resources/list to be rejected: resources capability was never advertised")
	}
	if !p.checkInboundCapability("ping") {
		t.Error("expected an ungated method like ping to always pass")
	}
}

func TestCheckInboundCapabilityClientSide(t *testing.T) {
	p := NewPeer(false)
	p.role = roleClient
	p.localClientCaps = &ClientCapabilities{}

	if p.checkInboundCapability("sampling/createMessage") {
		t.Error("expected sampling/createMessage to be rejected: sampling capability was never advertised")
	}

	p.localClientCaps = &ClientCapabilities{Sampling: &struct{}{}}
	if !p.checkInboundCapability("sampling/createMessage") {
		t.Error("expected sampling/createMessage to be allowed once advertised")
	}
}

func TestCheckOutboundCapabilityOnlyAppliesInStrictMode(t *testing.T) {
	p := NewPeer(false)
	p.role = roleClient
	p.remoteServerCaps = &ServerCapabilities{}

	if err := p.checkOutboundCapability("tools/list"); err != nil {
		t.Errorf("non-strict mode should never reject outbound calls locally: %v", err)
	}
}

func TestCheckOutboundCapabilityStrictModeClientRole(t *testing.T) {
	p := NewPeer(true)
	p.role = roleClient
	p.remoteServerCaps = &ServerCapabilities{}

	if err := p.checkOutboundCapability("tools/list"); err == nil {
		t.Fatal("expected a strict-mode rejection: server never advertised tools")
	}

	p.remoteServerCaps = &ServerCapabilities{Tools: &ListChangedCapability{ListChanged: true}}
	if err := p.checkOutboundCapability("tools/list"); err != nil {
		t.Errorf("expected tools/list to pass once the server advertises it: %v", err)
	}
}

func TestCheckOutboundCapabilityStrictModeServerRole(t *testing.T) {
	p := NewPeer(true)
	p.role = roleServer
	p.remoteClientCaps = &ClientCapabilities{}

	if err := p.checkOutboundCapability("roots/list"); err == nil {
		t.Fatal("expected a strict-mode rejection: client never advertised roots")
	}

	p.remoteClientCaps = &ClientCapabilities{Roots: &RootsCapability{ListChanged: true}}
	if err := p.checkOutboundCapability("roots/list"); err != nil {
		t.Errorf("expected roots/list to pass once the client advertises it: %v", err)
	}
}

func TestCapabilityGateTablesCoverDocumentedMethods(t *testing.T) {
	serverGated := []string{
		"resources/subscribe", "resources/unsubscribe", "resources/list", "resources/read",
		"resources/templates/list", "prompts/list", "prompts/get", "tools/list", "tools/call",
		"logging/setLevel", "completion/complete",
	}
	for _, m := range serverGated {
		if _, ok := requiredServerCapability[m]; !ok {
			t.Errorf("expected %q in requiredServerCapability", m)
		}
	}

	clientGated := []string{"sampling/createMessage", "elicitation/create", "roots/list"}
	for _, m := range clientGated {
		if _, ok := requiredClientCapability[m]; !ok {
			t.Errorf("expected %q in requiredClientCapability", m)
		}
	}
}
