package mcp

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestHTTPServer(t *testing.T, cfg HTTPServerTransportConfig) (*httptest.Server, *HTTPServerTransport) {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = "/mcp"
	}
	newPeer := func() *Peer {
		s := NewServer(Implementation{Name: "test-server", Version: "0.0.0"}, ServerCapabilities{
			Tools: &ListChangedCapability{ListChanged: true},
		}, "", false, nil)
		RegisterRequestHandler(s.Peer(), MethodToolsList, func(_ *HandlerContext, _ json.RawMessage) (json.RawMessage, error) {
			return json.RawMessage(`{"tools":[]}`), nil
		})
		return s.Peer()
	}
	transport := NewHTTPServerTransport(cfg, newPeer)
	srv := httptest.NewServer(transport.Handler())
	t.Cleanup(srv.Close)
	return srv, transport
}

func doInitialize(t *testing.T, srv *httptest.Server) (sessionID string, body map[string]any) {
	t.Helper()
	reqBody := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"c","version":"1"}}}`
	resp, err := http.Post(srv.URL+"/mcp", "application/json", strings.NewReader(reqBody))
	if err != nil {
		t.Fatalf("POST initialize: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.Header.Get(sessionHeader), decoded
}

func TestHTTPServerInitializeAssignsSession(t *testing.T) {
	srv, _ := newTestHTTPServer(t, HTTPServerTransportConfig{})
	sid, body := doInitialize(t, srv)
	if sid == "" {
		t.Fatal("expected a session id header on the initialize response")
	}
	result, ok := body["result"].(map[string]any)
	if !ok {
		t.Fatalf("expected a result object, got %v", body)
	}
	if result["protocolVersion"] != "2025-06-18" {
		t.Errorf("protocolVersion = %v", result["protocolVersion"])
	}
}

func TestHTTPServerToolsListRoundTrip(t *testing.T) {
	srv, _ := newTestHTTPServer(t, HTTPServerTransportConfig{})
	sid, _ := doInitialize(t, srv)

	reqBody := `{"jsonrpc":"2.0","id":2,"method":"tools/list","params":{}}`
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/mcp", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(sessionHeader, sid)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST tools/list: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var decoded map[string]any
	json.NewDecoder(resp.Body).Decode(&decoded)
	result, ok := decoded["result"].(map[string]any)
	if !ok {
		t.Fatalf("expected a result object, got %v", decoded)
	}
	if _, ok := result["tools"]; !ok {
		t.Error("expected a tools field in the result")
	}
}

func TestHTTPServerUnknownSessionReturns404(t *testing.T) {
	srv, _ := newTestHTTPServer(t, HTTPServerTransportConfig{})

	reqBody := `{"jsonrpc":"2.0","id":2,"method":"tools/list","params":{}}`
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/mcp", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(sessionHeader, "does-not-exist")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHTTPServerMissingSessionReturns400(t *testing.T) {
	srv, _ := newTestHTTPServer(t, HTTPServerTransportConfig{})

	reqBody := `{"jsonrpc":"2.0","id":2,"method":"tools/list","params":{}}`
	resp, err := http.Post(srv.URL+"/mcp", "application/json", strings.NewReader(reqBody))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHTTPServerHostPolicyRejects403(t *testing.T) {
	srv, _ := newTestHTTPServer(t, HTTPServerTransportConfig{
		HostPolicy: CustomHostPolicy([]string{"allowed.example"}, nil),
	})

	reqBody := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"c","version":"1"}}}`
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/mcp", strings.NewReader(reqBody))
	req.Host = "not-allowed.example"
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestHTTPServerSetHostPolicyTakesEffectLive(t *testing.T) {
	srv, transport := newTestHTTPServer(t, HTTPServerTransportConfig{
		HostPolicy: NoHostPolicy(),
	})

	reqBody := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"c","version":"1"}}}`
	mkReq := func() *http.Request {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/mcp", strings.NewReader(reqBody))
		req.Host = "blocked.example"
		return req
	}

	resp, err := http.DefaultClient.Do(mkReq())
	if err != nil {
		t.Fatalf("POST before swap: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status before swap = %d, want 200", resp.StatusCode)
	}

	transport.SetHostPolicy(CustomHostPolicy([]string{"allowed.example"}, nil))

	resp, err = http.DefaultClient.Do(mkReq())
	if err != nil {
		t.Fatalf("POST after swap: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status after swap = %d, want 403", resp.StatusCode)
	}
}

func TestHTTPServerBatchPost(t *testing.T) {
	srv, _ := newTestHTTPServer(t, HTTPServerTransportConfig{})
	sid, _ := doInitialize(t, srv)

	batch := `[{"jsonrpc":"2.0","id":2,"method":"tools/list","params":{}},{"jsonrpc":"2.0","id":3,"method":"ping","params":{}}]`
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/mcp", bytes.NewReader([]byte(batch)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(sessionHeader, sid)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST batch: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var decoded []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode batch response: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("len(decoded) = %d, want 2", len(decoded))
	}
}

func TestHTTPServerDeleteTerminatesSession(t *testing.T) {
	srv, _ := newTestHTTPServer(t, HTTPServerTransportConfig{})
	sid, _ := doInitialize(t, srv)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/mcp", nil)
	req.Header.Set(sessionHeader, sid)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	reqBody := `{"jsonrpc":"2.0","id":2,"method":"tools/list","params":{}}`
	req2, _ := http.NewRequest(http.MethodPost, srv.URL+"/mcp", strings.NewReader(reqBody))
	req2.Header.Set("Content-Type", "application/json")
	req2.Header.Set(sessionHeader, sid)
	resp2, err := http.DefaultClient.Do(req2)
	if err != nil {
		t.Fatalf("POST after DELETE: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Errorf("status after DELETE = %d, want 404 (session gone)", resp2.StatusCode)
	}
}

func TestHTTPServerMaxSessionsRejectsBeyondCap(t *testing.T) {
	srv, _ := newTestHTTPServer(t, HTTPServerTransportConfig{MaxSessions: 1})
	doInitialize(t, srv)

	reqBody := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"c2","version":"1"}}}`
	resp, err := http.Post(srv.URL+"/mcp", "application/json", strings.NewReader(reqBody))
	if err != nil {
		t.Fatalf("POST second initialize: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestHTTPServerGetRequiresSSEAccept(t *testing.T) {
	srv, _ := newTestHTTPServer(t, HTTPServerTransportConfig{})
	sid, _ := doInitialize(t, srv)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/mcp", nil)
	req.Header.Set(sessionHeader, sid)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotAcceptable {
		t.Errorf("status = %d, want 406 without an SSE Accept header", resp.StatusCode)
	}
}
