package mcp

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// HTTPClientTransport implements Transport against a Streamable HTTP server:
// every outbound envelope is POSTed to the server's
// single MCP endpoint; a request's response is read synchronously from that
// POST's body; server-initiated requests/notifications arrive over an
// optional background GET SSE listener this transport maintains.
//
// Grounded on StreamableHTTPTransport for the wire contract it implements
// (that transport only implements the server half; this is the client
// half of the same exchange), with the newline-scanning SSE parser
// adapted from dominicnunez-codex-sdk-go/stdio.go's bufio.Scanner framing
// idiom applied to `data:`-prefixed lines instead of raw newline-delimited
// JSON.
type HTTPClientTransport struct {
	baseURL string
	client  *http.Client

	mu            sync.Mutex
	sessionID     string
	protoVersion  string
	lastEventID   string
	closed        bool
	sseCancel     context.CancelFunc

	out chan []byte
}

// NewHTTPClientTransport builds a client transport against baseURL (the
// full MCP endpoint URL, e.g. "http://localhost:8080/mcp"). httpClient may
// be nil to use http.DefaultClient.
func NewHTTPClientTransport(baseURL string, httpClient *http.Client) *HTTPClientTransport {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPClientTransport{baseURL: baseURL, client: httpClient, out: make(chan []byte, 32)}
}

func (t *HTTPClientTransport) Connect() error {
	ctx, cancel := context.WithCancel(context.Background())
	t.mu.Lock()
	t.sseCancel = cancel
	t.mu.Unlock()
	go t.listenSSE(ctx)
	return nil
}

func (t *HTTPClientTransport) Disconnect() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	cancel := t.sseCancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	close(t.out)
	return nil
}

func (t *HTTPClientTransport) Receive() <-chan []byte { return t.out }

// Send POSTs one envelope (or batch) and, when it carries a request/result
// reply, pushes the server's response body onto Receive. Notifications and
// requests the server accepts with 202 produce nothing to receive.
func (t *HTTPClientTransport) Send(raw []byte) error {
	req, err := http.NewRequest(http.MethodPost, t.baseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	t.mu.Lock()
	if t.sessionID != "" {
		req.Header.Set(sessionHeader, t.sessionID)
	}
	if t.protoVersion != "" {
		req.Header.Set(protocolVersionHeader, t.protoVersion)
	}
	t.mu.Unlock()

	resp, err := t.client.Do(req)
	if err != nil {
		return ErrTransportError(err.Error())
	}
	defer resp.Body.Close()

	if sid := resp.Header.Get(sessionHeader); sid != "" {
		t.mu.Lock()
		t.sessionID = sid
		t.mu.Unlock()
	}

	switch resp.StatusCode {
	case http.StatusAccepted:
		return nil
	case http.StatusNotFound:
		return ErrSessionExpired()
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return ErrTransportError(fmt.Sprintf("server returned %d: %s", resp.StatusCode, body))
	}

	contentType := resp.Header.Get("Content-Type")
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ErrTransportError(err.Error())
	}
	if strings.HasPrefix(contentType, "text/event-stream") {
		t.feedSSEBody(body)
		return nil
	}
	if len(body) > 0 {
		t.push(body)
	}
	return nil
}

func (t *HTTPClientTransport) push(raw []byte) {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return
	}
	defer func() { recover() }() // racing Disconnect closing out; drop silently
	t.out <- raw
}

// feedSSEBody parses an inline (non-persistent) SSE response body returned
// directly from a POST: a server may answer a single request with one
// `data:` event instead of a bare JSON body.
func (t *HTTPClientTransport) feedSSEBody(body []byte) {
	scanner := bufio.NewScanner(bytes.NewReader(body))
	var data bytes.Buffer
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "id:"):
			t.mu.Lock()
			t.lastEventID = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
			t.mu.Unlock()
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimPrefix(line, "data:"))
		case line == "" && data.Len() > 0:
			t.push(append([]byte(nil), bytes.TrimSpace(data.Bytes())...))
			data.Reset()
		}
	}
	if data.Len() > 0 {
		t.push(append([]byte(nil), bytes.TrimSpace(data.Bytes())...))
	}
}

// listenSSE maintains the optional background GET stream for
// server-initiated traffic, reconnecting with Last-Event-ID on drop.
func (t *HTTPClientTransport) listenSSE(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := t.runSSEOnce(ctx); err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				continue
			}
		}
	}
}

func (t *HTTPClientTransport) runSSEOnce(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	t.mu.Lock()
	if t.sessionID != "" {
		req.Header.Set(sessionHeader, t.sessionID)
	}
	if t.lastEventID != "" {
		req.Header.Set("Last-Event-ID", t.lastEventID)
	}
	t.mu.Unlock()

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		// GET SSE is optional; a server that doesn't support it (405/404)
		// just means no server-initiated push channel exists yet.
		return fmt.Errorf("mcp: SSE listener got status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStdioLine)
	var data bytes.Buffer
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "id:"):
			t.mu.Lock()
			t.lastEventID = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
			t.mu.Unlock()
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimPrefix(line, "data:"))
		case line == "" && data.Len() > 0:
			t.push(append([]byte(nil), bytes.TrimSpace(data.Bytes())...))
			data.Reset()
		}
	}
	return scanner.Err()
}
