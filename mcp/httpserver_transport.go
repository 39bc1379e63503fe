package mcp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
)

// httpSessionTransport is the Transport a single HTTP session's Peer is
// Connect()-ed to. Inbound POST bodies are pushed onto recv for the peer's
// reader loop to dispatch; Send sniffs whether the outgoing envelope is a
// response correlated to a POST currently blocked waiting (handed back
// synchronously) or a server-initiated request/notification, which has
// nowhere to go but the session's SSE replay buffer.
//
// Grounded on daemon/services/mcp/streamable_http.go's StreamableHTTPTransport
// Send method (response-map-or-broadcast branch), generalized from its
// single-session design to one instance per SessionManager entry.
type httpSessionTransport struct {
	mu      sync.Mutex
	pending map[string]chan []byte
	recv    chan []byte
	closed  bool

	sse *replayBuffer
}

func newHTTPSessionTransport(metrics *Metrics) *httpSessionTransport {
	t := &httpSessionTransport{
		pending: make(map[string]chan []byte),
		recv:    make(chan []byte, 32),
	}
	var onEvict func()
	if metrics != nil {
		onEvict = metrics.replayBufferEvictions.Inc
	}
	t.sse = newReplayBuffer(onEvict)
	return t
}

func (t *httpSessionTransport) Connect() error    { return nil }
func (t *httpSessionTransport) Receive() <-chan []byte { return t.recv }

func (t *httpSessionTransport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.recv)
	return nil
}

// awaitResponse registers a correlation channel for id and returns it; the
// HTTP handler blocked on a POST request reads from it.
func (t *httpSessionTransport) awaitResponse(id RequestId) chan []byte {
	ch := make(chan []byte, 1)
	t.mu.Lock()
	t.pending[id.String()] = ch
	t.mu.Unlock()
	return ch
}

func (t *httpSessionTransport) forgetResponse(id RequestId) {
	t.mu.Lock()
	delete(t.pending, id.String())
	t.mu.Unlock()
}

// deliver pushes an inbound POST body onto the peer's reader loop.
func (t *httpSessionTransport) deliver(raw []byte) bool {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return false
	}
	t.recv <- raw
	return true
}

func (t *httpSessionTransport) Send(raw []byte) error {
	env, err := Decode(raw)
	if err == nil && env.Response != nil {
		key := env.Response.ID.String()
		t.mu.Lock()
		ch, ok := t.pending[key]
		t.mu.Unlock()
		if ok {
			ch <- raw
			return nil
		}
	}
	// Server-initiated request/notification, or a response whose POST
	// caller already gave up: only the SSE stream can carry it now.
	t.sse.Publish(raw)
	return nil
}

// HTTPServerTransportConfig configures one StreamableHTTP listener.
type HTTPServerTransportConfig struct {
	// Path is the single MCP endpoint path (e.g. "/mcp").
	Path string
	// Stateless disables session tracking: every request is handled with a
	// fresh, throwaway Peer. Suits deployments behind a load balancer with
	// no sticky sessions.
	Stateless bool
	// MaxSessions caps concurrent sessions; 0 means unbounded.
	MaxSessions int
	// HostPolicy is the DNS-rebinding guard applied to every request.
	HostPolicy HostPolicy
	Metrics    *Metrics
}

// HTTPServerTransport is the Streamable HTTP listener: POST/GET/DELETE on
// one path, session correlation via Mcp-Session-Id, SSE for server-initiated
// traffic and resumable replay.
//
// It is not itself an mcp.Transport — a listener serves many sessions, each
// with its own Peer and httpSessionTransport. Instead it's the thing that
// mints those per-session pairs and wires them to an http.Handler, grounded
// on StreamableHTTPTransport.Handler()/handlePost/handleGet/handleDelete
// split.
type HTTPServerTransport struct {
	cfg      HTTPServerTransportConfig
	sessions *SessionManager
	newPeer  func() *Peer
	router   *mux.Router

	hostPolicy atomic.Pointer[HostPolicy] // live value; SetHostPolicy hot-swaps it
}

// NewHTTPServerTransport builds the listener. newPeer must return a fresh,
// unconnected, fully handler-registered Peer (typically by constructing a
// *Server and returning Server.Peer()) each time a new session is needed.
func NewHTTPServerTransport(cfg HTTPServerTransportConfig, newPeer func() *Peer) *HTTPServerTransport {
	h := &HTTPServerTransport{
		cfg:     cfg,
		newPeer: newPeer,
		router:  mux.NewRouter(),
	}
	h.hostPolicy.Store(&cfg.HostPolicy)
	if !cfg.Stateless {
		h.sessions = NewSessionManager(cfg.MaxSessions, cfg.Metrics)
	}
	h.router.Use(func(next http.Handler) http.Handler {
		return hostPolicyMiddleware(h.currentHostPolicy, cfg.Metrics, next)
	})
	h.router.Use(recoveryMiddleware)
	h.router.HandleFunc(cfg.Path, h.handle).Methods(http.MethodPost, http.MethodGet, http.MethodDelete, http.MethodOptions)
	return h
}

func (h *HTTPServerTransport) currentHostPolicy() HostPolicy { return *h.hostPolicy.Load() }

// SetHostPolicy hot-swaps the DNS-rebinding policy applied to subsequent
// requests, letting a config-file watcher apply an updated allow-list
// without restarting the listener.
func (h *HTTPServerTransport) SetHostPolicy(p HostPolicy) { h.hostPolicy.Store(&p) }

// SetMaxSessions hot-swaps the concurrent session cap; a no-op in stateless
// mode, where there is no SessionManager to bound.
func (h *HTTPServerTransport) SetMaxSessions(n int) {
	if h.sessions != nil {
		h.sessions.SetMaxSessions(n)
	}
}

// Handler returns the net/http.Handler to mount (directly, or behind your
// own mux/middleware stack).
func (h *HTTPServerTransport) Handler() http.Handler { return h.router }

// Run starts the SessionManager's stale-session cleanup loop and blocks
// until ctx is cancelled. Only meaningful in stateful mode; a no-op
// otherwise.
func (h *HTTPServerTransport) Run(ctx context.Context) {
	if h.sessions == nil {
		<-ctx.Done()
		return
	}
	h.sessions.Run(ctx)
}

func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recover() != nil {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

const sessionHeader = "Mcp-Session-Id"
const protocolVersionHeader = "MCP-Protocol-Version"

func (h *HTTPServerTransport) handle(w http.ResponseWriter, r *http.Request) {
	setStreamableCORSHeaders(w)
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodGet:
		h.handleGet(w, r)
	case http.MethodDelete:
		h.handleDelete(w, r)
	}
}

func setStreamableCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Mcp-Session-Id, MCP-Protocol-Version, Last-Event-ID")
	w.Header().Set("Access-Control-Expose-Headers", "Mcp-Session-Id")
}

func (h *HTTPServerTransport) resolveSession(w http.ResponseWriter, r *http.Request, creating bool) (*session, bool) {
	if h.sessions == nil {
		return nil, true // stateless mode: caller builds a throwaway peer instead
	}
	id := r.Header.Get(sessionHeader)
	if id == "" {
		if creating {
			return nil, true
		}
		http.Error(w, "Missing "+sessionHeader, http.StatusBadRequest)
		return nil, false
	}
	s := h.sessions.Lookup(id)
	if s == nil {
		http.Error(w, "Session not found or expired", http.StatusNotFound)
		return nil, false
	}
	return s, true
}

func (h *HTTPServerTransport) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 32<<20))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	single, batch, decErr := DecodeAny(body)
	if decErr != nil {
		http.Error(w, "malformed JSON-RPC body", http.StatusBadRequest)
		return
	}

	isInitialize := single != nil && single.Request != nil && single.Request.Method == "initialize"

	sess, ok := h.resolveSession(w, r, isInitialize)
	if !ok {
		return
	}
	if sess == nil && h.sessions != nil {
		// Fresh stateful session, minted on this initialize call.
		if !h.sessions.CanAddSession() {
			http.Error(w, "too many sessions", http.StatusServiceUnavailable)
			return
		}
		transport := newHTTPSessionTransport(h.cfg.Metrics)
		peer := h.newPeer()
		if err := peer.Connect(transport); err != nil {
			http.Error(w, "failed to start session", http.StatusInternalServerError)
			return
		}
		sess = h.sessions.Store(peer, transport)
	}

	var transport *httpSessionTransport
	var peer *Peer
	if sess != nil {
		transport, peer = sess.transport, sess.peer
	} else {
		// Stateless mode: one throwaway peer per request.
		transport = newHTTPSessionTransport(h.cfg.Metrics)
		peer = h.newPeer()
		// The throwaway peer never saw this client's initialize: take the
		// version from the request header, or the default when it is absent.
		peer.negotiatedVersion = r.Header.Get(protocolVersionHeader)
		if peer.negotiatedVersion == "" {
			peer.negotiatedVersion = DefaultProtocolVersion
		}
		if err := peer.Connect(transport); err != nil {
			http.Error(w, "failed to start request", http.StatusInternalServerError)
			return
		}
		defer peer.Disconnect()
	}

	switch {
	case batch != nil:
		h.servePostBatch(w, r, transport, batch)
	case single.Notification != nil:
		transport.deliver(body)
		w.WriteHeader(http.StatusAccepted)
	case single.Request != nil:
		if sess != nil {
			w.Header().Set(sessionHeader, sess.id)
		}
		h.servePostRequest(w, r, transport, single.Request, body)
	default:
		// A bare Response posted back by a client answering a
		// server-initiated request: deliver and acknowledge.
		transport.deliver(body)
		w.WriteHeader(http.StatusAccepted)
	}
}

func (h *HTTPServerTransport) servePostRequest(w http.ResponseWriter, r *http.Request, transport *httpSessionTransport, req *Request, body []byte) {
	ch := transport.awaitResponse(req.ID)
	defer transport.forgetResponse(req.ID)
	if !transport.deliver(body) {
		http.Error(w, "session closed", http.StatusNotFound)
		return
	}
	select {
	case raw := <-ch:
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(raw)
	case <-r.Context().Done():
	}
}

func (h *HTTPServerTransport) servePostBatch(w http.ResponseWriter, r *http.Request, transport *httpSessionTransport, batch Batch) {
	type waiter struct {
		id RequestId
		ch chan []byte
	}
	var waiters []waiter
	for _, item := range batch {
		if item.Err != nil || item.Envelope == nil || item.Envelope.Request == nil {
			continue
		}
		req := item.Envelope.Request
		waiters = append(waiters, waiter{id: req.ID, ch: transport.awaitResponse(req.ID)})
	}
	defer func() {
		for _, wtr := range waiters {
			transport.forgetResponse(wtr.id)
		}
	}()

	for _, item := range batch {
		if item.Envelope == nil {
			continue
		}
		b, encErr := Encode(item.Envelope)
		if encErr != nil {
			continue
		}
		transport.deliver(b)
	}

	if len(waiters) == 0 {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	responses := make([]json.RawMessage, 0, len(waiters))
	for _, wtr := range waiters {
		select {
		case raw := <-wtr.ch:
			responses = append(responses, raw)
		case <-r.Context().Done():
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	out, _ := json.Marshal(responses)
	_, _ = w.Write(out)
}

func (h *HTTPServerTransport) handleGet(w http.ResponseWriter, r *http.Request) {
	if !strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		http.Error(w, "Accept header must include text/event-stream", http.StatusNotAcceptable)
		return
	}
	sess, ok := h.resolveSession(w, r, false)
	if !ok {
		return
	}
	if sess == nil {
		http.Error(w, "GET requires an established session", http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set(sessionHeader, sess.id)
	w.WriteHeader(http.StatusOK)

	var afterID uint64
	if last := r.Header.Get("Last-Event-ID"); last != "" {
		if v, err := strconv.ParseUint(last, 10, 64); err == nil {
			afterID = v
		}
	}
	for _, ev := range sess.transport.sse.ReplaySince(afterID) {
		writeSSEEvent(w, ev)
	}
	flusher.Flush()

	if h.cfg.Metrics != nil {
		h.cfg.Metrics.sseConnectionsActive.Inc()
		defer h.cfg.Metrics.sseConnectionsActive.Dec()
	}

	ch, _, detach := sess.transport.sse.Attach()
	defer detach()
	keepalive := time.NewTicker(20 * time.Second)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			writeSSEEvent(w, ev)
			flusher.Flush()
		case <-keepalive.C:
			_, _ = w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, ev sseEvent) {
	_, _ = w.Write([]byte("id: " + strconv.FormatUint(ev.id, 10) + "\nevent: message\ndata: "))
	_, _ = w.Write(ev.data)
	_, _ = w.Write([]byte("\n\n"))
}

func (h *HTTPServerTransport) handleDelete(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.resolveSession(w, r, false)
	if !ok {
		return
	}
	if sess == nil {
		http.Error(w, "Missing "+sessionHeader, http.StatusBadRequest)
		return
	}
	h.sessions.Remove(sess.id)
	_ = sess.peer.Disconnect()
	w.WriteHeader(http.StatusOK)
}
