package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cskr/pubsub"
)

// HandlerContext is passed to every inbound request handler. It carries the
// request id (for diagnostics), a cancellation flag linked to an inbound
// notifications/cancelled with that id, the caller's progress token (if
// any), and a function to push progress notifications back to the caller.
//
// Grounded on dominicnunez-codex-sdk-go/dispatch.go's per-request handler
// context, extended with the progress-token plumbing a streaming-progress
// capability requires.
type HandlerContext struct {
	RequestID      RequestId
	ctx            context.Context
	cancel         context.CancelCauseFunc
	progressToken  *progressToken
	peer           *Peer
}

// Context returns a context.Context cancelled when the peer receives a
// notifications/cancelled for this request, or when the peer disconnects.
func (h *HandlerContext) Context() context.Context { return h.ctx }

// Cancelled reports whether the handler should stop work now.
func (h *HandlerContext) Cancelled() bool {
	select {
	case <-h.ctx.Done():
		return true
	default:
		return false
	}
}

// SendProgress emits a notifications/progress update for this request, if
// the caller supplied a progress token in _meta. It is a no-op otherwise.
func (h *HandlerContext) SendProgress(progress, total float64, message string) {
	if h.progressToken == nil {
		return
	}
	params := ProgressParams{ProgressToken: h.progressToken.raw, Progress: progress, Total: total, Message: message}
	_ = SendNotification(h.peer, MethodNotificationsProgress, params)
}

// pendingRequest tracks one outstanding outbound request.
type pendingRequest struct {
	id        RequestId
	resultCh  chan pendingResult
	cancelled atomic.Bool
	timer     *time.Timer
}

type pendingResult struct {
	raw json.RawMessage
	err error
}

// inboundInflight tracks one inbound request this peer is currently
// handling, so an inbound notifications/cancelled can reach it.
type inboundInflight struct {
	cancel context.CancelCauseFunc
}

// Peer is the symmetric protocol engine shared by the client and server
// roles: an outbound pending-request table, an inbound handler registry,
// and the transport plumbing connecting them. Role differences (client vs
// server) reduce to which handlers and which handshake logic a thin facade
// installs — see client.go and server.go.
//
// Grounded on dominicnunez-codex-sdk-go's Client (dispatch.go + client.go),
// generalized from client-only to a symmetric bidirectional peer, and on
// transport.go's int64-keyed responseMap pattern, generalized to the
// RequestId union.
type Peer struct {
	transport Transport

	mu             sync.Mutex
	nextID         int64
	pending        map[string]*pendingRequest // key: id.String()
	inflight       map[string]*inboundInflight
	requestHandlers map[string]requestHandlerFunc

	notifyMu    sync.RWMutex
	notifyBus   *pubsub.PubSub
	notifySubs  map[string][]chan any // method -> subscriber channels, for unregistration bookkeeping

	// localClientCaps/localServerCaps are what THIS peer advertises (only
	// one is populated, depending on role). remoteClientCaps/remoteServerCaps
	// are what the OTHER side advertised, learned during the initialize
	// handshake (handshake.go).
	localClientCaps  *ClientCapabilities
	localServerCaps  *ServerCapabilities
	remoteClientCaps *ClientCapabilities
	remoteServerCaps *ServerCapabilities

	negotiatedVersion string
	strictMode        bool
	role              peerRole

	// minLogLevel is the threshold set by the client via logging/setLevel,
	// guarded by mu like the rest of this struct's mutable fields. Empty
	// means "use the default".
	minLogLevel string

	initialized atomic.Bool
	closed      atomic.Bool
	closeOnce   sync.Once
	readerDone  chan struct{}

	progress *progressRegistry

	logFunc func(format string, args ...any)

	// metrics hooks, optional. See metrics.go for the prometheus-backed
	// implementation wired in by cmd/serve.go.
	onDispatch func(method string, kind string)
}

type peerRole int

const (
	roleClient peerRole = iota
	roleServer
)

// NewPeer constructs an unconnected Peer. Call Connect to start the reader
// loop and (for the client role) the initialize handshake.
func NewPeer(strict bool) *Peer {
	return &Peer{
		pending:         make(map[string]*pendingRequest),
		inflight:        make(map[string]*inboundInflight),
		requestHandlers: make(map[string]requestHandlerFunc),
		notifyBus:       pubsub.New(8),
		notifySubs:      make(map[string][]chan any),
		strictMode:      strict,
		readerDone:      make(chan struct{}),
		logFunc:         func(string, ...any) {},
		progress:        newProgressRegistry(),
	}
}

// SubscribeProgress registers fn to receive notifications/progress updates
// whose progressToken matches token. Call UnsubscribeProgress when the
// associated request finishes (succeeds, fails, or is cancelled).
func (p *Peer) SubscribeProgress(token Value, fn func(ProgressParams)) { p.progress.subscribe(token, fn) }

// UnsubscribeProgress removes a prior SubscribeProgress registration.
func (p *Peer) UnsubscribeProgress(token Value) { p.progress.unsubscribe(token) }

func (p *Peer) logf(format string, args ...any) { p.logFunc(format, args...) }

// SetLogger installs the logging sink used for dropped/stray messages and
// handler panics. Defaults to a no-op.
func (p *Peer) SetLogger(f func(format string, args ...any)) { p.logFunc = f }

// SetDispatchHook installs a callback invoked once per inbound dispatch,
// used by cmd/serve.go to feed prometheus counters (metrics.go).
func (p *Peer) SetDispatchHook(f func(method, kind string)) { p.onDispatch = f }

// Done returns a channel closed once the reader loop has exited, either
// because Disconnect was called or because the transport's Receive
// sequence ended on its own (e.g. stdin EOF). A command-line entry point
// blocks on this to know when to return.
func (p *Peer) Done() <-chan struct{} { return p.readerDone }

func (p *Peer) registerRequestHandler(name string, h requestHandlerFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requestHandlers[name] = h
}

func (p *Peer) registerNotificationHandler(name string, h notificationHandlerFunc) {
	ch := p.notifyBus.Sub(name)
	p.notifyMu.Lock()
	p.notifySubs[name] = append(p.notifySubs[name], ch)
	p.notifyMu.Unlock()
	go func() {
		for msg := range ch {
			raw, _ := msg.(json.RawMessage)
			func() {
				defer func() {
					if r := recover(); r != nil {
						p.logf("mcp: notification handler for %s panicked: %v", name, r)
					}
				}()
				h(raw)
			}()
		}
	}()
}

// Connect attaches transport and starts the reader pump. It does not block;
// inbound messages are dispatched from a background goroutine until the
// transport's receive sequence ends or Disconnect is called.
func (p *Peer) Connect(transport Transport) error {
	if err := transport.Connect(); err != nil {
		return err
	}
	p.transport = transport
	go p.readLoop()
	return nil
}

// Disconnect ends the inbound sequence and fails all pending requests with
// connectionClosed.
func (p *Peer) Disconnect() error {
	var err error
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		if p.transport != nil {
			err = p.transport.Disconnect()
		}
		p.failAllPending(ErrConnectionClosed())
		p.mu.Lock()
		for _, in := range p.inflight {
			in.cancel(ErrConnectionClosed())
		}
		p.mu.Unlock()
		p.notifyMu.Lock()
		for _, subs := range p.notifySubs {
			for _, ch := range subs {
				p.notifyBus.Unsub(ch)
			}
		}
		p.notifySubs = make(map[string][]chan any)
		p.notifyMu.Unlock()
	})
	<-p.readerDone
	return err
}

func (p *Peer) failAllPending(protoErr *ProtocolError) {
	p.mu.Lock()
	pendingCopy := make([]*pendingRequest, 0, len(p.pending))
	for _, pr := range p.pending {
		pendingCopy = append(pendingCopy, pr)
	}
	p.pending = make(map[string]*pendingRequest)
	p.mu.Unlock()

	for _, pr := range pendingCopy {
		if pr.timer != nil {
			pr.timer.Stop()
		}
		select {
		case pr.resultCh <- pendingResult{err: protoErr}:
		default:
		}
	}
}

func (p *Peer) readLoop() {
	defer close(p.readerDone)
	for raw := range p.transport.Receive() {
		p.dispatch(raw)
	}
	if p.closed.Load() {
		return
	}
	// Receive channel closed without a local Disconnect: either a clean
	// remote disconnect, or (for transports implementing ReceiveErrorer) a
	// malformed/oversize inbound message that aborted the read side.
	if re, ok := p.transport.(ReceiveErrorer); ok {
		if err := re.ReceiveErr(); err != nil {
			p.failAllPending(ErrTransportError(err.Error()))
			return
		}
	}
	p.failAllPending(ErrConnectionClosed())
}

// dispatch implements the inbound message dispatch algorithm: decode, then
// route to a single envelope or fan out across a batch.
func (p *Peer) dispatch(raw []byte) {
	single, batch, err := DecodeAny(raw)
	if err != nil {
		p.handleDecodeError(err)
		return
	}
	if batch != nil {
		for _, item := range batch {
			if item.Err != nil {
				p.handleDecodeError(item.Err)
				continue
			}
			p.dispatchEnvelope(item.Envelope)
		}
		return
	}
	p.dispatchEnvelope(single)
}

func (p *Peer) handleDecodeError(err error) {
	de, ok := err.(*DecodeError)
	if !ok {
		p.logf("mcp: decode error: %v", err)
		return
	}
	// A message that cannot be parsed as a valid envelope at all gets an
	// error reply per JSON-RPC 2.0 (id: null, since
	// a malformed id can't be trusted enough to echo back), rather than
	// being silently dropped. A recognizable id (Partial set) is echoed so
	// the caller can still correlate it.
	id := RequestId{}
	if de.Partial != nil && de.Partial.Request != nil {
		id = de.Partial.Request.ID
	}
	p.logf("mcp: replying to unparseable message: %v", de.Proto)
	p.replyError(id, de.Proto)
}

func (p *Peer) dispatchEnvelope(env *Envelope) {
	switch {
	case env.Response != nil:
		p.handleResponse(env.Response)
	case env.Request != nil:
		go p.handleRequest(env.Request)
	case env.Notification != nil:
		p.handleNotification(env.Notification)
	}
}

func (p *Peer) handleResponse(resp *Response) {
	key := resp.ID.String()
	p.mu.Lock()
	pr, ok := p.pending[key]
	if ok {
		delete(p.pending, key)
	}
	p.mu.Unlock()
	if !ok {
		p.logf("mcp: dropping stray response for id %s", key)
		return
	}
	if pr.timer != nil {
		pr.timer.Stop()
	}
	if resp.Error != nil {
		select {
		case pr.resultCh <- pendingResult{err: resp.Error}:
		default:
		}
		return
	}
	select {
	case pr.resultCh <- pendingResult{raw: resp.Result}:
	default:
	}
}

func (p *Peer) handleRequest(req *Request) {
	if p.onDispatch != nil {
		p.onDispatch(req.Method, "request")
	}
	if p.role == roleServer && req.Method != "initialize" && p.negotiatedVersion == "" {
		p.replyError(req.ID, ErrInvalidRequest("initialize must complete before "+req.Method))
		return
	}
	if !p.checkInboundCapability(req.Method) {
		p.replyError(req.ID, ErrMethodNotFound(req.Method))
		return
	}
	p.mu.Lock()
	handler, ok := p.requestHandlers[req.Method]
	p.mu.Unlock()
	if !ok {
		p.replyError(req.ID, ErrMethodNotFound(req.Method))
		return
	}

	hctx, cancel := context.WithCancelCause(context.Background())
	key := req.ID.String()
	p.mu.Lock()
	p.inflight[key] = &inboundInflight{cancel: cancel}
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.inflight, key)
		p.mu.Unlock()
	}()

	hc := &HandlerContext{RequestID: req.ID, ctx: hctx, cancel: cancel, peer: p}
	if tok := extractProgressToken(req.Meta); tok != nil {
		hc.progressToken = tok
	}

	result, err := p.invokeHandler(handler, hc, req.Params)

	if hc.Cancelled() {
		// A cancelled handler's return value is discarded; no response is
		// emitted.
		return
	}
	if err != nil {
		p.replyError(req.ID, AsProtocolError(err))
		return
	}
	p.replySuccess(req.ID, result)
}

func (p *Peer) invokeHandler(handler requestHandlerFunc, hc *HandlerContext, params json.RawMessage) (raw json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrInternalError(fmt.Sprintf("handler panic: %v", r))
		}
	}()
	return handler(hc, params)
}

func (p *Peer) handleNotification(n *Notification) {
	if p.onDispatch != nil {
		p.onDispatch(n.Method, "notification")
	}
	switch n.Method {
	case methodNotificationsCancelled:
		p.handleInboundCancel(n.Params)
		return
	case methodNotificationsProgress:
		p.handleInboundProgress(n.Params)
		return
	}
	p.notifyBus.Pub(n.Params, n.Method)
}

func (p *Peer) handleInboundProgress(raw json.RawMessage) {
	var params ProgressParams
	if err := json.Unmarshal(raw, &params); err != nil {
		p.logf("mcp: malformed notifications/progress: %v", err)
		return
	}
	p.progress.dispatch(params)
}

func (p *Peer) handleInboundCancel(raw json.RawMessage) {
	var params CancelledParams
	if err := json.Unmarshal(raw, &params); err != nil {
		p.logf("mcp: malformed notifications/cancelled: %v", err)
		return
	}
	id, err := idFromValue(params.RequestID)
	if err != nil {
		return
	}
	key := id.String()
	p.mu.Lock()
	inflight, ok := p.inflight[key]
	p.mu.Unlock()
	if ok {
		inflight.cancel(ErrRequestCancelled())
	}
}

func (p *Peer) replySuccess(id RequestId, result json.RawMessage) {
	p.writeEnvelope(&Envelope{Response: &Response{ID: id, Result: result}})
}

func (p *Peer) replyError(id RequestId, protoErr *ProtocolError) {
	p.writeEnvelope(&Envelope{Response: &Response{ID: id, Error: protoErr}})
}

func (p *Peer) writeEnvelope(env *Envelope) {
	raw, err := Encode(env)
	if err != nil {
		p.logf("mcp: encode error: %v", err)
		return
	}
	if err := p.transport.Send(raw); err != nil {
		p.logf("mcp: send error: %v", err)
	}
}

// sendRequestRaw assigns a fresh id, records the pending entry, writes the
// request, and blocks until the matching response, a timeout, or ctx
// cancellation. Zero timeout disables the deadline (ctx cancellation still
// applies).
func (p *Peer) sendRequestRaw(ctx context.Context, method string, params json.RawMessage, timeout time.Duration) (json.RawMessage, error) {
	if p.closed.Load() {
		return nil, ErrConnectionClosed()
	}
	if err := p.requireInitialized(method); err != nil {
		return nil, err
	}
	if err := p.checkOutboundCapability(method); err != nil {
		return nil, err
	}
	id := p.nextRequestID()
	pr := &pendingRequest{id: id, resultCh: make(chan pendingResult, 1)}
	key := id.String()
	p.mu.Lock()
	p.pending[key] = pr
	p.mu.Unlock()

	if timeout > 0 {
		pr.timer = time.AfterFunc(timeout, func() { p.timeoutRequest(key) })
	}

	raw, err := EncodeRequest(&Request{ID: id, Method: method, Params: params})
	if err != nil {
		p.removePending(key)
		return nil, err
	}
	if err := p.transport.Send(raw); err != nil {
		p.removePending(key)
		return nil, ErrTransportError(err.Error())
	}

	select {
	case res := <-pr.resultCh:
		return res.raw, res.err
	case <-ctx.Done():
		p.Cancel(id)
		return nil, ErrRequestCancelled()
	}
}

func (p *Peer) removePending(key string) *pendingRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	pr := p.pending[key]
	delete(p.pending, key)
	return pr
}

func (p *Peer) timeoutRequest(key string) {
	pr := p.removePending(key)
	if pr == nil {
		return
	}
	_ = p.sendCancelNotification(pr.id)
	select {
	case pr.resultCh <- pendingResult{err: ErrRequestTimeout()}:
	default:
	}
}

// Cancel marks the local pending request cancelled, resolves its waiter
// with requestCancelled, and emits notifications/cancelled. Idempotent: a
// second call for the same id (already removed from pending) is a no-op.
func (p *Peer) Cancel(id RequestId) {
	key := id.String()
	pr := p.removePending(key)
	if pr == nil {
		return
	}
	if !pr.cancelled.CompareAndSwap(false, true) {
		return
	}
	if pr.timer != nil {
		pr.timer.Stop()
	}
	_ = p.sendCancelNotification(id)
	select {
	case pr.resultCh <- pendingResult{err: ErrRequestCancelled()}:
	default:
	}
}

func (p *Peer) sendCancelNotification(id RequestId) error {
	return p.sendNotificationRaw(methodNotificationsCancelled, mustMarshal(CancelledParams{RequestID: idToValue(id)}))
}

func (p *Peer) sendNotificationRaw(method string, params json.RawMessage) error {
	if p.closed.Load() {
		return ErrConnectionClosed()
	}
	raw, err := EncodeNotification(&Notification{Method: method, Params: params})
	if err != nil {
		return err
	}
	if err := p.transport.Send(raw); err != nil {
		return ErrTransportError(err.Error())
	}
	return nil
}

func (p *Peer) nextRequestID() RequestId {
	return IntID(atomic.AddInt64(&p.nextID, 1))
}

func mustMarshal(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return raw
}
