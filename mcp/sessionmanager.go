package mcp

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// sessionStaleTimeout is how long a session may go without any inbound
// traffic before the cleanup loop reaps it. A fixed constant rather than
// a config knob, since session TTL isn't exposed as a tunable.
const (
	sessionStaleTimeout = 30 * time.Minute
	sessionCleanupTick  = 5 * time.Minute
)

// session is one HTTP-transport-scoped MCP session: the correlated Peer, its
// SSE replay buffer, and bookkeeping for stale-session cleanup.
type session struct {
	id           string
	peer         *Peer
	transport    *httpSessionTransport
	createdAt    time.Time
	lastActivity guardedTime // see note below; kept simple with a mutex instead of atomic.Value
}

// guardedTime is intentionally not atomic.Value-backed: time.Time isn't a
// pointer-sized type safe for naive atomic storage, and this field is
// updated rarely enough (once per inbound request) that a plain mutex of
// its own is simpler and just as correct as a second synchronization
// primitive would be.
type guardedTime struct {
	mu sync.Mutex
	t  time.Time
}

func (a *guardedTime) set(t time.Time) {
	a.mu.Lock()
	a.t = t
	a.mu.Unlock()
}

func (a *guardedTime) get() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.t
}

// SessionManager owns the sessionId -> session map for a stateful HTTP
// server transport, keyed by the "Mcp-Session-Id" header's session
// exclusivity requirement. One manager serves exactly one StreamableHTTP
// listener; a stateless-mode listener does not construct one at all.
//
// Grounded on daemon/services/watchdog/runner.go's ticker + panic-recovered
// tick loop (generalized from health-check execution to stale-session
// eviction) and daemon/services/api/cache_store.go's lock-free-getter style
// (adapted here to a map guarded by a single mutex, since sessions are
// added/removed, not just read, far more often than a fixed cache's fields).
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*session
	order    []string // insertion order, for deterministic iteration/tests

	maxSessions atomic.Int64
	metrics     *Metrics

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewSessionManager constructs a manager. maxSessions <= 0 means unbounded.
func NewSessionManager(maxSessions int, metrics *Metrics) *SessionManager {
	m := &SessionManager{
		sessions: make(map[string]*session),
		metrics:  metrics,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	m.maxSessions.Store(int64(maxSessions))
	return m
}

// SetMaxSessions hot-swaps the session cap (config hot-reload supplement).
func (m *SessionManager) SetMaxSessions(n int) { m.maxSessions.Store(int64(n)) }

// Run starts the stale-session cleanup loop; blocks until ctx is done.
func (m *SessionManager) Run(ctx context.Context) {
	defer close(m.doneCh)
	ticker := time.NewTicker(sessionCleanupTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.cleanupStaleSessions()
		}
	}
}

// Stop ends the cleanup loop and waits for it to exit.
func (m *SessionManager) Stop() {
	close(m.stopCh)
	<-m.doneCh
}

func (m *SessionManager) cleanupStaleSessions() {
	defer func() {
		if r := recover(); r != nil {
			// A cleanup-loop panic must never take the listener down with it.
		}
	}()
	cutoff := time.Now().Add(-sessionStaleTimeout)
	m.mu.Lock()
	var stale []*session
	for _, id := range m.order {
		s, ok := m.sessions[id]
		if ok && s.lastActivity.get().Before(cutoff) {
			stale = append(stale, s)
		}
	}
	m.mu.Unlock()
	for _, s := range stale {
		m.remove(s.id)
		_ = s.peer.Disconnect()
	}
}

// CanAddSession reports whether a new session may be created under the
// configured cap.
func (m *SessionManager) CanAddSession() bool {
	max := m.maxSessions.Load()
	if max <= 0 {
		return true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.sessions)) < max
}

// Store creates and registers a new session bound to peer and its owning
// HTTP transport, returning its freshly minted id.
func (m *SessionManager) Store(peer *Peer, transport *httpSessionTransport) *session {
	id := uuid.NewString()
	s := &session{id: id, peer: peer, transport: transport, createdAt: time.Now()}
	s.lastActivity.set(s.createdAt)
	m.mu.Lock()
	m.sessions[id] = s
	m.order = append(m.order, id)
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.sessionsActive.Inc()
		m.metrics.sessionsTotal.Inc()
	}
	return s
}

// Lookup returns the session for id, or nil if it doesn't exist (an
// unrecognized or already-terminated session id, which callers should
// answer with 404 Not Found).
func (m *SessionManager) Lookup(id string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[id]
	if s != nil {
		s.lastActivity.set(time.Now())
	}
	return s
}

// Remove terminates and forgets a session (DELETE /mcp, or cleanup).
func (m *SessionManager) Remove(id string) { m.remove(id) }

func (m *SessionManager) remove(id string) {
	m.mu.Lock()
	_, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		for i, sid := range m.order {
			if sid == id {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
	m.mu.Unlock()
	if ok && m.metrics != nil {
		m.metrics.sessionsActive.Dec()
	}
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
