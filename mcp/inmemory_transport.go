package mcp

import (
	"errors"
	"sync"
)

// inMemoryChannel is one direction of a NewInMemoryTransportPair, shared
// between the sender's send field and the receiver's recv field. Closing
// it is idempotent (via once) since both the sender and the receiver ends
// can independently call Disconnect and each needs to close it exactly
// once: the receiver closes it to unblock its own readLoop, the sender
// closes it to propagate end-of-stream to the peer.
type inMemoryChannel struct {
	ch     chan []byte
	once   sync.Once
	closed bool
	mu     sync.Mutex
}

func newInMemoryChannel(buf int) *inMemoryChannel {
	return &inMemoryChannel{ch: make(chan []byte, buf)}
}

func (c *inMemoryChannel) close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.ch)
	})
}

func (c *inMemoryChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// NewInMemoryTransportPair returns two Transports cross-wired so everything
// sent on one arrives, in order, on the other's Receive channel. Useful for
// exercising a Client/Server pair without a real process boundary.
//
// Grounded on the need for an in-process client/server pair over a paired
// transport for tests; the shape follows a channel-based test double
// in daemon/services/mcp/server_test.go, generalized to the Transport
// interface.
func NewInMemoryTransportPair() (a, b *InMemoryTransport) {
	ab := newInMemoryChannel(64)
	ba := newInMemoryChannel(64)
	a = &InMemoryTransport{send: ab, recv: ba}
	b = &InMemoryTransport{send: ba, recv: ab}
	return a, b
}

// InMemoryTransport is one end of a NewInMemoryTransportPair.
type InMemoryTransport struct {
	mu     sync.Mutex
	closed bool

	send *inMemoryChannel
	recv *inMemoryChannel
}

func (t *InMemoryTransport) Connect() error { return nil }

// Disconnect closes both directions of this end: recv so this transport's
// own readLoop unblocks and returns regardless of what the remote side
// does, and send so the remote side observes end-of-stream too. Safe to
// call even if the remote side already closed send, or already
// disconnected itself.
func (t *InMemoryTransport) Disconnect() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()
	t.recv.close()
	t.send.close()
	return nil
}

func (t *InMemoryTransport) Send(raw []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.send.isClosed() {
		return errors.New("mcp: in-memory transport closed")
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	t.send.ch <- cp
	return nil
}

func (t *InMemoryTransport) Receive() <-chan []byte { return t.recv.ch }
