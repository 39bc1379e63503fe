package mcp

import (
	"context"
	"testing"
	"time"
)

func TestSessionManagerStoreLookupRemove(t *testing.T) {
	m := NewSessionManager(0, nil)
	s := m.Store(NewPeer(false), nil)
	if s.id == "" {
		t.Fatal("expected a non-empty session id")
	}
	if got := m.Lookup(s.id); got != s {
		t.Fatal("Lookup did not return the stored session")
	}
	if m.Count() != 1 {
		t.Errorf("Count() = %d, want 1", m.Count())
	}

	m.Remove(s.id)
	if m.Lookup(s.id) != nil {
		t.Error("expected Lookup to return nil after Remove")
	}
	if m.Count() != 0 {
		t.Errorf("Count() = %d, want 0 after Remove", m.Count())
	}
}

func TestSessionManagerLookupUnknownIDReturnsNil(t *testing.T) {
	m := NewSessionManager(0, nil)
	if m.Lookup("does-not-exist") != nil {
		t.Error("expected nil for an unrecognized session id")
	}
}

func TestSessionManagerCanAddSessionUnderCap(t *testing.T) {
	m := NewSessionManager(2, nil)
	if !m.CanAddSession() {
		t.Fatal("expected room for the first session")
	}
	m.Store(NewPeer(false), nil)
	if !m.CanAddSession() {
		t.Fatal("expected room for the second session")
	}
	m.Store(NewPeer(false), nil)
	if m.CanAddSession() {
		t.Error("expected the cap to be reached after 2 sessions")
	}
}

func TestSessionManagerUnboundedCap(t *testing.T) {
	m := NewSessionManager(0, nil)
	for i := 0; i < 50; i++ {
		m.Store(NewPeer(false), nil)
	}
	if !m.CanAddSession() {
		t.Error("maxSessions <= 0 should mean unbounded")
	}
}

func TestSessionManagerSetMaxSessionsHotSwap(t *testing.T) {
	m := NewSessionManager(1, nil)
	m.Store(NewPeer(false), nil)
	if m.CanAddSession() {
		t.Fatal("expected the cap of 1 to already be reached")
	}

	m.SetMaxSessions(5)
	if !m.CanAddSession() {
		t.Error("expected room after raising the cap")
	}

	m.SetMaxSessions(1)
	if m.CanAddSession() {
		t.Error("expected the lowered cap to apply immediately")
	}
}

func TestSessionManagerRemoveUnknownIsNoop(t *testing.T) {
	m := NewSessionManager(0, nil)
	m.Remove("never-existed") // must not panic
	if m.Count() != 0 {
		t.Errorf("Count() = %d, want 0", m.Count())
	}
}

func TestSessionManagerCleanupStaleSessions(t *testing.T) {
	m := NewSessionManager(0, nil)
	s := m.Store(NewPeer(false), nil)
	s.lastActivity.set(time.Now().Add(-sessionStaleTimeout - time.Minute))

	m.cleanupStaleSessions()

	if m.Lookup(s.id) != nil {
		t.Error("expected the stale session to be reaped")
	}
}

func TestSessionManagerCleanupKeepsFreshSessions(t *testing.T) {
	m := NewSessionManager(0, nil)
	s := m.Store(NewPeer(false), nil)

	m.cleanupStaleSessions()

	if m.Lookup(s.id) == nil {
		t.Error("expected a freshly created session to survive cleanup")
	}
}

func TestSessionManagerRunStopsOnContextCancel(t *testing.T) {
	m := NewSessionManager(0, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run never returned after context cancellation")
	}
}

func TestSessionManagerStop(t *testing.T) {
	m := NewSessionManager(0, nil)
	done := make(chan struct{})
	go func() {
		m.Run(context.Background())
		close(done)
	}()

	m.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run never returned after Stop")
	}
}
