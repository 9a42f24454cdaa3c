package ws

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingSubscriber struct {
	mu      sync.Mutex
	payload [][]byte
	fail    bool
	closed  bool
}

func (s *recordingSubscriber) Send(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("broken pipe")
	}
	s.payload = append(s.payload, append([]byte(nil), p...))
	return nil
}

func (s *recordingSubscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *recordingSubscriber) received() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payload)
}

func (s *recordingSubscriber) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met")
}

func TestHubDeliversOnlyToAddressedUser(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	alice := &recordingSubscriber{}
	bob := &recordingSubscriber{}
	hub.Register("alice", alice)
	hub.Register("bob", bob)

	hub.Broadcast("alice", []byte(`{"type":"message.created"}`))
	waitFor(t, func() bool { return alice.received() == 1 })
	if bob.received() != 0 {
		t.Fatalf("bob should not receive alice's events")
	}
	if !hub.Connected("alice") || hub.Count() != 2 {
		t.Fatalf("unexpected presence: connected=%v count=%d", hub.Connected("alice"), hub.Count())
	}
}

func TestHubDropsFailingSubscribers(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	broken := &recordingSubscriber{fail: true}
	hub.Register("alice", broken)
	waitFor(t, func() bool { return hub.Connected("alice") })

	hub.Broadcast("alice", []byte("x"))
	waitFor(t, func() bool { return !hub.Connected("alice") })
	if !broken.isClosed() {
		t.Fatalf("expected failing subscriber to be closed")
	}
	if hub.Count() != 0 {
		t.Fatalf("expected no streams, got %d", hub.Count())
	}
}

func TestHubUnregisterAndClose(t *testing.T) {
	hub := NewHub()
	sub := &recordingSubscriber{}
	other := &recordingSubscriber{}
	hub.Register("alice", sub)
	hub.Register("alice", sub)
	hub.Register("bob", other)
	waitFor(t, func() bool { return hub.Count() == 2 })

	hub.Unregister("alice", sub)
	waitFor(t, func() bool { return !hub.Connected("alice") })

	hub.Close()
	waitFor(t, func() bool { return other.isClosed() })
	// calls after close must not block
	hub.Broadcast("bob", []byte("late"))
	hub.Register("bob", other)
}
