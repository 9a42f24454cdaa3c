package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/splax/gigboard/internal/ws"
)

type captureSubscriber struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *captureSubscriber) Send(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, append([]byte(nil), p...))
	return nil
}

func (c *captureSubscriber) Close() {}

func (c *captureSubscriber) snapshot() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.frames...)
}

// leaseStore mimics the shared presence sets with an adjustable clock.
type leaseStore struct {
	mu     sync.Mutex
	now    time.Time
	leases map[string]map[string]time.Time
}

func newLeaseStore() *leaseStore {
	return &leaseStore{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), leases: map[string]map[string]time.Time{}}
}

func (s *leaseStore) advance(d time.Duration) {
	s.mu.Lock()
	s.now = s.now.Add(d)
	s.mu.Unlock()
}

type loopbackRelay struct {
	mu        sync.Mutex
	published [][]byte
	failPub   bool
	handler   chan func([]byte)
	store     *leaseStore
	replica   string
	releases  int
}

func newLoopbackRelay() *loopbackRelay {
	return newReplicaRelay(newLeaseStore(), "replica-a")
}

func newReplicaRelay(store *leaseStore, replica string) *loopbackRelay {
	return &loopbackRelay{handler: make(chan func([]byte), 1), store: store, replica: replica}
}

func (r *loopbackRelay) Publish(ctx context.Context, payload []byte) error {
	if r.failPub {
		return errors.New("redis down")
	}
	r.mu.Lock()
	r.published = append(r.published, payload)
	r.mu.Unlock()
	return nil
}

func (r *loopbackRelay) Subscribe(ctx context.Context, handler func([]byte)) error {
	r.handler <- handler
	<-ctx.Done()
	return nil
}

func (r *loopbackRelay) Touch(ctx context.Context, userIDs []string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, userID := range userIDs {
		if r.store.leases[userID] == nil {
			r.store.leases[userID] = map[string]time.Time{}
		}
		r.store.leases[userID][r.replica] = r.store.now.Add(PresenceTTL)
	}
	return nil
}

func (r *loopbackRelay) Release(ctx context.Context, userID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.leases[userID], r.replica)
	r.mu.Lock()
	r.releases++
	r.mu.Unlock()
	return nil
}

func (r *loopbackRelay) Online(ctx context.Context, userID string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, expires := range r.store.leases[userID] {
		if expires.After(r.store.now) {
			return true, nil
		}
	}
	return false, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBrokerPublishesLocallyWithoutRelay(t *testing.T) {
	hub := ws.NewHub()
	defer hub.Close()
	broker := NewBroker(hub, nil, discardLogger())
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	broker.now = func() time.Time { return fixed }

	sub := &captureSubscriber{}
	broker.Attach(context.Background(), "user-1", sub)
	require.Eventually(t, func() bool { return broker.Connected(context.Background(), "user-1") }, time.Second, 5*time.Millisecond)

	require.NoError(t, broker.Publish(context.Background(), "user-1", EventMessageCreated, map[string]string{"body": "hi"}))
	require.Eventually(t, func() bool { return len(sub.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	var evt Event
	require.NoError(t, json.Unmarshal(sub.snapshot()[0], &evt))
	require.Equal(t, EventMessageCreated, evt.Type)
	require.Equal(t, "user-1", evt.UserID)
	require.True(t, evt.At.Equal(fixed))
	require.JSONEq(t, `{"body":"hi"}`, string(evt.Data))
}

func TestBrokerRejectsEmptyUser(t *testing.T) {
	hub := ws.NewHub()
	defer hub.Close()
	broker := NewBroker(hub, nil, discardLogger())
	require.Error(t, broker.Publish(context.Background(), "", EventMessageCreated, nil))
}

func TestBrokerRoutesThroughRelay(t *testing.T) {
	hub := ws.NewHub()
	defer hub.Close()
	relay := newLoopbackRelay()
	broker := NewBroker(hub, relay, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = broker.Run(ctx) }()
	handler := <-relay.handler

	sub := &captureSubscriber{}
	broker.Attach(ctx, "user-2", sub)
	require.NoError(t, broker.Publish(ctx, "user-2", EventNotificationCreated, map[string]int{"n": 1}))

	relay.mu.Lock()
	require.Len(t, relay.published, 1)
	payload := relay.published[0]
	relay.mu.Unlock()
	// nothing is delivered until the relay echoes the payload back
	require.Empty(t, sub.snapshot())

	handler(payload)
	handler([]byte("not json"))
	require.Eventually(t, func() bool { return len(sub.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	online, _ := relay.Online(ctx, "user-2")
	require.True(t, online)
	broker.Detach(ctx, "user-2", sub)
	online, _ = relay.Online(ctx, "user-2")
	require.False(t, online)
}

func TestBrokerFallsBackToHubWhenRelayFails(t *testing.T) {
	hub := ws.NewHub()
	defer hub.Close()
	relay := newLoopbackRelay()
	relay.failPub = true
	broker := NewBroker(hub, relay, discardLogger())

	sub := &captureSubscriber{}
	broker.Attach(context.Background(), "user-3", sub)
	require.NoError(t, broker.Publish(context.Background(), "user-3", EventConversationRead, nil))
	require.Eventually(t, func() bool { return len(sub.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestBrokerConnectedConsultsRelayPresence(t *testing.T) {
	hub := ws.NewHub()
	defer hub.Close()
	relay := newLoopbackRelay()
	require.NoError(t, newReplicaRelay(relay.store, "replica-b").Touch(context.Background(), []string{"remote"}))
	broker := NewBroker(hub, relay, discardLogger())

	require.True(t, broker.Connected(context.Background(), "remote"))
	require.False(t, broker.Connected(context.Background(), "nobody"))
	require.Equal(t, 0, broker.Streams())
}

func TestPresenceLapsesWhenReplicaNeverDetaches(t *testing.T) {
	store := newLeaseStore()
	crashedHub := ws.NewHub()
	defer crashedHub.Close()
	crashed := NewBroker(crashedHub, newReplicaRelay(store, "replica-a"), discardLogger())
	peerHub := ws.NewHub()
	defer peerHub.Close()
	peer := NewBroker(peerHub, newReplicaRelay(store, "replica-b"), discardLogger())
	ctx := context.Background()

	crashed.Attach(ctx, "user-4", &captureSubscriber{})
	require.True(t, peer.Connected(ctx, "user-4"))

	// The attaching replica disappears without Detach or Shutdown.
	store.advance(PresenceTTL - time.Second)
	require.True(t, peer.Connected(ctx, "user-4"))
	store.advance(2 * time.Second)
	require.False(t, peer.Connected(ctx, "user-4"))
}

func TestRenewKeepsLiveStreamsOnline(t *testing.T) {
	store := newLeaseStore()
	hub := ws.NewHub()
	defer hub.Close()
	broker := NewBroker(hub, newReplicaRelay(store, "replica-a"), discardLogger())
	peerHub := ws.NewHub()
	defer peerHub.Close()
	peer := NewBroker(peerHub, newReplicaRelay(store, "replica-b"), discardLogger())
	ctx := context.Background()

	broker.Attach(ctx, "user-5", &captureSubscriber{})
	for i := 0; i < 5; i++ {
		store.advance(PresenceRenewInterval)
		broker.renewLeases(ctx)
	}
	require.True(t, peer.Connected(ctx, "user-5"))
}

func TestDetachReleasesOnLastStreamAndShutdownDrains(t *testing.T) {
	store := newLeaseStore()
	hub := ws.NewHub()
	relay := newReplicaRelay(store, "replica-a")
	broker := NewBroker(hub, relay, discardLogger())
	peerHub := ws.NewHub()
	defer peerHub.Close()
	peer := NewBroker(peerHub, newReplicaRelay(store, "replica-b"), discardLogger())
	ctx := context.Background()

	first, second := &captureSubscriber{}, &captureSubscriber{}
	broker.Attach(ctx, "user-6", first)
	broker.Attach(ctx, "user-6", second)
	broker.Detach(ctx, "user-6", first)
	require.True(t, peer.Connected(ctx, "user-6"), "one stream is still attached")
	broker.Detach(ctx, "user-6", second)
	require.False(t, peer.Connected(ctx, "user-6"))

	broker.Attach(ctx, "user-7", &captureSubscriber{})
	require.True(t, peer.Connected(ctx, "user-7"))
	broker.Shutdown(ctx)
	require.False(t, peer.Connected(ctx, "user-7"))
	require.Empty(t, broker.localUsers())
	relay.mu.Lock()
	require.Equal(t, 2, relay.releases)
	relay.mu.Unlock()
}
