package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/splax/gigboard/internal/ws"
)

// Event types pushed to connected users.
const (
	EventNotificationCreated = "notification.created"
	EventNotificationReadAll = "notification.read_all"
	EventMessageCreated      = "message.created"
	EventConversationRead    = "conversation.read"
)

// Event is the envelope delivered to realtime subscribers.
type Event struct {
	Type   string          `json:"type"`
	UserID string          `json:"user_id"`
	Data   json.RawMessage `json:"data,omitempty"`
	At     time.Time       `json:"at"`
}

// PresenceRenewInterval is how often a replica renews the presence leases of
// its connected users. Leases live for PresenceTTL, so a replica that dies
// without cleaning up stops counting as online after at most that long.
const (
	PresenceRenewInterval = 10 * time.Second
	PresenceTTL           = 3 * PresenceRenewInterval
)

// Relay fans events out across API replicas and shares stream presence.
type Relay interface {
	Publish(ctx context.Context, payload []byte) error
	// Subscribe blocks, invoking handler for every relayed payload until ctx ends.
	Subscribe(ctx context.Context, handler func([]byte)) error
	// Touch renews this replica's presence lease for each user.
	Touch(ctx context.Context, userIDs []string) error
	// Release drops this replica's presence lease for userID.
	Release(ctx context.Context, userID string) error
	Online(ctx context.Context, userID string) (bool, error)
}

// Broker publishes events to the local hub or through a relay.
type Broker struct {
	hub    *ws.Hub
	relay  Relay
	logger *slog.Logger
	now    func() time.Time
	renew  time.Duration

	mu    sync.Mutex
	local map[string]int
}

// NewBroker builds a broker. relay may be nil for single-replica deployments.
func NewBroker(hub *ws.Hub, relay Relay, logger *slog.Logger) *Broker {
	return &Broker{
		hub:    hub,
		relay:  relay,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		renew:  PresenceRenewInterval,
		local:  make(map[string]int),
	}
}

// Publish delivers an event to every stream of userID.
func (b *Broker) Publish(ctx context.Context, userID, eventType string, data any) error {
	if userID == "" {
		return errors.New("realtime: user id required")
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(Event{Type: eventType, UserID: userID, Data: raw, At: b.now()})
	if err != nil {
		return err
	}
	if b.relay != nil {
		if err := b.relay.Publish(ctx, payload); err != nil {
			b.logger.Warn("realtime relay publish failed, delivering locally", "error", err, "type", eventType)
			b.hub.Broadcast(userID, payload)
		}
		return nil
	}
	b.hub.Broadcast(userID, payload)
	return nil
}

// Run consumes relayed events and hands them to the local hub while renewing
// presence leases in the background. It returns immediately when no relay is
// configured.
func (b *Broker) Run(ctx context.Context) error {
	if b.relay == nil {
		return nil
	}
	go b.keepAlive(ctx)
	return b.relay.Subscribe(ctx, b.deliver)
}

func (b *Broker) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(b.renew)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.renewLeases(ctx)
		}
	}
}

func (b *Broker) renewLeases(ctx context.Context) {
	users := b.localUsers()
	if len(users) == 0 {
		return
	}
	if err := b.relay.Touch(ctx, users); err != nil {
		b.logger.Warn("presence renew failed", "error", err, "users", len(users))
	}
}

func (b *Broker) localUsers() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	users := make([]string, 0, len(b.local))
	for userID := range b.local {
		users = append(users, userID)
	}
	return users
}

func (b *Broker) deliver(payload []byte) {
	var envelope struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil || envelope.UserID == "" {
		b.logger.Warn("dropping malformed realtime event", "error", err)
		return
	}
	b.hub.Broadcast(envelope.UserID, payload)
}

// Attach registers a stream for userID.
func (b *Broker) Attach(ctx context.Context, userID string, sub ws.Subscriber) {
	b.hub.Register(userID, sub)
	b.mu.Lock()
	b.local[userID]++
	b.mu.Unlock()
	if b.relay != nil {
		if err := b.relay.Touch(ctx, []string{userID}); err != nil {
			b.logger.Warn("presence touch failed", "error", err, "user_id", userID)
		}
	}
}

// Detach removes a stream registered with Attach. The presence lease is
// released once the user has no stream left on this replica.
func (b *Broker) Detach(ctx context.Context, userID string, sub ws.Subscriber) {
	b.hub.Unregister(userID, sub)
	b.mu.Lock()
	remaining := b.local[userID] - 1
	if remaining > 0 {
		b.local[userID] = remaining
	} else {
		delete(b.local, userID)
	}
	b.mu.Unlock()
	if b.relay != nil && remaining <= 0 {
		if err := b.relay.Release(ctx, userID); err != nil {
			b.logger.Warn("presence release failed", "error", err, "user_id", userID)
		}
	}
}

// Shutdown releases every presence lease held by this replica and closes the
// local streams. Leases it fails to release still lapse after PresenceTTL.
func (b *Broker) Shutdown(ctx context.Context) {
	users := b.localUsers()
	b.mu.Lock()
	b.local = make(map[string]int)
	b.mu.Unlock()
	if b.relay != nil {
		for _, userID := range users {
			if err := b.relay.Release(ctx, userID); err != nil {
				b.logger.Warn("presence release failed", "error", err, "user_id", userID)
			}
		}
	}
	b.hub.Close()
	b.logger.Info("realtime broker drained", "users", len(users))
}

// Connected reports whether userID has a live stream on any replica.
func (b *Broker) Connected(ctx context.Context, userID string) bool {
	if b.hub.Connected(userID) {
		return true
	}
	if b.relay == nil {
		return false
	}
	online, err := b.relay.Online(ctx, userID)
	if err != nil {
		b.logger.Warn("presence lookup failed", "error", err, "user_id", userID)
		return false
	}
	return online
}

// Streams returns the number of streams attached to this replica.
func (b *Broker) Streams() int {
	return b.hub.Count()
}
