package ws

import "sync"

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub manages stream subscriptions by user ID. A single goroutine owns
// registration and fan-out; the read lock only guards presence queries.
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]map[Subscriber]struct{}
	total     int
	register  chan subscription
	unreg     chan subscription
	broadcast chan message
	done      chan struct{}
	closeOnce sync.Once
}

// message couples payload with the addressed user.
type message struct {
	userID  string
	payload []byte
}

// subscription defines register/unregister requests.
type subscription struct {
	userID string
	client Subscriber
}

// NewHub creates an initialized Hub.
func NewHub() *Hub {
	h := &Hub{
		clients:   make(map[string]map[Subscriber]struct{}),
		register:  make(chan subscription),
		unreg:     make(chan subscription),
		broadcast: make(chan message, 64),
		done:      make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case sub := <-h.register:
			h.mu.Lock()
			if _, ok := h.clients[sub.userID]; !ok {
				h.clients[sub.userID] = make(map[Subscriber]struct{})
			}
			if _, exists := h.clients[sub.userID][sub.client]; !exists {
				h.clients[sub.userID][sub.client] = struct{}{}
				h.total++
			}
			h.mu.Unlock()
		case sub := <-h.unreg:
			h.mu.Lock()
			h.remove(sub.userID, sub.client)
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.RLock()
			targets := make([]Subscriber, 0, len(h.clients[msg.userID]))
			for c := range h.clients[msg.userID] {
				targets = append(targets, c)
			}
			h.mu.RUnlock()
			var failed []Subscriber
			for _, c := range targets {
				if err := c.Send(msg.payload); err != nil {
					c.Close()
					failed = append(failed, c)
				}
			}
			if len(failed) > 0 {
				h.mu.Lock()
				for _, c := range failed {
					h.remove(msg.userID, c)
				}
				h.mu.Unlock()
			}
		case <-h.done:
			h.mu.Lock()
			for userID, clients := range h.clients {
				for c := range clients {
					c.Close()
				}
				delete(h.clients, userID)
			}
			h.total = 0
			h.mu.Unlock()
			return
		}
	}
}

// remove must be called with the write lock held.
func (h *Hub) remove(userID string, client Subscriber) {
	clients, ok := h.clients[userID]
	if !ok {
		return
	}
	if _, exists := clients[client]; exists {
		delete(clients, client)
		h.total--
	}
	if len(clients) == 0 {
		delete(h.clients, userID)
	}
}

// Register adds a client to a user stream.
func (h *Hub) Register(userID string, client Subscriber) {
	select {
	case h.register <- subscription{userID: userID, client: client}:
	case <-h.done:
	}
}

// Unregister removes a client.
func (h *Hub) Unregister(userID string, client Subscriber) {
	select {
	case h.unreg <- subscription{userID: userID, client: client}:
	case <-h.done:
	}
}

// Broadcast sends payload to all clients of the user.
func (h *Hub) Broadcast(userID string, payload []byte) {
	select {
	case h.broadcast <- message{userID: userID, payload: payload}:
	case <-h.done:
	}
}

// Connected reports whether the user has at least one live stream.
func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// Count returns the number of registered streams.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

// Close stops the hub and closes every subscriber.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
}
