package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/splax/gigboard/internal/ws"
)

const detachTimeout = 2 * time.Second

func (r *Router) handleWebsocket(w http.ResponseWriter, req *http.Request) {
	if r.broker == nil {
		writeError(w, http.StatusServiceUnavailable, "realtime unavailable")
		return
	}
	userID := currentUser(req).ID
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("websocket upgrade failed", "error", err, "user_id", userID)
		return
	}
	client := ws.NewClient(conn, r.logger)
	r.broker.Attach(req.Context(), userID, client)
	r.logger.Info("websocket attached", "user_id", userID)

	client.ReadLoop()

	r.detach(req.Context(), userID, client)
	client.Close()
	r.logger.Info("websocket detached", "user_id", userID)
}

func (r *Router) handleEvents(w http.ResponseWriter, req *http.Request) {
	if r.broker == nil {
		writeError(w, http.StatusServiceUnavailable, "realtime unavailable")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	userID := currentUser(req).ID
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := ws.NewSSEClient(w, flusher, r.logger)
	r.broker.Attach(req.Context(), userID, client)
	defer r.detach(req.Context(), userID, client)

	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-req.Context().Done():
			client.Close()
			return
		case <-ticker.C:
			if err := client.Heartbeat(); err != nil {
				return
			}
		}
		if client.Closed() {
			return
		}
	}
}

// detach runs after the request context is usually cancelled, so presence
// bookkeeping gets its own deadline.
func (r *Router) detach(parent context.Context, userID string, sub ws.Subscriber) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), detachTimeout)
	defer cancel()
	r.broker.Detach(ctx, userID, sub)
}
