package httpx

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/splax/gigboard/internal/domain"
	"github.com/splax/gigboard/internal/repository"
)

type sendMessageRequest struct {
	ClientMessageID string `json:"client_message_id"`
	Body            string `json:"body"`
}

func (r *Router) handleListConversations(w http.ResponseWriter, req *http.Request) {
	convs, err := r.svc.Chat.ListConversations(req.Context(), currentUser(req).ID)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

// handleListMessages pages backwards with before (RFC3339) and before_id,
// both taken from the oldest message of the previous page.
func (r *Router) handleListMessages(w http.ResponseWriter, req *http.Request) {
	var cursor repository.MessageCursor
	query := req.URL.Query()
	if raw := strings.TrimSpace(query.Get("before")); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			r.writeServiceError(w, req, domain.Invalid("before", "before must be an RFC3339 timestamp"))
			return
		}
		cursor.Before = parsed
	}
	if raw := strings.TrimSpace(query.Get("before_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil || cursor.Before.IsZero() {
			r.writeServiceError(w, req, domain.Invalid("before_id", "before_id must be a message id paired with before"))
			return
		}
		cursor.BeforeID = id.String()
	}
	msgs, err := r.svc.Chat.Messages(req.Context(), currentUser(req).ID, req.PathValue("id"), cursor, queryInt(req, "limit"))
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	resp := map[string]any{"messages": msgs}
	if len(msgs) > 0 {
		oldest := msgs[0]
		resp["next_cursor"] = map[string]string{
			"before":    oldest.CreatedAt.Format(time.RFC3339Nano),
			"before_id": oldest.ID,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (r *Router) handleSendMessage(w http.ResponseWriter, req *http.Request) {
	var body sendMessageRequest
	if !r.decodeJSON(w, req, &body) {
		return
	}
	msg, created, err := r.svc.Chat.Send(req.Context(), currentUser(req).ID, req.PathValue("id"), body.ClientMessageID, body.Body)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	writeJSON(w, status, msg)
}

func (r *Router) handleReadConversation(w http.ResponseWriter, req *http.Request) {
	if err := r.svc.Chat.MarkRead(req.Context(), currentUser(req).ID, req.PathValue("id")); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
