package httpx

import "net/http"

func (r *Router) handleListNotifications(w http.ResponseWriter, req *http.Request) {
	unreadOnly := req.URL.Query().Get("unread") == "true"
	items, err := r.svc.Notifications.List(req.Context(), currentUser(req).ID, unreadOnly, queryInt(req, "limit"), queryInt(req, "offset"))
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": items})
}

func (r *Router) handleUnreadNotifications(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	userID := currentUser(req).ID
	notifications, err := r.svc.Notifications.UnreadCount(ctx, userID)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	messages, err := r.svc.Chat.UnreadTotal(ctx, userID)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"notifications": notifications, "messages": messages})
}

func (r *Router) handleReadNotification(w http.ResponseWriter, req *http.Request) {
	if err := r.svc.Notifications.MarkRead(req.Context(), currentUser(req).ID, req.PathValue("id")); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleReadAllNotifications(w http.ResponseWriter, req *http.Request) {
	count, err := r.svc.Notifications.MarkAllRead(req.Context(), currentUser(req).ID)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": count})
}

func (r *Router) handleDeleteNotification(w http.ResponseWriter, req *http.Request) {
	if err := r.svc.Notifications.Delete(req.Context(), currentUser(req).ID, req.PathValue("id")); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
