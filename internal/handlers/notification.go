package handlers

import (
	"net/http"

	"github.com/tuorg/fleetcare/internal/db"
	"github.com/tuorg/fleetcare/internal/middleware"
)

// NotificationHandler handles notification requests for the current user
type NotificationHandler struct {
	store db.NotificationCollection
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(store db.NotificationCollection) *NotificationHandler {
	return &NotificationHandler{store: store}
}

// ListUnread handles GET /api/notifications/unread
func (h *NotificationHandler) ListUnread(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	notifications, err := h.store.FindUnreadByEmail(r.Context(), claims.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

// CountUnread handles GET /api/notifications/unread/count
func (h *NotificationHandler) CountUnread(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	count, err := h.store.CountUnreadByEmail(r.Context(), claims.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": count})
}

// MarkRead handles PATCH /api/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.store.MarkRead(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
