package handlers

import (
	"context"
	"net/http"

	"jan-server/services/vision-api/internal/domain/session"
)

// LiveFeed is the websocket push channel.
type LiveFeed interface {
	ServeSession(w http.ResponseWriter, r *http.Request, sessionID string) error
	ServeCaptures(w http.ResponseWriter, r *http.Request) error
	Reject(w http.ResponseWriter, r *http.Request, message string) error
	CloseSession(sessionID string)
}

// LiveHandler attaches websocket subscribers to sessions and captures.
type LiveHandler struct {
	service session.Service
	hub     LiveFeed
}

func NewLiveHandler(service session.Service, hub LiveFeed) *LiveHandler {
	return &LiveHandler{service: service, hub: hub}
}

// Session streams status notifications for one session. Unknown sessions get
// a single error message.
func (h *LiveHandler) Session(ctx context.Context, w http.ResponseWriter, r *http.Request, id string) error {
	if _, err := h.service.Get(ctx, id); err != nil {
		return h.hub.Reject(w, r, "Session not found")
	}
	return h.hub.ServeSession(w, r, id)
}

// Captures streams every crossing notification.
func (h *LiveHandler) Captures(w http.ResponseWriter, r *http.Request) error {
	return h.hub.ServeCaptures(w, r)
}
