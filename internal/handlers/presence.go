package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/chorus/internal/presence"
)

// PresenceTracker reports who has a live message stream open.
type PresenceTracker interface {
	Online() []string
	Get(userID string) presence.Presence
}

// PresenceHandler serves online status.
type PresenceHandler struct {
	tracker PresenceTracker
}

// NewPresenceHandler creates a new PresenceHandler.
func NewPresenceHandler(tracker PresenceTracker) *PresenceHandler {
	return &PresenceHandler{tracker: tracker}
}

// List returns the online users (GET /api/presence).
func (h *PresenceHandler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, PresenceResponse{Users: h.tracker.Online()})
}

// Get returns the status of user :id (GET /api/presence/:id).
func (h *PresenceHandler) Get(c echo.Context) error {
	return c.JSON(http.StatusOK, h.tracker.Get(c.Param("id")))
}
