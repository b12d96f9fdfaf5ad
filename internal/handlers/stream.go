package handlers

import (
	"github.com/labstack/echo/v4"
	"github.com/nfrund/chorus/internal/domain"
	"github.com/nfrund/chorus/internal/middleware"
	"github.com/nfrund/chorus/internal/websocket"
)

// StreamHandler upgrades live message connections. Each connection gets
// its own synchronizer.
type StreamHandler struct {
	clients        *websocket.ClientManager
	originPatterns []string
	opts           []websocket.StreamOption
}

// NewStreamHandler creates a new StreamHandler that registers its clients
// with clients.
func NewStreamHandler(clients *websocket.ClientManager, originPatterns []string, opts ...websocket.StreamOption) *StreamHandler {
	return &StreamHandler{clients: clients, originPatterns: originPatterns, opts: opts}
}

// Messages serves GET /ws/messages. The optional ?scope=kind:id, ?channel=
// or ?conversation= parameter binds the synchronizer right away.
func (h *StreamHandler) Messages(c echo.Context) error {
	ctx := c.Request().Context()
	logger := middleware.FromContext(ctx)

	services, err := servicesFrom(c)
	if err != nil {
		return err
	}
	initial, err := initialScope(c)
	if err != nil {
		return err
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), h.originPatterns...)
	if err != nil {
		// Accept has already written the response.
		logger.Warn("Failed to upgrade connection to WebSocket", "error", err)
		return nil
	}

	syncer := services.NewSynchronizer()
	opts := append([]websocket.StreamOption{websocket.WithLogger(logger)}, h.opts...)
	stream := websocket.NewStream(conn, syncer, services.Bus(), services.Identity.UserID, opts...)

	h.clients.Add(stream.Client())
	defer h.clients.Remove(stream.Client().ID)

	if err := stream.Run(ctx, initial); err != nil {
		logger.Info("Stream ended with error", "error", err)
	}
	return nil
}

func initialScope(c echo.Context) (*domain.Scope, error) {
	var raw string
	switch {
	case c.QueryParam("scope") != "":
		raw = c.QueryParam("scope")
	case c.QueryParam("channel") != "":
		raw = string(domain.ScopeChannel) + ":" + c.QueryParam("channel")
	case c.QueryParam("conversation") != "":
		raw = string(domain.ScopeConversation) + ":" + c.QueryParam("conversation")
	default:
		return nil, nil
	}
	scope, err := domain.ParseScope(raw)
	if err != nil {
		return nil, err
	}
	return &scope, nil
}
