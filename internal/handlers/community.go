package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/chorus/internal/domain"
)

// ServerHandler serves /api/servers.
type ServerHandler struct{}

// NewServerHandler creates a new ServerHandler.
func NewServerHandler() *ServerHandler {
	return &ServerHandler{}
}

// ListPublic lists discoverable servers annotated for the caller.
func (h *ServerHandler) ListPublic(c echo.Context) error {
	services, err := servicesFrom(c)
	if err != nil {
		return err
	}
	servers, err := services.Servers.ListPublic(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, servers)
}

// ListMine lists the servers the caller belongs to.
func (h *ServerHandler) ListMine(c echo.Context) error {
	services, err := servicesFrom(c)
	if err != nil {
		return err
	}
	servers, err := services.Servers.ListMine(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, servers)
}

// Create creates a server owned by the caller.
func (h *ServerHandler) Create(c echo.Context) error {
	services, err := servicesFrom(c)
	if err != nil {
		return err
	}
	var in domain.CreateServerInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	server, err := services.Servers.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, server)
}

// Join adds the caller to the server.
func (h *ServerHandler) Join(c echo.Context) error {
	services, err := servicesFrom(c)
	if err != nil {
		return err
	}
	member, err := services.Servers.Join(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, member)
}

// Leave removes the caller from the server.
func (h *ServerHandler) Leave(c echo.Context) error {
	services, err := servicesFrom(c)
	if err != nil {
		return err
	}
	if err := services.Servers.Leave(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ChannelHandler serves the channels of a server.
type ChannelHandler struct{}

// NewChannelHandler creates a new ChannelHandler.
func NewChannelHandler() *ChannelHandler {
	return &ChannelHandler{}
}

// List lists the channels of server :id by position.
func (h *ChannelHandler) List(c echo.Context) error {
	services, err := servicesFrom(c)
	if err != nil {
		return err
	}
	channels, err := services.Channels.List(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, channels)
}

// Create adds a channel to server :id.
func (h *ChannelHandler) Create(c echo.Context) error {
	services, err := servicesFrom(c)
	if err != nil {
		return err
	}
	var in domain.CreateChannelInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	channel, err := services.Channels.Create(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, channel)
}

// Update patches channel :id.
func (h *ChannelHandler) Update(c echo.Context) error {
	services, err := servicesFrom(c)
	if err != nil {
		return err
	}
	var in domain.UpdateChannelInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	channel, err := services.Channels.Update(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, channel)
}

// Delete removes channel :id.
func (h *ChannelHandler) Delete(c echo.Context) error {
	services, err := servicesFrom(c)
	if err != nil {
		return err
	}
	if err := services.Channels.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ConversationHandler serves /api/conversations.
type ConversationHandler struct{}

// NewConversationHandler creates a new ConversationHandler.
func NewConversationHandler() *ConversationHandler {
	return &ConversationHandler{}
}

// List lists the caller's conversations, most recently active first.
func (h *ConversationHandler) List(c echo.Context) error {
	services, err := servicesFrom(c)
	if err != nil {
		return err
	}
	conversations, err := services.Conversations.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, conversations)
}

// Create starts a conversation, or returns the existing direct one.
func (h *ConversationHandler) Create(c echo.Context) error {
	services, err := servicesFrom(c)
	if err != nil {
		return err
	}
	var in domain.CreateConversationInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	conversation, err := services.Conversations.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, conversation)
}

// Rename sets or clears the name of conversation :id.
func (h *ConversationHandler) Rename(c echo.Context) error {
	services, err := servicesFrom(c)
	if err != nil {
		return err
	}
	var req RenameConversationRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	conversation, err := services.Conversations.Rename(c.Request().Context(), c.Param("id"), req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, conversation)
}

// Leave removes the caller from conversation :id.
func (h *ConversationHandler) Leave(c echo.Context) error {
	services, err := servicesFrom(c)
	if err != nil {
		return err
	}
	if err := services.Conversations.Leave(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
