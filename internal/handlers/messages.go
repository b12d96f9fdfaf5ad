package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/chorus/internal/domain"
)

// DefaultHistoryLimit is both the default and the largest page of
// GET /api/messages.
const DefaultHistoryLimit = 100

// MessageHandler serves one-shot message reads and writes. Live views go
// through the stream endpoint instead.
type MessageHandler struct{}

// NewMessageHandler creates a new MessageHandler.
func NewMessageHandler() *MessageHandler {
	return &MessageHandler{}
}

// List returns the newest messages of ?scope=kind:id, oldest first.
func (h *MessageHandler) List(c echo.Context) error {
	services, err := servicesFrom(c)
	if err != nil {
		return err
	}
	var req ListMessagesRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	scope, err := domain.ParseScope(req.Scope)
	if err != nil {
		return err
	}
	if req.Limit == 0 {
		req.Limit = DefaultHistoryLimit
	}

	messages, err := services.Messages.ListRecent(c.Request().Context(), scope, req.Limit)
	if err != nil {
		return asFetchError("messages", err)
	}
	return c.JSON(http.StatusOK, messages)
}

// Send posts a message to a scope as the caller.
func (h *MessageHandler) Send(c echo.Context) error {
	services, err := servicesFrom(c)
	if err != nil {
		return err
	}
	var req SendMessageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	scope, err := domain.ParseScope(req.Scope)
	if err != nil {
		return err
	}
	content, ok := domain.NormalizeContent(req.Content)
	if !ok {
		return &domain.ValidationError{Field: "content", Reason: "must not be empty"}
	}

	in := domain.NewMessage{Scope: scope, UserID: services.Identity.UserID, Content: content}
	if err := in.Validate(); err != nil {
		return err
	}
	msg, err := services.Messages.Insert(c.Request().Context(), in)
	if err != nil {
		return asWriteError("send message", err)
	}
	return c.JSON(http.StatusCreated, msg)
}

// Edit rewrites message :id if the caller wrote it.
func (h *MessageHandler) Edit(c echo.Context) error {
	services, err := servicesFrom(c)
	if err != nil {
		return err
	}
	var req EditMessageRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	content, ok := domain.NormalizeContent(req.Content)
	if !ok {
		return &domain.ValidationError{Field: "content", Reason: "must not be empty"}
	}

	msg, err := services.Messages.UpdateContent(c.Request().Context(), c.Param("id"), services.Identity.UserID, content)
	if err != nil {
		return asWriteError("edit message", err)
	}
	return c.JSON(http.StatusOK, msg)
}

// Delete removes message :id if the caller wrote it.
func (h *MessageHandler) Delete(c echo.Context) error {
	services, err := servicesFrom(c)
	if err != nil {
		return err
	}
	if err := services.Messages.Delete(c.Request().Context(), c.Param("id"), services.Identity.UserID); err != nil {
		return asWriteError("delete message", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func asFetchError(resource string, err error) error {
	var fe *domain.FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &domain.FetchError{Resource: resource, Err: err}
}

func asWriteError(op string, err error) error {
	var we *domain.WriteError
	if errors.As(err, &we) {
		return err
	}
	return domain.NewWriteError(op, err)
}
