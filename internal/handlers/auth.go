package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/chorus/internal/domain"
	"github.com/nfrund/chorus/internal/middleware"
)

// SessionDropper forgets the services opened for a token.
type SessionDropper interface {
	Drop(ctx context.Context, token string)
}

// AuthHandler handles sign-up, sign-in and sign-out.
type AuthHandler struct {
	auth     domain.AuthRepository
	sessions SessionDropper
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth domain.AuthRepository, sessions SessionDropper) *AuthHandler {
	return &AuthHandler{auth: auth, sessions: sessions}
}

// SignUp creates an account and signs it in (POST /auth/signup).
func (h *AuthHandler) SignUp(c echo.Context) error {
	return h.issue(c, http.StatusCreated, h.auth.SignUp)
}

// Login signs an existing account in (POST /auth/login).
func (h *AuthHandler) Login(c echo.Context) error {
	return h.issue(c, http.StatusOK, h.auth.SignIn)
}

func (h *AuthHandler) issue(c echo.Context, status int, signIn func(context.Context, domain.Credentials) (string, error)) error {
	ctx := c.Request().Context()
	logger := middleware.FromContext(ctx)

	var creds domain.Credentials
	if err := c.Bind(&creds); err != nil {
		return err
	}
	token, err := signIn(ctx, creds)
	if err != nil {
		return err
	}

	identity, err := h.auth.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	if err := middleware.StoreToken(c, token); err != nil {
		logger.Error("Failed to save session", "error", err)
		return err
	}
	logger.Info("Signed in", "user_id", identity.UserID)
	return c.JSON(status, TokenResponse{Token: token, Identity: identity})
}

// Logout forgets the session's services and expires the cookie
// (POST /auth/logout).
func (h *AuthHandler) Logout(c echo.Context) error {
	if token := middleware.TokenFrom(c); token != "" {
		h.sessions.Drop(c.Request().Context(), token)
	}
	middleware.ClearToken(c)
	return c.NoContent(http.StatusNoContent)
}
