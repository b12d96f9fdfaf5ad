package handlers

import (
	"github.com/nfrund/chorus/internal/domain"
)

// ErrorResponse is the standard format for API error responses.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TokenResponse is returned by sign-up and sign-in. Browser clients can
// ignore it and rely on the session cookie; the CLI keeps the token.
type TokenResponse struct {
	Token    string           `json:"token"`
	Identity *domain.Identity `json:"identity,omitempty"`
}

// AvatarResponse is returned after an avatar upload.
type AvatarResponse struct {
	Profile   *domain.Profile `json:"profile"`
	AvatarURL string          `json:"avatar_url"`
}

// PresenceResponse lists the online users.
type PresenceResponse struct {
	Users []string `json:"users"`
}
