package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/nfrund/chorus/internal/app"
)

const (
	// ServicesContextKey holds the signed-in user's *app.Services.
	ServicesContextKey = "services"
	// TokenContextKey holds the access token the request was authenticated with.
	TokenContextKey = "token"

	// SessionName is the cookie session that stores the access token.
	SessionName = "chorus"
	// SessionTokenKey is the session value holding the access token.
	SessionTokenKey = "token"
)

// SessionResolver returns the services of the user a token belongs to.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*app.Services, error)
}

// Auth creates a middleware that protects routes that require authentication.
// The token comes from the cookie session or, for non-browser clients, from
// an Authorization: Bearer header.
func Auth(resolver SessionResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := TokenFrom(c)
			if token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Sign in required")
			}

			services, err := resolver.Resolve(c.Request().Context(), token)
			if err != nil {
				FromContext(c.Request().Context()).Info("Rejected access token", "error", err)
				ClearToken(c)
				return echo.NewHTTPError(http.StatusUnauthorized, "Session expired, sign in again")
			}

			c.Set(ServicesContextKey, services)
			c.Set(TokenContextKey, token)
			return next(c)
		}
	}
}

// TokenFrom returns the request's access token, or "" when there is none.
func TokenFrom(c echo.Context) string {
	if header := c.Request().Header.Get(echo.HeaderAuthorization); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	sess, err := session.Get(SessionName, c)
	if err != nil {
		return ""
	}
	token, _ := sess.Values[SessionTokenKey].(string)
	return token
}

// StoreToken saves token in the cookie session.
func StoreToken(c echo.Context, token string) error {
	sess, err := session.Get(SessionName, c)
	if err != nil {
		return err
	}
	sess.Values[SessionTokenKey] = token
	return sess.Save(c.Request(), c.Response())
}

// ClearToken expires the cookie session.
func ClearToken(c echo.Context) {
	sess, err := session.Get(SessionName, c)
	if err != nil {
		return
	}
	delete(sess.Values, SessionTokenKey)
	sess.Options.MaxAge = -1
	_ = sess.Save(c.Request(), c.Response())
}

// ServicesFrom returns the services Auth stored for the request.
func ServicesFrom(c echo.Context) *app.Services {
	services, _ := c.Get(ServicesContextKey).(*app.Services)
	return services
}
