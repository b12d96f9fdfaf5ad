// Package handlers holds the HTTP handlers of the JSON API. Errors are
// returned unchanged; the server's error handler maps them to status codes.
package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/chorus/internal/app"
	"github.com/nfrund/chorus/internal/middleware"
)

// servicesFrom returns the signed-in user's services, set by the Auth
// middleware.
func servicesFrom(c echo.Context) (*app.Services, error) {
	services := middleware.ServicesFrom(c)
	if services == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Sign in required")
	}
	return services, nil
}

// bindAndValidate decodes the request into v and validates it.
func bindAndValidate(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return err
	}
	return c.Validate(v)
}
