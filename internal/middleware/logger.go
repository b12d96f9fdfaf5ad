package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
)

type contextKey string

const loggerKey = contextKey("logger")

// Logger is a middleware that injects a request-scoped logger into the context
// and logs each request once it completes. The logger is pre-configured with
// the request ID from the RequestID middleware, so it should be placed after it.
func Logger(base *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			reqID := c.Response().Header().Get(echo.HeaderXRequestID)
			requestLogger := base.With("request_id", reqID)

			newCtx := context.WithValue(c.Request().Context(), loggerKey, requestLogger)
			c.SetRequest(c.Request().WithContext(newCtx))

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			requestLogger.Info("Request handled",
				"method", c.Request().Method,
				"path", c.Path(),
				"status", c.Response().Status,
				"duration", time.Since(start))
			return nil
		}
	}
}

// FromContext returns the request-scoped logger, or the default logger
// outside a request.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
