package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// DefaultSignInRate is how many sign-in attempts per minute one address may
// make.
const DefaultSignInRate = 10

// RateLimiter limits requests to perMinute per IP address for the routes it
// is applied to, using an in-memory store suited to a single instance.
func RateLimiter(perMinute int) echo.MiddlewareFunc {
	config := middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:  rate.Limit(float64(perMinute) / 60),
			Burst: perMinute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, map[string]string{
				"code":    "rate_limited",
				"message": "Too many requests. Please try again later.",
			})
		},
	}
	return middleware.RateLimiterWithConfig(config)
}
