package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/nfrund/chorus/internal/app"
	"github.com/nfrund/chorus/internal/config"
	"github.com/nfrund/chorus/internal/domain"
	"github.com/nfrund/chorus/internal/handlers"
	"github.com/nfrund/chorus/internal/middleware"
	"github.com/nfrund/chorus/internal/presence"
	"github.com/nfrund/chorus/internal/pubsub"
	"github.com/nfrund/chorus/internal/storage"
	"github.com/nfrund/chorus/internal/websocket"
	"github.com/samber/do/v2"
)

// Opener builds the services of the user a token belongs to.
type Opener func(ctx context.Context, token string) (*app.Services, error)

// Server holds the dependencies for the HTTP server.
type Server struct {
	E *echo.Echo

	cfg            config.Provider
	auth           domain.AuthRepository
	bucket         storage.Bucket
	sessions       *sessionCache
	clients        *websocket.ClientManager
	bus            pubsub.Bus
	ownsBus        bool
	presence       *presence.Service
	stopPresence   context.CancelFunc
	logger         *slog.Logger
	signInRate     int
	originPatterns []string
	streamOpts     []websocket.StreamOption
}

// Option configures a Server.
type Option func(*Server)

// WithOpener replaces how per-user services are opened.
func WithOpener(open Opener) Option {
	return func(s *Server) { s.sessions.open = open }
}

// WithAuth replaces the sign-in backend.
func WithAuth(auth domain.AuthRepository) Option {
	return func(s *Server) { s.auth = auth }
}

// WithBucket replaces the avatar bucket.
func WithBucket(bucket storage.Bucket) Option {
	return func(s *Server) { s.bucket = bucket }
}

// WithBus replaces the event bus streams and presence share.
func WithBus(bus pubsub.Bus) Option {
	return func(s *Server) { s.bus = bus }
}

// WithLogger sets the base logger for requests.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithSignInRate sets how many sign-in attempts a client may make per minute.
func WithSignInRate(perMinute int) Option {
	return func(s *Server) { s.signInRate = perMinute }
}

// WithOriginPatterns allows WebSocket connections from further origins.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) { s.originPatterns = patterns }
}

// WithStreamOptions configures every message stream.
func WithStreamOptions(opts ...websocket.StreamOption) Option {
	return func(s *Server) { s.streamOpts = opts }
}

// New creates the HTTP server. Shared components come from root; options
// override them, which tests use to run without a database.
func New(cfg config.Provider, root do.Injector, opts ...Option) *Server {
	s := &Server{
		cfg:        cfg,
		clients:    websocket.NewClientManager(),
		logger:     slog.Default(),
		signInRate: middleware.DefaultSignInRate,
	}
	s.sessions = newSessionCache(func(ctx context.Context, token string) (*app.Services, error) {
		return app.Open(ctx, root, token)
	})
	if root != nil {
		s.auth = app.Auth(root)
		s.bucket = app.Bucket(root)
		s.bus = app.Bus(root)
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sessions.logger = s.logger.With("service", "sessions")

	if s.bus == nil {
		s.bus = pubsub.NewWatermillBridge(pubsub.WithBridgeLogger(s.logger))
		s.ownsBus = true
	}
	s.presence = presence.NewService(s.bus, presence.WithLogger(s.logger))
	presenceCtx, stopPresence := context.WithCancel(context.Background())
	s.stopPresence = stopPresence
	if err := s.presence.Start(presenceCtx, s.bus); err != nil {
		s.logger.Error("Failed to start presence tracking", "error", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewValidator()

	e.Use(echomw.RequestID())
	e.Use(middleware.Logger(s.logger))
	e.Use(echomw.Recover())

	// Configure and use session middleware
	store := sessions.NewCookieStore([]byte(cfg.GetSessionSecret()))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	e.Use(session.Middleware(store))

	setupErrorHandling(e)

	s.E = e
	s.RegisterRoutes()
	return s
}

// Sessions reports how many users have open services.
func (s *Server) Sessions() int { return s.sessions.count() }

// setupErrorHandling renders every error as an ErrorResponse. Domain errors
// map to a status by their code; anything unrecognized is a 500 and is
// logged with a stack trace.
func setupErrorHandling(e *echo.Echo) {
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		logger := middleware.FromContext(c.Request().Context())

		var he *echo.HTTPError
		if errors.As(err, &he) {
			respondError(c, he.Code, httpCode(he.Code), fmt.Sprint(he.Message))
			return
		}

		code := domain.Code(err)
		status := statusFor(code)
		switch {
		case status == http.StatusInternalServerError:
			logger.Error("Internal Server Error (Unhandled)",
				"error", err,
				"stack_trace", string(debug.Stack()))
			respondError(c, status, code, "Internal server error")
			return
		case status >= http.StatusInternalServerError:
			logger.Warn("Backend request failed", "code", code, "error", err)
		}
		respondError(c, status, code, err.Error())
	}
}

func respondError(c echo.Context, status int, code, message string) {
	var err error
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, handlers.ErrorResponse{Code: code, Message: message})
	}
	if err != nil {
		middleware.FromContext(c.Request().Context()).Error("Failed to write error response", "error", err)
	}
}

func statusFor(code string) int {
	switch code {
	case "validation":
		return http.StatusBadRequest
	case "unauthenticated", "invalid_credentials":
		return http.StatusUnauthorized
	case "permission_denied":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "referential_integrity", "stale_result":
		return http.StatusConflict
	case "write_rejected":
		return http.StatusUnprocessableEntity
	case "fetch_failed":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// httpCode turns a status into a code like "not_found".
func httpCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return fmt.Sprintf("http_%d", status)
	}
	return strings.ReplaceAll(strings.ToLower(text), " ", "_")
}
