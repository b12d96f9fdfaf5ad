package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/chorus/internal/handlers"
	"github.com/nfrund/chorus/internal/middleware"
)

// RegisterRoutes sets up all the application routes.
func (s *Server) RegisterRoutes() {
	authHandler := handlers.NewAuthHandler(s.auth, s.sessions)
	serverHandler := handlers.NewServerHandler()
	channelHandler := handlers.NewChannelHandler()
	conversationHandler := handlers.NewConversationHandler()
	profileHandler := handlers.NewProfileHandler()
	messageHandler := handlers.NewMessageHandler()
	presenceHandler := handlers.NewPresenceHandler(s.presence)
	streamHandler := handlers.NewStreamHandler(s.clients, s.originPatterns, s.streamOpts...)
	rateLimiter := middleware.RateLimiter(s.signInRate)
	requireAuth := middleware.Auth(s.sessions)

	s.E.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	s.E.POST("/auth/signup", authHandler.SignUp, rateLimiter)
	s.E.POST("/auth/login", authHandler.Login, rateLimiter)
	s.E.POST("/auth/logout", authHandler.Logout)

	if s.bucket != nil {
		s.E.GET(avatarRoute(s.cfg.GetAvatarBaseURL())+"/:name", handlers.NewFileHandler(s.bucket).Download)
	}

	api := s.E.Group("/api", requireAuth)

	api.GET("/servers", serverHandler.ListMine)
	api.GET("/servers/public", serverHandler.ListPublic)
	api.POST("/servers", serverHandler.Create)
	api.POST("/servers/:id/members", serverHandler.Join)
	api.DELETE("/servers/:id/members/me", serverHandler.Leave)

	api.GET("/servers/:id/channels", channelHandler.List)
	api.POST("/servers/:id/channels", channelHandler.Create)
	api.PATCH("/channels/:id", channelHandler.Update)
	api.DELETE("/channels/:id", channelHandler.Delete)

	api.GET("/conversations", conversationHandler.List)
	api.POST("/conversations", conversationHandler.Create)
	api.PATCH("/conversations/:id", conversationHandler.Rename)
	api.DELETE("/conversations/:id/participants/me", conversationHandler.Leave)

	api.GET("/profile", profileHandler.Me)
	api.PATCH("/profile", profileHandler.Update)
	api.PUT("/profile/avatar", profileHandler.UploadAvatar)
	api.DELETE("/profile/avatar", profileHandler.RemoveAvatar)
	api.GET("/profiles", profileHandler.Search)
	api.GET("/profiles/:id", profileHandler.Get)

	api.GET("/messages", messageHandler.List)
	api.POST("/messages", messageHandler.Send)
	api.PATCH("/messages/:id", messageHandler.Edit)
	api.DELETE("/messages/:id", messageHandler.Delete)

	api.GET("/presence", presenceHandler.List)
	api.GET("/presence/:id", presenceHandler.Get)

	s.E.GET("/ws/messages", streamHandler.Messages, requireAuth)
}

// avatarRoute is the local path avatars are served under. A base URL on
// another host (a CDN) still serves locally under /avatars.
func avatarRoute(baseURL string) string {
	if strings.HasPrefix(baseURL, "/") {
		return strings.TrimRight(baseURL, "/")
	}
	return "/avatars"
}
