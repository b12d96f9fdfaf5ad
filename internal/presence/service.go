// Package presence tracks which users have a live message stream open.
package presence

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/nfrund/chorus/internal/pubsub"
	"github.com/nfrund/chorus/internal/websocket"
)

type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// OfflineDebounceDelay is how long a user with no streams left stays online.
// It covers page reloads and brief network drops.
const OfflineDebounceDelay = 5 * time.Second

// Presence is one user's online state.
type Presence struct {
	UserID      string    `json:"user_id"`
	Status      Status    `json:"status"`
	Connections int       `json:"connections"`
	Since       time.Time `json:"since"`
}

// TopicStatusChanged is published when a user comes online or goes offline.
var TopicStatusChanged = pubsub.NewEvent[Presence]("presence.user.status",
	"Published when a user comes online or goes offline")

type user struct {
	clients map[string]struct{}
	since   time.Time
	offline *time.Timer
}

// Service keeps presence from stream lifecycle events.
type Service struct {
	mu      sync.RWMutex
	users   map[string]*user  // userID -> user
	clients map[string]string // clientID -> userID

	publisher       pubsub.Publisher
	logger          *slog.Logger
	offlineDebounce time.Duration
	now             func() time.Time
}

// Option is a function that configures a Service.
type Option func(*Service)

// WithOfflineDebounce sets a custom debounce delay for offline events. Zero
// marks users offline as soon as their last stream closes.
func WithOfflineDebounce(d time.Duration) Option {
	return func(s *Service) {
		s.offlineDebounce = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger.With("service", "presence")
	}
}

// NewService creates a presence service that announces changes on publisher.
func NewService(publisher pubsub.Publisher, opts ...Option) *Service {
	svc := &Service{
		users:           make(map[string]*user),
		clients:         make(map[string]string),
		publisher:       publisher,
		logger:          slog.Default().With("service", "presence"),
		offlineDebounce: OfflineDebounceDelay,
		now:             func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Start follows stream clients on sub until ctx is done.
func (s *Service) Start(ctx context.Context, sub pubsub.Subscriber) error {
	if err := pubsub.On(ctx, sub, websocket.TopicClientReady, func(ctx context.Context, ev websocket.ClientEvent, _ pubsub.Message) error {
		s.Connect(ctx, ev.UserID, ev.ClientID)
		return nil
	}); err != nil {
		return err
	}
	return pubsub.On(ctx, sub, websocket.TopicClientDisconnected, func(ctx context.Context, ev websocket.ClientEvent, _ pubsub.Message) error {
		s.Disconnect(ctx, ev.ClientID)
		return nil
	})
}

// Connect records a stream client of userID.
func (s *Service) Connect(ctx context.Context, userID, clientID string) {
	s.mu.Lock()
	u, exists := s.users[userID]
	if !exists {
		u = &user{clients: make(map[string]struct{}), since: s.now()}
		s.users[userID] = u
	}
	if u.offline != nil {
		u.offline.Stop()
		u.offline = nil
		s.logger.Debug("Cancelled offline debounce due to reconnection", "user_id", userID, "client_id", clientID)
	}
	u.clients[clientID] = struct{}{}
	s.clients[clientID] = userID
	p := s.presenceLocked(userID, u)
	s.mu.Unlock()

	if !exists {
		s.logger.Info("User came online", "user_id", userID, "client_id", clientID)
		s.publish(ctx, p)
	}
}

// Disconnect forgets a stream client. Its user goes offline once no client
// has come back within the debounce delay.
func (s *Service) Disconnect(ctx context.Context, clientID string) {
	s.mu.Lock()
	userID, ok := s.clients[clientID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.clients, clientID)
	u := s.users[userID]
	delete(u.clients, clientID)
	if len(u.clients) > 0 {
		s.mu.Unlock()
		return
	}

	if s.offlineDebounce == 0 {
		delete(s.users, userID)
		s.mu.Unlock()
		s.wentOffline(ctx, userID)
		return
	}
	if u.offline != nil {
		u.offline.Stop()
	}
	u.offline = time.AfterFunc(s.offlineDebounce, func() {
		s.handleDebouncedOffline(context.WithoutCancel(ctx), userID, u)
	})
	s.mu.Unlock()
}

// handleDebouncedOffline marks u offline unless it reconnected meanwhile.
func (s *Service) handleDebouncedOffline(ctx context.Context, userID string, u *user) {
	s.mu.Lock()
	if s.users[userID] != u || len(u.clients) > 0 {
		s.mu.Unlock()
		return
	}
	delete(s.users, userID)
	s.mu.Unlock()
	s.wentOffline(ctx, userID)
}

func (s *Service) wentOffline(ctx context.Context, userID string) {
	s.logger.Info("User went offline", "user_id", userID)
	s.publish(ctx, Presence{UserID: userID, Status: StatusOffline, Since: s.now()})
}

// Get returns the presence of userID. Unknown users are offline.
func (s *Service) Get(userID string) Presence {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return Presence{UserID: userID, Status: StatusOffline}
	}
	return s.presenceLocked(userID, u)
}

// Online lists the online users, sorted.
func (s *Service) Online() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]string, 0, len(s.users))
	for userID := range s.users {
		result = append(result, userID)
	}
	sort.Strings(result)
	return result
}

// Shutdown stops pending offline timers.
func (s *Service) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.offline != nil {
			u.offline.Stop()
		}
	}
}

func (s *Service) presenceLocked(userID string, u *user) Presence {
	return Presence{UserID: userID, Status: StatusOnline, Connections: len(u.clients), Since: u.since}
}

func (s *Service) publish(ctx context.Context, p Presence) {
	if s.publisher == nil {
		return
	}
	if err := pubsub.Publish(ctx, s.publisher, TopicStatusChanged, p, nil); err != nil {
		s.logger.Error("Failed to publish presence update", "user_id", p.UserID, "error", err)
	}
}
