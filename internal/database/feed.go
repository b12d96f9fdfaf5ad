package database

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nfrund/chorus/internal/domain"
)

// feedBuffer bounds how far a slow consumer can lag before the live query
// listener blocks.
const feedBuffer = 64

// MessageFeed implements domain.MessageFeed over LIVE SELECT on the message table.
type MessageFeed struct {
	live   LiveQueryService
	logger *slog.Logger
}

var _ domain.MessageFeed = (*MessageFeed)(nil)

// NewMessageFeed creates a feed backed by live.
func NewMessageFeed(live LiveQueryService) *MessageFeed {
	return &MessageFeed{
		live:   live,
		logger: slog.Default().With("service", "message_feed"),
	}
}

// ScopeFilter is the live query filter selecting the messages of scope.
func ScopeFilter(scope domain.Scope) *LiveQueryFilter {
	return &LiveQueryFilter{
		Where:  scope.Field() + " = $scope",
		Params: map[string]any{"scope": ref(string(scope.Kind), scope.ID)},
	}
}

// Subscribe opens a live subscription for scope.
func (f *MessageFeed) Subscribe(ctx context.Context, scope domain.Scope) (domain.FeedSubscription, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	sub := &feedSubscription{
		scope:  scope,
		live:   f.live,
		logger: f.logger.With("scope", scope.String()),
		events: make(chan domain.ChangeEvent, feedBuffer),
		done:   make(chan struct{}),
	}

	s, err := f.live.Subscribe(ctx, tableMessage, ScopeFilter(scope), sub.handle)
	if err != nil {
		return nil, &domain.FetchError{Resource: "message feed " + scope.String(), Err: err}
	}
	sub.subID = s.ID
	return sub, nil
}

type feedSubscription struct {
	scope  domain.Scope
	live   LiveQueryService
	subID  string
	logger *slog.Logger

	events    chan domain.ChangeEvent
	done      chan struct{}
	closeOnce sync.Once
	endOnce   sync.Once
}

func (s *feedSubscription) Events() <-chan domain.ChangeEvent { return s.events }

// Close stops delivery and kills the live query. Events is closed once the
// listener has drained.
func (s *feedSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.live.Unsubscribe(s.subID)
	})
	return err
}

// handle runs on the live query listener goroutine, one notification at a time.
func (s *feedSubscription) handle(ctx context.Context, action LiveQueryAction, data any) {
	if action == ActionClose {
		s.endOnce.Do(func() { close(s.events) })
		return
	}

	msg, err := messageFromMap(data)
	if err != nil {
		s.logger.Warn("Dropping undecodable message notification", "action", action, "error", err)
		return
	}

	var kind domain.ChangeKind
	switch action {
	case ActionCreate:
		kind = domain.ChangeInsert
	case ActionUpdate:
		kind = domain.ChangeUpdate
	case ActionDelete:
		kind = domain.ChangeDelete
	default:
		return
	}

	select {
	case s.events <- domain.ChangeEvent{Kind: kind, Message: msg}:
	case <-s.done:
	case <-ctx.Done():
	}
}
