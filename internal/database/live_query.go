package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

// LiveQueryAction represents the type of change in a live query update
type LiveQueryAction string

const (
	ActionCreate LiveQueryAction = "CREATE"
	ActionUpdate LiveQueryAction = "UPDATE"
	ActionDelete LiveQueryAction = "DELETE"
	// ActionClose is delivered once when the notification stream ends.
	ActionClose LiveQueryAction = "CLOSE"
)

// LiveQueryHandler is called for each notification, in arrival order, from
// the subscription's listener goroutine.
type LiveQueryHandler func(ctx context.Context, action LiveQueryAction, data any)

// LiveQueryFilter defines optional filtering for live queries
type LiveQueryFilter struct {
	Where  string         // SurrealQL WHERE clause
	Params map[string]any // Query parameters
	Fields []string       // Specific fields to watch (optional)
}

// Subscription represents an active live query subscription
type Subscription struct {
	ID     string
	Table  string
	Active bool
}

// LiveQueryService provides real-time data subscriptions via SurrealDB Live Queries
type LiveQueryService interface {
	// Subscribe to a table with optional WHERE clause
	Subscribe(ctx context.Context, table string, filter *LiveQueryFilter, handler LiveQueryHandler) (*Subscription, error)

	// Unsubscribe from updates
	Unsubscribe(subID string) error
}

// SurrealLiveQueryService implements LiveQueryService using SurrealDB
type SurrealLiveQueryService struct {
	db     DBConnection
	logger *slog.Logger

	subscriptions sync.Map // map[string]*subscriptionState
}

type subscriptionState struct {
	id          string
	table       string
	handler     LiveQueryHandler
	cancel      context.CancelFunc
	liveQueryID string
	stopped     chan struct{}
}

// NewSurrealLiveQueryService creates a new live query service
func NewSurrealLiveQueryService(db DBConnection) *SurrealLiveQueryService {
	return &SurrealLiveQueryService{
		db:     db,
		logger: slog.Default().With("service", "live_query"),
	}
}

// BuildLiveQuery renders the LIVE SELECT statement for table and filter.
func BuildLiveQuery(table string, filter *LiveQueryFilter) (string, map[string]any) {
	fieldList := "*"
	if filter != nil && len(filter.Fields) > 0 {
		fieldList = strings.Join(filter.Fields, ", ")
	}

	query := fmt.Sprintf("LIVE SELECT %s FROM %s", fieldList, table)
	if filter != nil && filter.Where != "" {
		query = fmt.Sprintf("%s WHERE %s", query, filter.Where)
	}

	params := make(map[string]any)
	if filter != nil {
		for k, v := range filter.Params {
			params[k] = v
		}
	}
	return query, params
}

// Subscribe creates a live query subscription for a table
func (s *SurrealLiveQueryService) Subscribe(ctx context.Context, table string, filter *LiveQueryFilter, handler LiveQueryHandler) (*Subscription, error) {
	if s == nil {
		return nil, fmt.Errorf("live query service is nil")
	}
	if handler == nil {
		return nil, NewDBError(ErrInvalidInput, "handler cannot be nil")
	}
	if table == "" {
		return nil, NewDBError(ErrInvalidInput, "table cannot be empty")
	}

	query, params := BuildLiveQuery(table, filter)
	return s.subscribeQuery(ctx, table, query, params, handler)
}

func (s *SurrealLiveQueryService) subscribeQuery(ctx context.Context, table, query string, params map[string]any, handler LiveQueryHandler) (*Subscription, error) {
	subID := uuid.New().String()

	subCtx, cancel := context.WithCancel(context.Background())
	state := &subscriptionState{
		id:      subID,
		table:   table,
		handler: handler,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}

	err := s.db.WithConnection(ctx, func(dbConn *surrealdb.DB) error {
		s.logger.DebugContext(ctx, "Creating live query subscription", "subID", subID, "table", table)

		results, err := surrealdb.Query[any](ctx, dbConn, query, params)
		if err != nil {
			return fmt.Errorf("failed to execute live query: %w", err)
		}
		if results == nil || len(*results) == 0 {
			return fmt.Errorf("live query returned no results")
		}

		result := (*results)[0]
		if result.Status != "OK" {
			return fmt.Errorf("live query failed with status: %s", result.Status)
		}

		liveQueryID, err := liveQueryIDOf(result.Result)
		if err != nil {
			return err
		}
		state.liveQueryID = liveQueryID

		notificationChan, err := dbConn.LiveNotifications(state.liveQueryID)
		if err != nil {
			return fmt.Errorf("failed to get notification channel: %w", err)
		}

		go s.listenForNotifications(subCtx, state, notificationChan)
		go s.killOnCancel(subCtx, dbConn, state)

		return nil
	})
	if err != nil {
		cancel()
		return nil, WrapError(err, "failed to start live query")
	}

	s.subscriptions.Store(subID, state)
	s.logger.InfoContext(ctx, "Live query established", "subID", subID, "table", table, "liveQueryID", state.liveQueryID)

	return &Subscription{
		ID:     subID,
		Table:  table,
		Active: true,
	}, nil
}

// liveQueryIDOf extracts the live query UUID from a LIVE SELECT result.
func liveQueryIDOf(v any) (string, error) {
	var id string
	switch r := v.(type) {
	case nil:
		return "", fmt.Errorf("live query returned nil result")
	case string:
		id = r
	case models.UUID:
		id = r.String()
	case *models.UUID:
		id = r.String()
	case map[string]any:
		switch inner := r["id"].(type) {
		case string:
			id = inner
		case models.UUID:
			id = inner.String()
		default:
			return "", fmt.Errorf("live query result map does not contain 'id' field: %+v", r)
		}
	default:
		return "", fmt.Errorf("unexpected live query result type: %T", v)
	}
	if id == "" {
		return "", fmt.Errorf("live query returned empty UUID")
	}
	return id, nil
}

func (s *SurrealLiveQueryService) killOnCancel(ctx context.Context, dbConn *surrealdb.DB, state *subscriptionState) {
	<-ctx.Done()

	if err := dbConn.CloseLiveNotifications(state.liveQueryID); err != nil {
		s.logger.Warn("Failed to close live notifications", "error", err, "liveQueryID", state.liveQueryID)
	}

	// Let the listener drain before the server-side kill.
	select {
	case <-state.stopped:
	case <-time.After(100 * time.Millisecond):
	}

	cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cleanupCancel()

	_, err := surrealdb.Query[any](cleanupCtx, dbConn, "KILL $liveQueryID", map[string]any{
		"liveQueryID": state.liveQueryID,
	})
	if err != nil {
		s.logger.Warn("Failed to kill live query", "error", err, "liveQueryID", state.liveQueryID)
		return
	}
	s.logger.Debug("Killed live query", "liveQueryID", state.liveQueryID)
}

// Unsubscribe removes a live query subscription. Unknown IDs are ignored.
func (s *SurrealLiveQueryService) Unsubscribe(subID string) error {
	if state, ok := s.subscriptions.LoadAndDelete(subID); ok {
		state.(*subscriptionState).cancel()
		s.logger.Debug("Live query subscription removed", "subID", subID)
	}
	return nil
}

// ActiveCount reports how many subscriptions are open.
func (s *SurrealLiveQueryService) ActiveCount() int {
	n := 0
	s.subscriptions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// listenForNotifications forwards notifications to the handler until the
// subscription is cancelled or the stream closes, then delivers ActionClose.
func (s *SurrealLiveQueryService) listenForNotifications(ctx context.Context, state *subscriptionState, notificationChan <-chan connection.Notification) {
	defer func() {
		close(state.stopped)
		s.subscriptions.Delete(state.id)
		s.deliver(ctx, state, ActionClose, nil)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case notification, ok := <-notificationChan:
			if !ok {
				s.logger.Debug("Live query notification channel closed", "subID", state.id)
				return
			}

			action, known := mapAction(notification.Action)
			if !known {
				s.logger.Warn("Unknown notification action", "subID", state.id, "action", notification.Action)
				continue
			}
			s.deliver(ctx, state, action, notification.Result)
		}
	}
}

func (s *SurrealLiveQueryService) deliver(ctx context.Context, state *subscriptionState, action LiveQueryAction, data any) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic in live query handler", "subID", state.id, "panic", r)
		}
	}()
	state.handler(ctx, action, data)
}

func mapAction(a connection.Action) (LiveQueryAction, bool) {
	switch a {
	case connection.CreateAction:
		return ActionCreate, true
	case connection.UpdateAction:
		return ActionUpdate, true
	case connection.DeleteAction:
		return ActionDelete, true
	default:
		return "", false
	}
}
