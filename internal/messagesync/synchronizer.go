package messagesync

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/nfrund/chorus/internal/domain"
	"github.com/nfrund/chorus/internal/pubsub"
	"github.com/samber/lo"
)

// DefaultLimit is how many of the newest messages a load fetches.
const DefaultLimit = 100

// ErrClosed is returned by operations on a closed Synchronizer.
var ErrClosed = errors.New("synchronizer closed")

// Synchronizer keeps a live, deduplicated, creation-ordered view of the
// messages of one scope. All state is owned by a single loop goroutine;
// backend calls run on the caller's goroutine or on helper goroutines and
// post their results back to the loop.
type Synchronizer struct {
	id        string
	messages  domain.MessageRepository
	profiles  domain.ProfileRepository
	feed      domain.MessageFeed
	session   domain.Session
	publisher pubsub.Publisher
	limit     int
	logger    *slog.Logger

	ops       chan func()
	done      chan struct{}
	loopDone  chan struct{}
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc

	authors sync.Map // userID -> domain.Author

	// Owned by the loop goroutine.
	scope     *domain.Scope
	token     uint64
	loadGen   uint64
	state     State
	err       error
	timeline  timeline
	sub       domain.FeedSubscription
	subCancel context.CancelFunc
	seq       uint64

	viewMu sync.RWMutex
	view   View
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLimit sets how many messages a load fetches.
func WithLimit(n int) Option {
	return func(s *Synchronizer) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synchronizer) {
		s.logger = logger
	}
}

// WithPublisher publishes every view change on TopicViewChanged.
func WithPublisher(p pubsub.Publisher) Option {
	return func(s *Synchronizer) {
		s.publisher = p
	}
}

// WithID sets the ID carried in published views. Defaults to a random UUID.
func WithID(id string) Option {
	return func(s *Synchronizer) {
		s.id = id
	}
}

// New creates a Synchronizer in the Unbound state and starts its loop.
// Call Close to release it.
func New(messages domain.MessageRepository, profiles domain.ProfileRepository, feed domain.MessageFeed, session domain.Session, opts ...Option) *Synchronizer {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Synchronizer{
		id:       uuid.NewString(),
		messages: messages,
		profiles: profiles,
		feed:     feed,
		session:  session,
		limit:    DefaultLimit,
		logger:   slog.Default(),
		ops:      make(chan func()),
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		state:    StateUnbound,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("service", "messagesync", "sync_id", s.id)
	s.view = View{SyncID: s.id, State: StateUnbound, Messages: []domain.MessageWithAuthor{}}

	go s.run()
	return s
}

// ID returns the synchronizer's ID.
func (s *Synchronizer) ID() string { return s.id }

func (s *Synchronizer) run() {
	defer close(s.loopDone)
	for {
		select {
		case op := <-s.ops:
			op()
		case <-s.done:
			s.teardown()
			return
		}
	}
}

// do runs fn on the loop and waits for it to finish.
func (s *Synchronizer) do(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	select {
	case s.ops <- func() { defer close(ran); fn() }:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-ran
	return nil
}

// post hands fn to the loop without waiting for it to run.
func (s *Synchronizer) post(ctx context.Context, fn func()) {
	select {
	case s.ops <- fn:
	case <-s.done:
	case <-ctx.Done():
	}
}

// Snapshot returns the latest view.
func (s *Synchronizer) Snapshot() View {
	s.viewMu.RLock()
	defer s.viewMu.RUnlock()
	return s.view
}

// State returns the current lifecycle state.
func (s *Synchronizer) State() State { return s.Snapshot().State }

// Scope returns the bound scope, or nil when unbound.
func (s *Synchronizer) Scope() *domain.Scope { return s.Snapshot().Scope }

// Rebind releases the current subscription and binds scope. A nil scope
// leaves the synchronizer Unbound. Otherwise it subscribes to the scope's
// live feed and starts a load in the background.
func (s *Synchronizer) Rebind(ctx context.Context, scope *domain.Scope) error {
	if scope != nil {
		if err := scope.Validate(); err != nil {
			return err
		}
		bound := *scope
		scope = &bound
	}

	var token uint64
	if err := s.do(ctx, func() { token = s.bind(scope) }); err != nil {
		return err
	}
	if scope == nil {
		return nil
	}

	sub, err := s.feed.Subscribe(ctx, *scope)
	if err != nil {
		ferr := asFetchError("message feed "+scope.String(), err)
		s.post(ctx, func() { s.subscribeFailed(token, ferr) })
		return ferr
	}

	var (
		req      loadRequest
		attached bool
	)
	if err := s.do(ctx, func() { req, attached = s.attach(token, sub) }); err != nil || !attached {
		if cerr := sub.Close(); cerr != nil {
			s.logger.WarnContext(ctx, "Failed to close unused feed subscription", "error", cerr)
		}
		return err
	}

	go func() {
		if err := s.fetchAndApply(s.ctx, req); err != nil && !errors.Is(err, domain.ErrStaleResult) && !errors.Is(err, ErrClosed) {
			s.logger.Warn("Initial load failed", "scope", req.scope.String(), "error", err)
		}
	}()
	return nil
}

// Load refetches the newest messages of the bound scope and replaces the
// list with them. A result for a scope that was unbound meanwhile is
// discarded and reported as a StaleResultError.
func (s *Synchronizer) Load(ctx context.Context) error {
	var (
		req loadRequest
		ok  bool
	)
	if err := s.do(ctx, func() { req, ok = s.beginLoad() }); err != nil {
		return err
	}
	if !ok {
		return &domain.ValidationError{Field: "scope", Reason: "no scope is bound"}
	}
	return s.fetchAndApply(ctx, req)
}

// Send submits content to the bound scope as the signed-in user. The new
// message reaches the list through the live feed only.
func (s *Synchronizer) Send(ctx context.Context, content string) (*domain.Message, error) {
	content, ok := domain.NormalizeContent(content)
	if !ok {
		return nil, &domain.ValidationError{Field: "content", Reason: "must not be empty"}
	}
	scope := s.Scope()
	if scope == nil {
		return nil, &domain.ValidationError{Field: "scope", Reason: "no scope is bound"}
	}
	userID, err := s.currentUser(ctx, "send message")
	if err != nil {
		return nil, err
	}

	msg, err := s.messages.Insert(ctx, domain.NewMessage{Scope: *scope, UserID: userID, Content: content})
	if err != nil {
		return nil, asWriteError("send message", err)
	}
	return msg, nil
}

// Edit rewrites the content of a message the signed-in user wrote. The list
// changes only when the live feed reports the update.
func (s *Synchronizer) Edit(ctx context.Context, messageID, content string) (*domain.Message, error) {
	if messageID == "" {
		return nil, &domain.ValidationError{Field: "id", Reason: "is required"}
	}
	content, ok := domain.NormalizeContent(content)
	if !ok {
		return nil, &domain.ValidationError{Field: "content", Reason: "must not be empty"}
	}
	userID, err := s.currentUser(ctx, "edit message")
	if err != nil {
		return nil, err
	}

	msg, err := s.messages.UpdateContent(ctx, messageID, userID, content)
	if err != nil {
		return nil, asWriteError("edit message", err)
	}
	return msg, nil
}

// Delete removes a message the signed-in user wrote. The list changes only
// when the live feed reports the delete.
func (s *Synchronizer) Delete(ctx context.Context, messageID string) error {
	if messageID == "" {
		return &domain.ValidationError{Field: "id", Reason: "is required"}
	}
	userID, err := s.currentUser(ctx, "delete message")
	if err != nil {
		return err
	}
	if err := s.messages.Delete(ctx, messageID, userID); err != nil {
		return asWriteError("delete message", err)
	}
	return nil
}

// Close releases the subscription, stops the loop and leaves the
// synchronizer Unbound. It is safe to call more than once.
func (s *Synchronizer) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		<-s.loopDone
		s.cancel()
	})
	return nil
}

func (s *Synchronizer) currentUser(ctx context.Context, op string) (string, error) {
	userID, err := s.session.CurrentUserID(ctx)
	switch {
	case errors.Is(err, domain.ErrUnauthenticated) || (err == nil && userID == ""):
		return "", &domain.AuthError{Op: op}
	case err != nil:
		return "", asFetchError("session", err)
	}
	return userID, nil
}

type loadRequest struct {
	token uint64
	gen   uint64
	scope domain.Scope
}

// fetchAndApply runs the backend reads off-loop and applies the result on it.
func (s *Synchronizer) fetchAndApply(ctx context.Context, req loadRequest) error {
	rows, err := s.messages.ListRecent(ctx, req.scope, s.limit)
	var loaded []domain.MessageWithAuthor
	if err == nil {
		loaded = s.withAuthors(ctx, rows)
	}

	var result error
	if derr := s.do(context.WithoutCancel(ctx), func() { result = s.applyLoad(req, loaded, err) }); derr != nil {
		return derr
	}
	return result
}

// withAuthors resolves every distinct author with one batched lookup. A
// failed lookup falls back to bare author IDs, which are not cached.
func (s *Synchronizer) withAuthors(ctx context.Context, rows []domain.Message) []domain.MessageWithAuthor {
	ids := lo.Uniq(lo.Map(rows, func(m domain.Message, _ int) string { return m.UserID }))

	var byID map[string]domain.Profile
	resolved := true
	if len(ids) > 0 {
		profiles, err := s.profiles.FindByIDs(ctx, ids)
		if err != nil {
			s.logger.WarnContext(ctx, "Failed to resolve message authors", "count", len(ids), "error", err)
			resolved = false
		}
		byID = lo.KeyBy(profiles, func(p domain.Profile) string { return p.ID })
	}

	return lo.Map(rows, func(m domain.Message, _ int) domain.MessageWithAuthor {
		var profile *domain.Profile
		if p, ok := byID[m.UserID]; ok {
			profile = &p
		}
		author := domain.AuthorFor(m.UserID, profile)
		if resolved {
			s.authors.Store(m.UserID, author)
		}
		return domain.MessageWithAuthor{Message: m, Author: author}
	})
}

// resolveAuthor looks up one author, preferring the cache filled by loads.
func (s *Synchronizer) resolveAuthor(ctx context.Context, userID string) domain.Author {
	if cached, ok := s.authors.Load(userID); ok {
		return cached.(domain.Author)
	}
	profiles, err := s.profiles.FindByIDs(ctx, []string{userID})
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to resolve author", "user_id", userID, "error", err)
		return domain.AuthorFor(userID, nil)
	}
	var profile *domain.Profile
	if len(profiles) > 0 {
		profile = &profiles[0]
	}
	author := domain.AuthorFor(userID, profile)
	s.authors.Store(userID, author)
	return author
}

// forward relays one subscription's events to the loop, resolving authors
// for inserts first. Events carry the token they were subscribed under.
func (s *Synchronizer) forward(ctx context.Context, token uint64, sub domain.FeedSubscription) {
	events := sub.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				s.post(ctx, func() { s.feedEnded(token) })
				return
			}
			var author domain.Author
			if ev.Kind == domain.ChangeInsert {
				author = s.resolveAuthor(ctx, ev.Message.UserID)
			}
			s.post(ctx, func() { s.applyEvent(token, ev, author) })
		}
	}
}

func asFetchError(resource string, err error) error {
	var fe *domain.FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &domain.FetchError{Resource: resource, Err: err}
}

func asWriteError(op string, err error) error {
	var we *domain.WriteError
	if errors.As(err, &we) || errors.Is(err, domain.ErrValidation) {
		return err
	}
	return domain.NewWriteError(op, err)
}
