package messagesync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nfrund/chorus/internal/domain"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func msgAt(id, channel string, t int) domain.Message {
	at := epoch.Add(time.Duration(t) * time.Second)
	return domain.Message{ID: id, ChannelID: channel, UserID: "author-" + id, Content: "content " + id, CreatedAt: at, UpdatedAt: at}
}

// fakeMessages is an in-memory MessageRepository. Loads for a scope can be
// held back with a gate.
type fakeMessages struct {
	mu       sync.Mutex
	rows     map[domain.Scope][]domain.Message
	listErr  error
	gates    map[domain.Scope]chan struct{}
	writeErr error
	calls    map[string]int
	nextID   int
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{
		rows:  make(map[domain.Scope][]domain.Message),
		gates: make(map[domain.Scope]chan struct{}),
		calls: make(map[string]int),
	}
}

func (f *fakeMessages) set(scope domain.Scope, rows ...domain.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[scope] = rows
}

func (f *fakeMessages) hold(scope domain.Scope) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gates[scope] = gate
	return gate
}

func (f *fakeMessages) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeMessages) ListRecent(ctx context.Context, scope domain.Scope, limit int) ([]domain.Message, error) {
	f.mu.Lock()
	f.calls["list"]++
	gate := f.gates[scope]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	rows := append([]domain.Message(nil), f.rows[scope]...)
	if len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}
	return rows, nil
}

func (f *fakeMessages) Insert(_ context.Context, msg domain.NewMessage) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["insert"]++
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	f.nextID++
	m := domain.Message{
		ID:        fmt.Sprintf("sent-%d", f.nextID),
		UserID:    msg.UserID,
		Content:   msg.Content,
		CreatedAt: epoch.Add(time.Hour),
		UpdatedAt: epoch.Add(time.Hour),
	}
	if msg.Scope.Kind == domain.ScopeChannel {
		m.ChannelID = msg.Scope.ID
	} else {
		m.ConversationID = msg.Scope.ID
	}
	return &m, nil
}

func (f *fakeMessages) UpdateContent(_ context.Context, id, authorID, content string) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["update"]++
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	return &domain.Message{ID: id, UserID: authorID, Content: content}, nil
}

func (f *fakeMessages) Delete(_ context.Context, id, authorID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["delete"]++
	return f.writeErr
}

func (f *fakeMessages) LatestByConversations(context.Context, []string) (map[string]domain.Message, error) {
	return map[string]domain.Message{}, nil
}

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]domain.Profile
	lookups  int
	err      error
}

func (f *fakeProfiles) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeProfiles) put(p domain.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[p.ID] = p
}

func (f *fakeProfiles) FindByIDs(_ context.Context, ids []string) ([]domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Profile
	for _, id := range ids {
		if p, ok := f.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProfiles) FindByID(context.Context, string) (*domain.Profile, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeProfiles) Create(_ context.Context, id string) (*domain.Profile, error) {
	return &domain.Profile{ID: id}, nil
}

func (f *fakeProfiles) Update(_ context.Context, id string, _ domain.ProfileUpdate) (*domain.Profile, error) {
	return &domain.Profile{ID: id}, nil
}

func (f *fakeProfiles) Search(context.Context, domain.ProfileSearch) ([]domain.Profile, error) {
	return nil, nil
}

type fakeSub struct {
	scope     domain.Scope
	events    chan domain.ChangeEvent
	closeOnce sync.Once
	closed    chan struct{}
}

func (f *fakeSub) Events() <-chan domain.ChangeEvent { return f.events }

func (f *fakeSub) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeSub) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// fakeFeed hands out fakeSubs; tests push events into the latest one.
type fakeFeed struct {
	mu   sync.Mutex
	subs []*fakeSub
	err  error
}

func (f *fakeFeed) Subscribe(_ context.Context, scope domain.Scope) (domain.FeedSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	sub := &fakeSub{scope: scope, events: make(chan domain.ChangeEvent, 64), closed: make(chan struct{})}
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *fakeFeed) all() []*fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeSub(nil), f.subs...)
}

func (f *fakeFeed) latest() *fakeSub {
	subs := f.all()
	if len(subs) == 0 {
		return nil
	}
	return subs[len(subs)-1]
}

func (f *fakeFeed) open() int {
	n := 0
	for _, s := range f.all() {
		if !s.isClosed() {
			n++
		}
	}
	return n
}

type fakeSession struct{ userID string }

func (f fakeSession) CurrentUserID(context.Context) (string, error) {
	if f.userID == "" {
		return "", domain.ErrUnauthenticated
	}
	return f.userID, nil
}
