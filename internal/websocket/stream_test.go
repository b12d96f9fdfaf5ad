package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/nfrund/chorus/internal/domain"
	"github.com/nfrund/chorus/internal/messagesync"
	"github.com/nfrund/chorus/internal/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSync struct {
	id  string
	bus pubsub.Publisher

	mu     sync.Mutex
	seq    uint64
	scope  *domain.Scope
	closed atomic.Bool
}

func (f *fakeSync) ID() string { return f.id }

func (f *fakeSync) Snapshot() messagesync.View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return messagesync.View{SyncID: f.id, Seq: f.seq, Scope: f.scope, State: messagesync.StateUnbound}
}

func (f *fakeSync) publish(ctx context.Context) error {
	f.mu.Lock()
	f.seq++
	v := messagesync.View{SyncID: f.id, Seq: f.seq, Scope: f.scope, State: messagesync.StateSynced}
	f.mu.Unlock()
	return pubsub.Publish(ctx, f.bus, messagesync.TopicViewChanged, v, map[string]string{messagesync.MetaSyncID: f.id})
}

func (f *fakeSync) Rebind(ctx context.Context, scope *domain.Scope) error {
	f.mu.Lock()
	f.scope = scope
	f.mu.Unlock()
	return f.publish(ctx)
}

func (f *fakeSync) Load(ctx context.Context) error { return f.publish(ctx) }

func (f *fakeSync) Send(_ context.Context, content string) (*domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, &domain.ValidationError{Field: "content", Reason: "is required"}
	}
	return &domain.Message{ID: "m1", ChannelID: "general", UserID: "u1", Content: content}, nil
}

func (f *fakeSync) Edit(context.Context, string, string) (*domain.Message, error) {
	return nil, &domain.WriteError{Op: "edit message", Cause: domain.CausePermissionDenied}
}

func (f *fakeSync) Delete(context.Context, string) error { return nil }

func (f *fakeSync) Close() error {
	f.closed.Store(true)
	return nil
}

type streamHarness struct {
	bus     *pubsub.WatermillBridge
	syncer  *fakeSync
	clients *ClientManager
	conn    *websocket.Conn
	ctx     context.Context
	events  chan string
}

func newStreamHarness(t *testing.T, initial *domain.Scope) *streamHarness {
	t.Helper()
	bus := pubsub.NewWatermillBridge()
	h := &streamHarness{
		bus:     bus,
		syncer:  &fakeSync{id: "sync-1", bus: bus},
		clients: NewClientManager(),
		events:  make(chan string, 8),
	}
	for _, event := range []pubsub.Event[ClientEvent]{TopicClientReady, TopicClientDisconnected} {
		name := event.Name()
		require.NoError(t, pubsub.On(context.Background(), bus, event, func(_ context.Context, ev ClientEvent, _ pubsub.Message) error {
			h.events <- name + " " + ev.UserID
			return nil
		}))
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		stream := NewStream(conn, h.syncer, bus, "u1", WithPingPeriod(0))
		h.clients.Add(stream.Client())
		defer h.clients.Remove(stream.Client().ID)
		_ = stream.Run(r.Context(), initial)
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)

	h.conn = conn
	h.ctx = ctx
	t.Cleanup(func() {
		conn.Close(websocket.StatusNormalClosure, "")
		srv.Close()
		cancel()
		_ = bus.Close()
	})
	return h
}

func (h *streamHarness) read(t *testing.T) Message {
	t.Helper()
	var msg Message
	require.NoError(t, wsjson.Read(h.ctx, h.conn, &msg))
	return msg
}

// readUntil reads frames until match accepts one.
func (h *streamHarness) readUntil(t *testing.T, match func(Message) bool) Message {
	t.Helper()
	for {
		msg := h.read(t)
		if match(msg) {
			return msg
		}
	}
}

func (h *streamHarness) command(t *testing.T, cmd Command) {
	t.Helper()
	require.NoError(t, wsjson.Write(h.ctx, h.conn, cmd))
}

func isType(typ string) func(Message) bool {
	return func(m Message) bool { return m.Type == typ }
}

func TestStream_SendsInitialView(t *testing.T) {
	h := newStreamHarness(t, nil)

	msg := h.read(t)

	assert.Equal(t, TypeView, msg.Type)
	require.NotNil(t, msg.View)
	assert.Equal(t, "sync-1", msg.View.SyncID)
	assert.Equal(t, messagesync.StateUnbound, msg.View.State)
}

func TestStream_InitialScopeBinds(t *testing.T) {
	scope := domain.ChannelScope("general")
	h := newStreamHarness(t, &scope)

	view := h.readUntil(t, func(m Message) bool {
		return m.Type == TypeView && m.View.Scope != nil
	})

	assert.Equal(t, scope, *view.View.Scope)
	assert.Equal(t, messagesync.StateSynced, view.View.State)
}

func TestStream_RebindAcksAndPushesView(t *testing.T) {
	h := newStreamHarness(t, nil)
	h.read(t)

	h.command(t, Command{RequestID: "r1", Action: ActionRebind, Scope: "conversation:c1"})

	var ack, view *Message
	for ack == nil || view == nil {
		msg := h.read(t)
		switch msg.Type {
		case TypeAck:
			ack = &msg
		case TypeView:
			view = &msg
		}
	}
	assert.Equal(t, "r1", ack.RequestID)
	assert.Equal(t, ActionRebind, ack.Action)
	require.NotNil(t, view.View.Scope)
	assert.Equal(t, domain.ConversationScope("c1"), *view.View.Scope)
}

func TestStream_SendReturnsMessage(t *testing.T) {
	h := newStreamHarness(t, nil)

	h.command(t, Command{RequestID: "r2", Action: ActionSend, Content: "hello"})
	ack := h.readUntil(t, isType(TypeAck))

	assert.Equal(t, "r2", ack.RequestID)
	require.NotNil(t, ack.Message)
	assert.Equal(t, "hello", ack.Message.Content)
}

func TestStream_ErrorsCarryDomainCodes(t *testing.T) {
	h := newStreamHarness(t, nil)

	tests := []struct {
		cmd  Command
		code string
	}{
		{Command{RequestID: "a", Action: ActionSend, Content: "  "}, "validation"},
		{Command{RequestID: "b", Action: ActionEdit, MessageID: "m1", Content: "x"}, "permission_denied"},
		{Command{RequestID: "c", Action: ActionRebind, Scope: "room:1"}, "validation"},
		{Command{RequestID: "d", Action: "typing"}, "unknown_action"},
	}
	for _, tt := range tests {
		h.command(t, tt.cmd)
		msg := h.readUntil(t, isType(TypeError))

		assert.Equal(t, tt.cmd.RequestID, msg.RequestID)
		require.NotNil(t, msg.Error)
		assert.Equal(t, tt.code, msg.Error.Code, tt.cmd.Action)
	}
}

func TestStream_BadFrameIsReported(t *testing.T) {
	h := newStreamHarness(t, nil)

	require.NoError(t, h.conn.Write(h.ctx, websocket.MessageText, []byte("{not json")))
	msg := h.readUntil(t, isType(TypeError))

	assert.Equal(t, "bad_request", msg.Error.Code)
}

func TestStream_IgnoresOtherSynchronizers(t *testing.T) {
	h := newStreamHarness(t, nil)
	h.read(t)

	foreign := messagesync.View{SyncID: "other", Seq: 99, State: messagesync.StateError}
	require.NoError(t, pubsub.Publish(h.ctx, h.bus, messagesync.TopicViewChanged, foreign,
		map[string]string{messagesync.MetaSyncID: "other"}))
	h.command(t, Command{Action: ActionLoad})

	view := h.readUntil(t, isType(TypeView))
	assert.Equal(t, "sync-1", view.View.SyncID)
}

func TestStream_ClosingClientEndsStream(t *testing.T) {
	h := newStreamHarness(t, nil)
	h.read(t)
	require.Eventually(t, func() bool { return h.clients.Count() == 1 }, time.Second, 10*time.Millisecond)

	h.clients.CloseAll()

	_, _, err := h.conn.Read(h.ctx)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
	assert.Eventually(t, h.syncer.closed.Load, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return h.clients.Count() == 0 }, time.Second, 10*time.Millisecond)
}

func TestStream_PeerCloseReleasesSynchronizer(t *testing.T) {
	h := newStreamHarness(t, nil)
	h.read(t)

	require.NoError(t, h.conn.Close(websocket.StatusNormalClosure, "bye"))

	assert.Eventually(t, h.syncer.closed.Load, time.Second, 10*time.Millisecond)
}

func TestStream_OfferKeepsNewestView(t *testing.T) {
	s := &Stream{wake: make(chan struct{}, 1)}

	s.offer(messagesync.View{Seq: 3})
	s.offer(messagesync.View{Seq: 2})
	s.offer(messagesync.View{Seq: 3})

	v := s.takePending()
	require.NotNil(t, v)
	assert.Equal(t, uint64(3), v.Seq)
	assert.Nil(t, s.takePending())

	s.offer(messagesync.View{Seq: 3})
	assert.Nil(t, s.takePending(), "a replayed view is dropped")

	s.offer(messagesync.View{Seq: 4})
	assert.Equal(t, uint64(4), s.takePending().Seq)
}

func TestStream_AnnouncesClientLifecycle(t *testing.T) {
	h := newStreamHarness(t, nil)
	h.read(t)

	select {
	case ev := <-h.events:
		assert.Equal(t, "websocket.client.ready u1", ev)
	case <-time.After(time.Second):
		t.Fatal("no ready event")
	}

	require.NoError(t, h.conn.Close(websocket.StatusNormalClosure, "bye"))

	select {
	case ev := <-h.events:
		assert.Equal(t, "websocket.client.disconnected u1", ev)
	case <-time.After(time.Second):
		t.Fatal("no disconnected event")
	}
}
