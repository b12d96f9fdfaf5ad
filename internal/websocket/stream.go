package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/nfrund/chorus/internal/domain"
	"github.com/nfrund/chorus/internal/messagesync"
	"github.com/nfrund/chorus/internal/pubsub"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// DefaultPingPeriod is how often the server pings an idle peer.
	DefaultPingPeriod = 30 * time.Second
)

// Synchronizer is the part of a message synchronizer a stream drives.
type Synchronizer interface {
	ID() string
	Snapshot() messagesync.View
	Rebind(ctx context.Context, scope *domain.Scope) error
	Load(ctx context.Context) error
	Send(ctx context.Context, content string) (*domain.Message, error)
	Edit(ctx context.Context, messageID, content string) (*domain.Message, error)
	Delete(ctx context.Context, messageID string) error
	Close() error
}

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// WithLogger sets the stream's logger.
func WithLogger(logger *slog.Logger) StreamOption {
	return func(s *Stream) { s.logger = logger }
}

// WithPingPeriod sets the keep-alive interval. Zero disables pings.
func WithPingPeriod(d time.Duration) StreamOption {
	return func(s *Stream) { s.pingPeriod = d }
}

// Stream connects one WebSocket to one synchronizer. Views the synchronizer
// publishes on the bus are pushed to the peer, newest only; commands read
// from the peer are applied to the synchronizer and answered with an ack or
// an error frame.
type Stream struct {
	client     *Client
	conn       *websocket.Conn
	syncer     Synchronizer
	bus        pubsub.Bus
	whitelist  *clientWhitelist
	logger     *slog.Logger
	pingPeriod time.Duration

	mu      sync.Mutex
	pending *messagesync.View
	lastSeq uint64
	offered bool
	wake    chan struct{}
}

// NewStream creates a stream for userID over conn. Views are read from bus,
// and the client's arrival and departure are announced on it.
func NewStream(conn *websocket.Conn, syncer Synchronizer, bus pubsub.Bus, userID string, opts ...StreamOption) *Stream {
	s := &Stream{
		client:     NewClient(uuid.NewString(), userID, conn),
		conn:       conn,
		syncer:     syncer,
		bus:        bus,
		whitelist:  DefaultClientWhitelist(),
		logger:     slog.Default(),
		pingPeriod: DefaultPingPeriod,
		wake:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("client_id", s.client.ID, "user_id", userID, "sync_id", syncer.ID())
	return s
}

// Accept upgrades the request to a WebSocket. Same-origin requests are
// always allowed; originPatterns adds further hosts.
func Accept(w http.ResponseWriter, r *http.Request, originPatterns ...string) (*websocket.Conn, error) {
	return websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: originPatterns})
}

// Client returns the stream's client.
func (s *Stream) Client() *Client { return s.client }

// Run serves the connection until the peer leaves, ctx ends or the client
// is closed. When initial is set the synchronizer is bound to it first.
// The synchronizer is closed on return.
func (s *Stream) Run(ctx context.Context, initial *domain.Scope) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer func() {
		if err := s.syncer.Close(); err != nil {
			s.logger.Warn("Failed to close synchronizer", "error", err)
		}
	}()

	if err := pubsub.On(ctx, s.bus, messagesync.TopicViewChanged, s.onView); err != nil {
		return fmt.Errorf("subscribe to views: %w", err)
	}
	s.offer(s.syncer.Snapshot())
	s.announce(ctx, TopicClientReady, "")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer cancel()
		s.writePump(ctx)
	}()

	s.logger.Info("Stream opened")
	if initial != nil {
		s.reply(s.handle(ctx, Command{Action: ActionRebind, Scope: initial.String()}))
	}

	err := s.readPump(ctx)
	cancel()
	<-writerDone

	reason := "closed"
	if err != nil {
		reason = err.Error()
	}
	s.announce(context.WithoutCancel(ctx), TopicClientDisconnected, reason)
	s.logger.Info("Stream closed")
	return err
}

func (s *Stream) announce(ctx context.Context, event pubsub.Event[ClientEvent], reason string) {
	ev := ClientEvent{ClientID: s.client.ID, UserID: s.client.UserID, Reason: reason}
	if err := pubsub.Publish(ctx, s.bus, event, ev, nil); err != nil {
		s.logger.Warn("Failed to announce client", "topic", event.Name(), "error", err)
	}
}

func (s *Stream) onView(_ context.Context, v messagesync.View, msg pubsub.Message) error {
	if msg.Metadata[messagesync.MetaSyncID] != s.syncer.ID() {
		return nil
	}
	s.offer(v)
	return nil
}

// offer keeps v as the next view to write unless a newer one was already
// offered.
func (s *Stream) offer(v messagesync.View) {
	s.mu.Lock()
	if s.offered && v.Seq <= s.lastSeq {
		s.mu.Unlock()
		return
	}
	s.offered = true
	s.lastSeq = v.Seq
	s.pending = &v
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Stream) takePending() *messagesync.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.pending
	s.pending = nil
	return v
}

func (s *Stream) handle(ctx context.Context, cmd Command) *Message {
	if !s.whitelist.IsAllowed(cmd.Action) {
		return NewErrorMessage(cmd, "unknown_action", fmt.Errorf("action %q is not supported", cmd.Action))
	}

	var (
		msg *domain.Message
		err error
	)
	switch cmd.Action {
	case ActionRebind:
		var scope *domain.Scope
		if cmd.Scope != "" {
			parsed, perr := domain.ParseScope(cmd.Scope)
			if perr != nil {
				return NewErrorMessage(cmd, domain.Code(perr), perr)
			}
			scope = &parsed
		}
		err = s.syncer.Rebind(ctx, scope)
	case ActionLoad:
		err = s.syncer.Load(ctx)
	case ActionSend:
		msg, err = s.syncer.Send(ctx, cmd.Content)
	case ActionEdit:
		msg, err = s.syncer.Edit(ctx, cmd.MessageID, cmd.Content)
	case ActionDelete:
		err = s.syncer.Delete(ctx, cmd.MessageID)
	}
	if err != nil {
		s.logger.Debug("Command failed", "action", cmd.Action, "error", err)
		return NewErrorMessage(cmd, domain.Code(err), err)
	}
	return NewAck(cmd, msg)
}

func (s *Stream) reply(m *Message) {
	data, err := encode(m)
	if err != nil {
		s.logger.Error("Failed to encode frame", "type", m.Type, "error", err)
		return
	}
	s.client.SendMessage(data)
}

// readPump reads commands until the connection ends. A normal closure is
// not an error.
func (s *Stream) readPump(ctx context.Context) error {
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway ||
				errors.Is(err, io.EOF) || ctx.Err() != nil {
				s.logger.Debug("WebSocket closed", "status", status)
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.reply(NewErrorMessage(Command{}, "bad_request", fmt.Errorf("decode command: %w", err)))
			continue
		}
		s.reply(s.handle(ctx, cmd))
	}
}

// writePump is the only writer of the connection.
func (s *Stream) writePump(ctx context.Context) {
	var ping <-chan time.Time
	if s.pingPeriod > 0 {
		ticker := time.NewTicker(s.pingPeriod)
		defer ticker.Stop()
		ping = ticker.C
	}
	defer s.conn.Close(websocket.StatusNormalClosure, "stream closed")

	for {
		select {
		case <-ctx.Done():
			return

		case <-s.wake:
			v := s.takePending()
			if v == nil {
				continue
			}
			data, err := encode(NewViewMessage(*v))
			if err != nil {
				s.logger.Error("Failed to encode view", "seq", v.Seq, "error", err)
				continue
			}
			if err := s.write(ctx, data); err != nil {
				s.logger.Debug("WebSocket write error", "error", err)
				return
			}

		case data, ok := <-s.client.out:
			if !ok {
				return
			}
			if err := s.write(ctx, data); err != nil {
				s.logger.Debug("WebSocket write error", "error", err)
				return
			}

		case <-ping:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := s.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				s.logger.Debug("WebSocket ping failed", "error", err)
				return
			}
		}
	}
}

func (s *Stream) write(ctx context.Context, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return s.conn.Write(ctx, websocket.MessageText, data)
}
