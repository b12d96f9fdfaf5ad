package pubsub

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// WatermillBridge implements Bus on watermill's in-memory GoChannel.
type WatermillBridge struct {
	pub    message.Publisher
	sub    message.Subscriber
	logger *slog.Logger
}

var _ Bus = (*WatermillBridge)(nil)

const (
	// Metadata keys used to carry Message fields through watermill metadata.
	metaKeyUserID = "user_id"
	metaKeyTopic  = "topic"
)

// BridgeOption configures a WatermillBridge.
type BridgeOption func(*bridgeConfig)

type bridgeConfig struct {
	logger *slog.Logger
	buffer int64
}

// WithBridgeLogger routes bridge and watermill logs to logger.
func WithBridgeLogger(logger *slog.Logger) BridgeOption {
	return func(c *bridgeConfig) { c.logger = logger }
}

// WithBufferSize sets the per-subscriber output buffer.
func WithBufferSize(n int64) BridgeOption {
	return func(c *bridgeConfig) { c.buffer = n }
}

// NewWatermillBridge initializes an in-memory bus.
func NewWatermillBridge(opts ...BridgeOption) *WatermillBridge {
	cfg := bridgeConfig{
		logger: slog.Default().With("service", "pubsub"),
		buffer: 64,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	goChannel := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: cfg.buffer},
		&slogAdapter{logger: cfg.logger},
	)

	return &WatermillBridge{
		pub:    goChannel,
		sub:    goChannel,
		logger: cfg.logger,
	}
}

// mapToWatermillMessage converts a Message to a watermill message.
func mapToWatermillMessage(msg Message) *message.Message {
	wmMsg := message.NewMessage(watermill.NewUUID(), msg.Payload)
	for k, v := range msg.Metadata {
		wmMsg.Metadata.Set(k, v)
	}
	wmMsg.Metadata.Set(metaKeyUserID, msg.UserID)
	wmMsg.Metadata.Set(metaKeyTopic, msg.Topic)
	return wmMsg
}

// mapToPubSubMessage converts a watermill message back to a Message.
func mapToPubSubMessage(wmMsg *message.Message) Message {
	userID := wmMsg.Metadata.Get(metaKeyUserID)
	topic := wmMsg.Metadata.Get(metaKeyTopic)

	metadata := make(map[string]string)
	for k, v := range wmMsg.Metadata {
		if k != metaKeyUserID && k != metaKeyTopic {
			metadata[k] = v
		}
	}

	return Message{
		Topic:    topic,
		UserID:   userID,
		Payload:  wmMsg.Payload,
		Metadata: metadata,
	}
}

// Publish implements the Publisher interface.
func (wb *WatermillBridge) Publish(ctx context.Context, msg Message) error {
	return wb.pub.Publish(msg.Topic, mapToWatermillMessage(msg))
}

// Subscribe implements the Subscriber interface. Messages of one subscription
// are handled one at a time. GoChannel does not preserve publish order across
// messages, so payloads that need ordering carry their own sequence.
func (wb *WatermillBridge) Subscribe(ctx context.Context, topic string, handler Handler) error {
	messages, err := wb.sub.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	go func() {
		for wmMsg := range messages {
			msg := mapToPubSubMessage(wmMsg)
			if err := handler(ctx, msg); err != nil {
				wb.logger.Error("Failed to handle message", "topic", topic, "msg_id", wmMsg.UUID, "error", err)
				// GoChannel redelivers a nacked message, so a handler error is
				// logged and acked rather than retried forever.
				wmMsg.Ack()
				continue
			}
			wmMsg.Ack()
		}
		wb.logger.Debug("Subscription message loop ended", "topic", topic)
	}()

	return nil
}

// Close shuts down the bridge and ends every subscription.
func (wb *WatermillBridge) Close() error {
	return wb.sub.Close()
}

// slogAdapter implements watermill.LoggerAdapter on slog.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) args(fields watermill.LogFields) []any {
	out := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		out = append(out, k, v)
	}
	return out
}

func (a *slogAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.logger.Error(msg, append(a.args(fields), "error", err)...)
}

func (a *slogAdapter) Info(msg string, fields watermill.LogFields) {
	// watermill logs every subscribe at info level.
	a.logger.Debug(msg, a.args(fields)...)
}

func (a *slogAdapter) Debug(msg string, fields watermill.LogFields) {
	a.logger.Debug(msg, a.args(fields)...)
}

func (a *slogAdapter) Trace(msg string, fields watermill.LogFields) {
	a.logger.Log(context.Background(), slog.LevelDebug-4, msg, a.args(fields)...)
}

func (a *slogAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &slogAdapter{logger: a.logger.With(a.args(fields)...)}
}
