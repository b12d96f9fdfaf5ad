package pubsub

import (
	"context"
)

// Message is the structure passed between components on the bus.
type Message struct {
	// Topic identifies the event stream, e.g. "community.channels.stale".
	Topic string
	// UserID identifies the user whose action produced the message.
	UserID string
	// Payload is the JSON-encoded event body.
	Payload []byte
	// Metadata carries small routing values such as a server_id.
	Metadata map[string]string
}

// Handler defines the function signature for processing a received message.
type Handler func(ctx context.Context, msg Message) error

// Publisher defines the contract for sending messages to the bus.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber defines the contract for receiving messages from the bus.
type Subscriber interface {
	// Subscribe starts delivering messages of topic to handler in the
	// background and returns immediately. Delivery stops when ctx is done.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}

// Bus is both ends of an in-process bus.
type Bus interface {
	Publisher
	Subscriber
}
