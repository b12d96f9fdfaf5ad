package websocket

import "github.com/nfrund/chorus/internal/pubsub"

// ClientEvent describes a stream client coming or going.
type ClientEvent struct {
	ClientID string `json:"client_id"`
	UserID   string `json:"user_id"`
	Reason   string `json:"reason,omitempty"`
}

var (
	// TopicClientReady is published once a stream is serving its client.
	TopicClientReady = pubsub.NewEvent[ClientEvent]("websocket.client.ready",
		"Published when a WebSocket stream client connects")

	// TopicClientDisconnected is published when a stream ends.
	TopicClientDisconnected = pubsub.NewEvent[ClientEvent]("websocket.client.disconnected",
		"Published when a WebSocket stream client disconnects")
)
