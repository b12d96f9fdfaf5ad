package websocket

import (
	"encoding/json"

	"github.com/nfrund/chorus/internal/domain"
	"github.com/nfrund/chorus/internal/messagesync"
)

// Outbound frame types.
const (
	TypeView  = "view"
	TypeAck   = "ack"
	TypeError = "error"
)

// Actions a client may send.
const (
	ActionRebind = "rebind"
	ActionLoad   = "load"
	ActionSend   = "send"
	ActionEdit   = "edit"
	ActionDelete = "delete"
)

// Message is a frame sent to the client. View frames carry the latest
// synchronizer view; ack and error frames answer a Command and echo its
// request ID.
type Message struct {
	Type      string            `json:"type"`
	RequestID string            `json:"request_id,omitempty"`
	Action    string            `json:"action,omitempty"`
	View      *messagesync.View `json:"view,omitempty"`
	Message   *domain.Message   `json:"message,omitempty"`
	Error     *ErrorBody        `json:"error,omitempty"`
}

// ErrorBody describes a failed command.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Command is a frame received from the client. Scope uses the "kind:id"
// form; an empty Scope on rebind unbinds.
type Command struct {
	RequestID string `json:"request_id,omitempty"`
	Action    string `json:"action"`
	Scope     string `json:"scope,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

// NewViewMessage wraps a view.
func NewViewMessage(v messagesync.View) *Message {
	return &Message{Type: TypeView, View: &v}
}

// NewAck answers cmd, optionally with the message it produced.
func NewAck(cmd Command, msg *domain.Message) *Message {
	return &Message{Type: TypeAck, RequestID: cmd.RequestID, Action: cmd.Action, Message: msg}
}

// NewErrorMessage answers cmd with err.
func NewErrorMessage(cmd Command, code string, err error) *Message {
	return &Message{
		Type:      TypeError,
		RequestID: cmd.RequestID,
		Action:    cmd.Action,
		Error:     &ErrorBody{Code: code, Message: err.Error()},
	}
}

func encode(m *Message) ([]byte, error) {
	return json.Marshal(m)
}
