package messagesync

import (
	"github.com/nfrund/chorus/internal/domain"
	"github.com/nfrund/chorus/internal/pubsub"
)

// State is the lifecycle position of a Synchronizer.
type State string

const (
	StateUnbound State = "unbound"
	StateLoading State = "loading"
	StateSynced  State = "synced"
	StateError   State = "error"
)

// View is an immutable snapshot of a Synchronizer. Seq increases with every
// change so consumers can drop views that arrive out of order.
type View struct {
	SyncID   string                     `json:"sync_id"`
	Seq      uint64                     `json:"seq"`
	Scope    *domain.Scope              `json:"scope,omitempty"`
	State    State                      `json:"state"`
	Live     bool                       `json:"live"`
	Error    string                     `json:"error,omitempty"`
	Err      error                      `json:"-"`
	Messages []domain.MessageWithAuthor `json:"messages"`
}

// IDs lists the message IDs of the view in order.
func (v View) IDs() []string {
	ids := make([]string, len(v.Messages))
	for i, m := range v.Messages {
		ids[i] = m.ID
	}
	return ids
}

// TopicViewChanged carries every View a Synchronizer publishes. The
// sync_id metadata entry names the publishing Synchronizer.
var TopicViewChanged = pubsub.NewEvent[View]("messagesync.view.changed",
	"Published whenever a message synchronizer's view changes")

// MetaSyncID is the metadata key holding the publishing Synchronizer's ID.
const MetaSyncID = "sync_id"
