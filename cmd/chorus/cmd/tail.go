package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/nfrund/chorus/internal/domain"
	"github.com/nfrund/chorus/internal/messagesync"
)

// tailPrinter turns successive views into a running transcript: new
// messages, edits and deletions are each printed once. Views older than
// the last one printed are skipped.
type tailPrinter struct {
	w       io.Writer
	json    *json.Encoder
	started bool
	lastSeq uint64
	state   messagesync.State
	scope   *domain.Scope
	seen    map[string]seenMessage
}

type seenMessage struct {
	content string
	sent    time.Time
}

func newTailPrinter(w io.Writer, asJSON bool) *tailPrinter {
	p := &tailPrinter{w: w, seen: make(map[string]seenMessage)}
	if asJSON {
		p.json = json.NewEncoder(w)
	}
	return p
}

func (p *tailPrinter) Print(v messagesync.View) error {
	if p.started && v.Seq <= p.lastSeq {
		return nil
	}
	p.started = true
	p.lastSeq = v.Seq

	if p.json != nil {
		return p.json.Encode(v)
	}

	if v.State != p.state {
		p.state = v.State
		if v.State == messagesync.StateError {
			fmt.Fprintf(p.w, "! %s\n", v.Error)
		}
	}

	if !domain.SameScope(p.scope, v.Scope) {
		p.scope = v.Scope
		p.seen = make(map[string]seenMessage)
	}

	current := make(map[string]bool, len(v.Messages))
	for _, m := range v.Messages {
		current[m.ID] = true
		prev, ok := p.seen[m.ID]
		switch {
		case !ok:
			fmt.Fprintln(p.w, formatLine(m, ""))
		case prev.content != m.Content:
			fmt.Fprintln(p.w, formatLine(m, " (edited)"))
		}
		p.seen[m.ID] = seenMessage{content: m.Content, sent: m.CreatedAt}
	}

	// A message newer than the view's oldest that left it was deleted.
	// Older ones were trimmed from the page and are only forgotten.
	for id, m := range p.seen {
		if current[id] {
			continue
		}
		delete(p.seen, id)
		if v.State == messagesync.StateSynced && len(v.Messages) > 0 && !m.sent.Before(v.Messages[0].CreatedAt) {
			fmt.Fprintf(p.w, "- %s deleted\n", id)
		}
	}
	return nil
}

func formatLine(m domain.MessageWithAuthor, suffix string) string {
	return fmt.Sprintf("[%s] %s%s: %s", formatTime(m.CreatedAt), displayName(m.Author), suffix, m.Content)
}
