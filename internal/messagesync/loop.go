package messagesync

import (
	"context"
	"time"

	"github.com/nfrund/chorus/internal/domain"
	"github.com/nfrund/chorus/internal/pubsub"
)

// Everything in this file runs on the loop goroutine.

// bind switches to scope and returns the new token.
func (s *Synchronizer) bind(scope *domain.Scope) uint64 {
	s.releaseSubscription()
	s.token++
	s.scope = scope
	s.timeline.reset()
	s.err = nil
	if scope == nil {
		s.state = StateUnbound
		s.logger.Debug("Unbound")
	} else {
		s.state = StateLoading
		s.logger.Debug("Bound", "scope", scope.String(), "token", s.token)
	}
	s.publish()
	return s.token
}

// attach installs sub for token and begins the initial load. It reports
// false when a newer bind superseded token.
func (s *Synchronizer) attach(token uint64, sub domain.FeedSubscription) (loadRequest, bool) {
	if token != s.token || s.scope == nil {
		return loadRequest{}, false
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.sub = sub
	s.subCancel = cancel
	go s.forward(ctx, token, sub)

	req, _ := s.beginLoad()
	return req, true
}

func (s *Synchronizer) subscribeFailed(token uint64, err error) {
	if token != s.token {
		return
	}
	s.logger.Warn("Live feed subscription failed", "scope", s.scope.String(), "error", err)
	s.state = StateError
	s.err = err
	s.publish()
}

// beginLoad marks a load in flight for the bound scope.
func (s *Synchronizer) beginLoad() (loadRequest, bool) {
	if s.scope == nil {
		return loadRequest{}, false
	}
	s.loadGen++
	s.state = StateLoading
	s.timeline.beginLoad()
	s.publish()
	return loadRequest{token: s.token, gen: s.loadGen, scope: *s.scope}, true
}

// applyLoad installs a load result unless a rebind or a newer load
// superseded it.
func (s *Synchronizer) applyLoad(req loadRequest, loaded []domain.MessageWithAuthor, err error) error {
	if req.token != s.token || req.gen != s.loadGen || s.scope == nil {
		stale := &domain.StaleResultError{Requested: req.scope, Current: s.scope}
		s.logger.Debug("Discarding stale load", "error", stale)
		return stale
	}

	if err != nil {
		ferr := asFetchError("messages "+req.scope.String(), err)
		s.timeline.failLoad()
		s.state = StateError
		s.err = ferr
		s.publish()
		return ferr
	}

	s.timeline.applyLoad(loaded)
	s.state = StateSynced
	s.err = nil
	s.publish()
	return nil
}

// applyEvent reconciles one live notification.
func (s *Synchronizer) applyEvent(token uint64, ev domain.ChangeEvent, author domain.Author) {
	if token != s.token || s.scope == nil {
		s.logger.Debug("Dropping event for previous scope", "kind", ev.Kind, "id", ev.Message.ID)
		return
	}

	var changed bool
	switch ev.Kind {
	case domain.ChangeInsert:
		if !ev.Message.InScope(*s.scope) {
			s.logger.Debug("Dropping insert outside scope", "id", ev.Message.ID)
			return
		}
		changed = s.timeline.insert(domain.MessageWithAuthor{Message: ev.Message, Author: author})
	case domain.ChangeUpdate:
		changed = s.timeline.update(ev.Message)
	case domain.ChangeDelete:
		changed = s.timeline.remove(ev.Message.ID)
	}
	if changed {
		s.publish()
	}
}

// feedEnded records that the backend dropped the live feed. Reconnecting is
// left to the caller, who can Rebind.
func (s *Synchronizer) feedEnded(token uint64) {
	if token != s.token || s.sub == nil {
		return
	}
	s.logger.Warn("Live feed ended", "scope", s.scope.String())
	s.subCancel()
	s.sub = nil
	s.subCancel = nil
	s.publish()
}

func (s *Synchronizer) releaseSubscription() {
	if s.subCancel != nil {
		s.subCancel()
		s.subCancel = nil
	}
	if s.sub != nil {
		if err := s.sub.Close(); err != nil {
			s.logger.Warn("Failed to close feed subscription", "error", err)
		}
		s.sub = nil
	}
}

func (s *Synchronizer) teardown() {
	s.releaseSubscription()
	s.token++
	s.scope = nil
	s.timeline.reset()
	s.err = nil
	s.state = StateUnbound
	s.publish()
	s.logger.Debug("Closed")
}

// publish stores a fresh view and, with a publisher configured, sends it on
// the bus.
func (s *Synchronizer) publish() {
	s.seq++
	v := View{
		SyncID:   s.id,
		Seq:      s.seq,
		State:    s.state,
		Live:     s.sub != nil,
		Err:      s.err,
		Messages: s.timeline.snapshot(),
	}
	if s.scope != nil {
		scope := *s.scope
		v.Scope = &scope
	}
	if s.err != nil {
		v.Error = s.err.Error()
	}

	s.viewMu.Lock()
	s.view = v
	s.viewMu.Unlock()

	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := pubsub.Publish(ctx, s.publisher, TopicViewChanged, v, map[string]string{MetaSyncID: s.id}); err != nil {
		s.logger.Warn("Failed to publish view", "seq", v.Seq, "error", err)
	}
}
