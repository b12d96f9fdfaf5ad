package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SignalContext returns a context that is cancelled on an interrupt or
// terminate signal.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// Shutdown closes the live streams, stops accepting requests, closes every
// open session and stops presence tracking.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server", "streams", s.clients.Count(), "sessions", s.sessions.count())
	s.clients.CloseAll()
	err := s.E.Shutdown(ctx)
	s.sessions.closeAll(ctx)

	s.stopPresence()
	s.presence.Shutdown()
	if s.ownsBus {
		if cerr := s.bus.Close(); cerr != nil {
			s.logger.Warn("Failed to close event bus", "error", cerr)
		}
	}
	return err
}
