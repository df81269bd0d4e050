package server

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// shutdownTimeout bounds the graceful shutdown once Start is told to stop.
const shutdownTimeout = 10 * time.Second

// Start runs the sweeper and the HTTP server until ctx is done or the
// listener fails, then shuts everything down.
func (s *Server) Start(ctx context.Context) error {
	s.deps.Sweeper.Start()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.deps.Config.HTTPAddr)
		if err := s.E.Start(s.deps.Config.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down")
	case serveErr = <-errCh:
		if serveErr != nil {
			s.logger.Error("HTTP server failed", "error", serveErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return errors.Join(serveErr, s.Shutdown(shutdownCtx))
}
