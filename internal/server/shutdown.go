package server

import (
	"context"
	"errors"
	"fmt"
)

// Shutdown stops the server and releases what it owns: requests are drained
// first, then the sweeper finishes its pass, then the bus, tracing and the
// store are closed.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	if err := s.E.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	if err := s.deps.Sweeper.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("sweeper: %w", err))
	}
	if err := s.deps.Bus.Close(); err != nil {
		errs = append(errs, fmt.Errorf("event bus: %w", err))
	}
	s.deps.Tracing.Cleanup(ctx)
	if err := s.deps.Store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		s.logger.Error("Shutdown incomplete", "error", err)
		return err
	}
	s.logger.Info("Shutdown complete")
	return nil
}
