package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper periodically evicts stale participants through a Tracker.
// A sweep that is already running when Shutdown is called is allowed to
// finish; no new sweep starts afterwards.
type Sweeper struct {
	tracker  *Tracker
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	// sweepMu serializes ticker sweeps and SweepNow.
	sweepMu sync.Mutex

	mu      sync.Mutex
	started bool
	stopped bool
	stop    chan struct{}
	done    chan struct{}
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweeperLogger sets the sweeper's logger.
func WithSweeperLogger(l *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		s.logger = l
	}
}

// WithSweepTimeout bounds each sweep. It defaults to the interval.
func WithSweepTimeout(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		s.timeout = d
	}
}

// NewSweeper creates a sweeper that fires every interval. A non-positive
// interval falls back to DefaultSweepInterval.
func NewSweeper(tracker *Tracker, interval time.Duration, opts ...SweeperOption) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	s := &Sweeper{
		tracker:  tracker,
		interval: interval,
		logger:   slog.Default(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.timeout <= 0 {
		s.timeout = s.interval
	}
	s.logger = s.logger.With("service", "sweeper")
	return s
}

// Start launches the sweep loop. Calling it more than once, or after
// Shutdown, does nothing.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true

	go s.run()
	s.logger.Info("Sweeper started", "interval", s.interval, "stale_threshold", s.tracker.StaleThreshold())
}

func (s *Sweeper) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// A shutdown that raced with the tick wins.
			select {
			case <-s.stop:
				return
			default:
			}
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

// sweep runs one pass under its own deadline so that shutting down never
// cuts a pass in half.
func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.SweepNow(ctx); err != nil {
		s.logger.Error("Sweep failed", "error", err)
	}
}

// SweepNow runs one eviction pass synchronously.
func (s *Sweeper) SweepNow(ctx context.Context) (EvictionReport, error) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	start := time.Now()
	report, err := s.tracker.EvictStale(ctx)
	if err != nil {
		return report, err
	}

	if len(report.Evicted) > 0 || len(report.Failed) > 0 {
		s.logger.Info("Sweep finished",
			"checked", report.Checked,
			"evicted", len(report.Evicted),
			"failed", len(report.Failed),
			"duration", time.Since(start))
	}
	return report, nil
}

// Shutdown stops future sweeps and waits for an in-flight one to finish or
// for ctx to end, whichever comes first.
func (s *Sweeper) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		close(s.stop)
	}
	started := s.started
	s.mu.Unlock()

	if !started {
		return nil
	}

	select {
	case <-s.done:
		s.logger.Info("Sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
