package retention

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler runs an Engine's Enforce on a fixed interval until stopped,
// mirroring the collector's background-worker ticker/stop/done shutdown
// join (spec.md §5: retention enforcement runs independently of request
// handling and must shut down cleanly).
type Scheduler struct {
	engine   *Engine
	interval time.Duration
	logger   *slog.Logger

	stop chan struct{}
	done chan struct{}
}

// NewScheduler builds a Scheduler that enforces e's policies every
// interval. interval <= 0 defaults to one hour.
func NewScheduler(e *Engine, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		engine:   e,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the scheduler's background loop. It returns immediately;
// call Stop to end it.
func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.engine.Enforce(ctx); err != nil {
				s.logger.ErrorContext(ctx, "retention enforcement failed", "error", err)
			}
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop signals the background loop to exit and blocks until it has, or
// until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.stop:
		// already stopped
	default:
		close(s.stop)
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce runs a single enforcement pass synchronously, independent of the
// ticker. Useful for tests and for an operator-triggered manual sweep.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.engine.Enforce(ctx)
}
