package lifecycle

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler fires the evaporation sweep at process start and, when an
// interval is configured, periodically thereafter. Runs are serialized: a
// trigger that fires while a sweep is in flight is dropped, never run
// concurrently against the same store.
type Scheduler struct {
	coord    *Coordinator
	interval time.Duration
	logger   *slog.Logger
	mu       sync.Mutex
}

// NewScheduler builds a scheduler. interval <= 0 disables the periodic
// trigger; the startup sweep still runs.
func NewScheduler(coord *Coordinator, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{coord: coord, interval: interval, logger: logger}
}

// RunOnce performs a single sweep unless one is already in progress, in
// which case it reports skipped without running.
func (s *Scheduler) RunOnce(ctx context.Context) (moved int64, skipped bool, err error) {
	if !s.mu.TryLock() {
		return 0, true, nil
	}
	defer s.mu.Unlock()

	moved, err = s.coord.Evaporate(ctx)
	if err != nil {
		// A failed batch rolls back wholly; the next trigger retries it.
		s.logger.Error("evaporation sweep failed", slog.String("error", err.Error()))
		return 0, false, err
	}
	if moved > 0 {
		s.logger.Info("evaporation sweep finished", slog.Int64("moved", moved))
	}
	return moved, false, nil
}

// Start runs the startup sweep, then ticks until ctx is canceled. Errors are
// logged and retried on the next tick.
func (s *Scheduler) Start(ctx context.Context) {
	_, _, _ = s.RunOnce(ctx)
	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _, _ = s.RunOnce(ctx)
		}
	}
}
