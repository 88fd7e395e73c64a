/*
scheduler.go - Periodic availability refresh

PURPOSE:
  Availability is derived from "today", so a snapshot written yesterday can
  be wrong this morning even though no record changed. The scheduler
  re-derives every snapshot on an interval so that list views stay correct
  without waiting for a read to trigger the refresh.

DESIGN:
  - Runs one background goroutine with a configurable interval
  - Runs once immediately on Start
  - Disabled unless configured; reads already refresh stale snapshots

USAGE:
  scheduler := NewAvailabilityScheduler(svc, logger, time.Hour)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RefreshAvailability endpoint (manual refresh)
  - leave/service.go: RefreshAll
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Refresher is the part of leave.Service the scheduler drives.
type Refresher interface {
	RefreshAll(ctx context.Context) (int, error)
}

// AvailabilityScheduler periodically re-derives every availability snapshot.
type AvailabilityScheduler struct {
	Refresher Refresher
	Logger    *zap.Logger
	Interval  time.Duration

	// Timeout bounds a single run. Zero means Interval.
	Timeout time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewAvailabilityScheduler creates a new scheduler.
func NewAvailabilityScheduler(refresher Refresher, logger *zap.Logger, interval time.Duration) *AvailabilityScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityScheduler{
		Refresher: refresher,
		Logger:    logger.Named("scheduler"),
		Interval:  interval,
	}
}

// Start begins the scheduler. Calling Start twice is a no-op.
func (s *AvailabilityScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		return
	}
	if s.Interval <= 0 {
		s.Logger.Warn("scheduler interval not positive, not starting", zap.Duration("interval", s.Interval))
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.ticker, s.stop)

	s.Logger.Info("scheduler started", zap.Duration("interval", s.Interval))
}

// Stop stops the scheduler and waits for an in-flight run to finish.
func (s *AvailabilityScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil

	s.Logger.Info("scheduler stopped")
}

func (s *AvailabilityScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	// Run immediately on start
	s.RunOnce()

	for {
		select {
		case <-ticker.C:
			s.RunOnce()
		case <-stop:
			return
		}
	}
}

// RunOnce performs a single refresh pass.
func (s *AvailabilityScheduler) RunOnce() {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = s.Interval
	}
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	n, err := s.Refresher.RefreshAll(ctx)
	if err != nil {
		s.Logger.Error("availability refresh incomplete",
			zap.Int("refreshed", n),
			zap.Duration("took", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	s.Logger.Debug("availability refresh done",
		zap.Int("refreshed", n),
		zap.Duration("took", time.Since(start)),
	)
}
