package alerts

import (
	"context"
	"time"

	"github.com/farmdash/farmdash-backend/pkg/logger"
)

// Scheduler runs alert scans periodically in a background goroutine.
type Scheduler struct {
	engine   *Engine
	interval time.Duration
	logger   *logger.Logger
	cancel   context.CancelFunc
}

// NewScheduler creates a new alert scheduler
func NewScheduler(engine *Engine, interval time.Duration, log *logger.Logger) *Scheduler {
	return &Scheduler{
		engine:   engine,
		interval: interval,
		logger:   log.WithComponent("alert-scheduler"),
	}
}

// Start starts the scheduler. An initial scan runs immediately so a fresh
// process surfaces existing conditions without waiting a full interval.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		s.logger.Info().Dur("interval", s.interval).Msg("alert scheduler started")

		s.runScanCycle(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("alert scheduler stopped")
				return
			case <-ticker.C:
				s.runScanCycle(ctx)
			}
		}
	}()
}

// Stop stops the scheduler goroutine
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Scheduler) runScanCycle(ctx context.Context) {
	start := time.Now()

	if err := s.engine.Scan(ctx); err != nil {
		s.logger.Error().Err(err).Msg("alert scan failed")
		return
	}

	s.logger.Info().
		Dur("duration", time.Since(start)).
		Msg("alert scan cycle completed")
}
