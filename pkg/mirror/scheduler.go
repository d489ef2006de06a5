package mirror

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sdejongh/dirmirror/pkg/logging"
	"github.com/sdejongh/dirmirror/pkg/models"
)

// Runner executes one cycle
type Runner interface {
	Run(ctx context.Context) (*models.CycleReport, error)
}

// Scheduler runs cycles forever, one at a time, waiting a fixed interval
// after each cycle completes
type Scheduler struct {
	runner   Runner
	interval time.Duration
	clock    clockwork.Clock
	logger   logging.Logger
	cycles   atomic.Int64
}

// NewScheduler creates a scheduler on the real clock
func NewScheduler(runner Runner, interval time.Duration, logger logging.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		clock:    clockwork.NewRealClock(),
		logger:   logging.OrNull(logger),
	}
}

// SetClock replaces the clock, for tests
func (s *Scheduler) SetClock(clock clockwork.Clock) {
	s.clock = clock
}

// Cycles returns the number of cycles that have completed
func (s *Scheduler) Cycles() int64 {
	return s.cycles.Load()
}

// Run starts with an immediate cycle and then re-arms the timer after each
// cycle. It returns nil once ctx is cancelled. Failed cycles are logged
// and retried on the next tick.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return &models.ConfigError{Field: "Interval", Message: fmt.Sprintf("invalid interval %s", s.interval)}
	}
	if ctx.Err() != nil {
		return nil
	}

	s.logger.Info(ctx, "mirror started", logging.Fields{"interval": s.interval.String()})
	defer s.logger.Info(context.Background(), "mirror stopped", logging.Fields{"cycles": s.cycles.Load()})

	s.runCycle(ctx)

	timer := s.clock.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.Chan():
			if ctx.Err() != nil {
				return nil
			}
			s.runCycle(ctx)
			timer.Reset(s.interval)
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	defer s.cycles.Add(1)

	report, err := s.runner.Run(ctx)
	if err != nil {
		// The cycle already logged the failure; cancellation is not one
		if ctx.Err() == nil {
			s.logger.Debug(ctx, "retrying on next tick", logging.Fields{"in": s.interval.String()})
		}
		return
	}
	if report != nil && report.Status == models.StatusPartial {
		s.logger.Warn(ctx, "cycle finished with errors", logging.Fields{
			"cycle_id": report.CycleID,
			"errors":   len(report.Errors),
		})
	}
}
