package service

import (
	"context"
	"time"

	"github.com/herbstock/herbstock-backend/pkg/logger"
)

// Sweeper runs one alert sweep over every location
type Sweeper interface {
	Sweep(ctx context.Context) (*SweepResult, error)
}

// SweepScheduler runs the alert sweep once a day at a fixed local hour.
type SweepScheduler struct {
	sweeper Sweeper
	hour    int
	zone    *time.Location
	logger  *logger.Logger
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSweepScheduler creates a scheduler firing daily at hour in zone
func NewSweepScheduler(sweeper Sweeper, hour int, zone *time.Location, log *logger.Logger) *SweepScheduler {
	if zone == nil {
		zone = time.UTC
	}
	return &SweepScheduler{
		sweeper: sweeper,
		hour:    hour,
		zone:    zone,
		logger:  log.WithComponent("sweep-scheduler"),
	}
}

// Start starts the scheduler in a background goroutine
func (s *SweepScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		for {
			next := NextSweep(time.Now(), s.hour, s.zone)
			s.logger.Info().Time("next_run", next).Msg("alert sweep scheduled")

			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				s.logger.Info().Msg("sweep scheduler stopped")
				return
			case <-timer.C:
				s.run(ctx)
			}
		}
	}()
}

// Stop stops the scheduler and waits for a running sweep to finish
func (s *SweepScheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *SweepScheduler) run(ctx context.Context) {
	s.logger.Info().Msg("starting alert sweep")

	result, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("alert sweep failed")
		return
	}

	s.logger.Info().
		Int("items", result.Items).
		Int("alerts_raised", result.AlertsRaised).
		Int("failures", result.Failures).
		Dur("duration", result.Duration).
		Msg("alert sweep completed")
}

// NextSweep returns the first instant after now at which the local clock
// in zone reads hour:00.
func NextSweep(now time.Time, hour int, zone *time.Location) time.Time {
	local := now.In(zone)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, zone)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, 0, 0, 0, zone)
	}
	return next
}
