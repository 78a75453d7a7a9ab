// Package scheduler wraps gocron/v2 around the orchestrator's tick function:
// a single fixed-interval job, singleton-skip so an overlapping trigger is
// dropped rather than queued.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// TickFunc is the orchestrator tick the scheduler drives.
type TickFunc func(ctx context.Context) error

// Scheduler registers one TickFunc at a fixed interval. Overlapping
// triggers are dropped (gocron.LimitModeSkip), not queued, bounding load.
type Scheduler struct {
	gocron gocron.Scheduler
	logger zerolog.Logger
	tick   TickFunc
}

// New builds a scheduler and registers the tick job, but does not start it;
// call Start to begin firing.
func New(interval time.Duration, tick TickFunc, logger zerolog.Logger) (*Scheduler, error) {
	gs, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create gocron scheduler: %w", err)
	}

	s := &Scheduler{
		gocron: gs,
		logger: logger.With().Str("component", "scheduler").Logger(),
		tick:   tick,
	}

	_, err = gs.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.runTick),
		gocron.WithSingletonMode(gocron.LimitModeSkip),
	)
	if err != nil {
		return nil, fmt.Errorf("register orchestrator tick job: %w", err)
	}

	return s, nil
}

func (s *Scheduler) runTick() {
	start := time.Now()
	s.logger.Info().Msg("tick starting")

	if err := s.tick(context.Background()); err != nil {
		s.logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("tick failed")
		return
	}
	s.logger.Info().Dur("elapsed", time.Since(start)).Msg("tick completed")
}

// Start begins firing the tick job on its interval.
func (s *Scheduler) Start() {
	s.logger.Info().Msg("starting scheduler")
	s.gocron.Start()
}

// Stop cancels pending ticks and blocks until any in-flight tick completes.
func (s *Scheduler) Stop() error {
	s.logger.Info().Msg("stopping scheduler")
	return s.gocron.Shutdown()
}

// RunNow runs the tick function synchronously, bypassing the schedule. The
// HTTP API's manual trigger does not go through it; it calls the
// orchestrator directly.
func (s *Scheduler) RunNow(ctx context.Context) error {
	return s.tick(ctx)
}
