package trigger

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Triggerer fires one engine run
type Triggerer interface {
	Trigger(ctx context.Context) error
}

// TriggerFunc adapts a function to Triggerer
type TriggerFunc func(ctx context.Context) error

// Trigger calls f(ctx)
func (f TriggerFunc) Trigger(ctx context.Context) error { return f(ctx) }

// Scheduler fires the trigger on a cron schedule. The engine has no loop of its own;
// this is the time-based caller that sits outside it.
type Scheduler struct {
	cron     *cron.Cron
	trigger  Triggerer
	schedule string
	logger   zerolog.Logger

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler validates the standard five-field cron expression and registers the job
func NewScheduler(schedule string, trigger Triggerer, logger zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		trigger:  trigger,
		schedule: schedule,
		logger:   logger.With().Str("component", "trigger_scheduler").Logger(),
	}

	// A slow engine run must not pile up calls from the same scheduler
	s.cron = cron.New(cron.WithChain(
		cron.Recover(cronLogger{s.logger}),
		cron.SkipIfStillRunning(cronLogger{s.logger}),
	))

	if _, err := s.cron.AddFunc(schedule, s.fire); err != nil {
		return nil, fmt.Errorf("invalid trigger schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins firing on schedule
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.Info().Str("schedule", s.schedule).Msg("Starting trigger scheduler")
	s.cron.Start()
}

// Stop halts the schedule and waits for an in-flight trigger to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info().Msg("Stopping trigger scheduler")
	<-s.cron.Stop().Done()
	s.cancel()
	s.logger.Info().Msg("Trigger scheduler stopped")
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunOnce fires the trigger immediately, outside the schedule
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.trigger.Trigger(ctx)
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		return
	}

	if err := s.trigger.Trigger(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Scheduled trigger failed")
	}
}

// cronLogger routes robfig/cron's logging through zerolog
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
