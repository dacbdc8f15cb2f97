// Package scheduler drives periodic pipeline runs in daemon mode.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/couchcryptid/weather-data-etl/internal/pipeline"
)

// Runner executes one pipeline run. The pipeline implements it.
type Runner interface {
	Run(ctx context.Context) (*pipeline.RunReport, error)
}

// Scheduler fires a pipeline run at a fixed interval. Runs never overlap; a
// slow run pushes the next one back instead of racing it on the same
// artifacts.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	runner     Runner
	interval   time.Duration
	runTimeout time.Duration
	logger     *slog.Logger
}

func New(runner Runner, interval, runTimeout time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler:  s,
		runner:     runner,
		interval:   interval,
		runTimeout: runTimeout,
		logger:     logger,
	}
}

// Start schedules the periodic job and starts the underlying scheduler. The
// first run fires immediately.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		return fmt.Errorf("schedule runs: interval must be positive, got %s", s.interval)
	}

	_, err := s.scheduler.Every(s.interval).Do(func() {
		ctx := context.Background()
		if s.runTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
			defer cancel()
		}
		if _, err := s.runner.Run(ctx); err != nil {
			s.logger.Error("scheduled run failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule runs: %w", err)
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", slog.Duration("interval", s.interval))
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	s.logger.Info("scheduler stopped")
}
