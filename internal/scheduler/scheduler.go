// Package scheduler triggers automation runs on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/accioai/accio/internal/automation"
)

// Runner executes one automation run.
type Runner interface {
	Run(ctx context.Context) (*automation.RunResult, error)
}

// AutomationScheduler fires Runner.Run on a five-field cron expression.
type AutomationScheduler struct {
	cron     *cron.Cron
	runner   Runner
	schedule string
	logger   *slog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewAutomationScheduler validates schedule and prepares a scheduler.
func NewAutomationScheduler(schedule string, runner Runner, logger *slog.Logger) (*AutomationScheduler, error) {
	s := &AutomationScheduler{
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		runner:   runner,
		schedule: schedule,
		logger:   logger,
	}
	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("invalid automation schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins firing runs. Runs receive a context derived from ctx.
func (s *AutomationScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.Info("Starting automation scheduler", "schedule", s.schedule, "next_run", s.Next())
	s.cron.Start()
}

// Stop prevents new runs, cancels the one in flight, and waits for it.
func (s *AutomationScheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("Automation scheduler stopped")
}

// Next returns the next scheduled fire time, or zero before Start.
func (s *AutomationScheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *AutomationScheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	s.RunOnce(ctx)
}

// RunOnce executes a single run and logs the outcome.
func (s *AutomationScheduler) RunOnce(ctx context.Context) {
	s.logger.Info("Executing scheduled automation run")

	result, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, automation.ErrRunInProgress):
		s.logger.Info("Scheduled run skipped, another run is in progress")
	case err != nil:
		s.logger.Error("Scheduled automation run failed", "error", err)
	default:
		s.logger.Info("Scheduled automation run finished",
			"run_id", result.RunID,
			"items_fetched", result.ItemsFetched,
			"items_processed", result.ItemsProcessed,
		)
	}
}
