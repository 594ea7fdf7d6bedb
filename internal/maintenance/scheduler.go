package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"notes-serverless/internal/observability"
)

const defaultSweepTimeout = 5 * time.Minute

type SweepRunner interface {
	Run(ctx context.Context) (SweepResult, error)
}

// Scheduler triggers the sweep on a cron schedule inside a long-running
// process. The serverless entry relies on the HTTP trigger instead.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
}

func NewScheduler(schedule string, runner SweepRunner, logger *observability.Logger) (*Scheduler, error) {
	cronLogger := cron.PrintfLogger(logger)
	c := cron.New(
		cron.WithLogger(cron.DiscardLogger),
		cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		),
	)

	s := &Scheduler{cron: c, timeout: defaultSweepTimeout}
	if _, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		// Run logs its own outcome.
		_, _ = runner.Run(ctx)
	}); err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", schedule, err)
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for a running sweep to finish or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
