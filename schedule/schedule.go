// Package schedule runs a task on a cron expression, for workflows that
// collect reports periodically.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/sbfi/knimekit/log"

	"github.com/adhocore/gronx"
)

// Task is one scheduled unit of work, typically a collect run.
type Task func(ctx context.Context) error

// Runner invokes a task at every tick of a cron expression.
type Runner struct {
	expression string
	logger     log.Logger
}

// New validates the cron expression and returns a Runner.
func New(expression string, logger log.Logger) (*Runner, error) {
	gron := gronx.New()
	if !gron.IsValid(expression) {
		return nil, fmt.Errorf("invalid cron expression '%s'", expression)
	}

	if logger == nil {
		logger = log.New("")
	}

	return &Runner{
		expression: expression,
		logger:     logger.WithComponent("schedule").WithField("cron", expression),
	}, nil
}

// Run blocks and invokes the task at each due tick until the context is
// done. A failing task is logged and doesn't stop the schedule.
func (r *Runner) Run(ctx context.Context, task Task) error {
	for {
		next, err := gronx.NextTick(r.expression, false)
		if err != nil {
			return err
		}

		wait := time.Until(next)

		r.logger.Debug().WithField("next", next).Log("Waiting for next tick")

		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if err := task(ctx); err != nil {
			r.logger.Error().WithError(err).Log("Scheduled run failed")
		}
	}
}
