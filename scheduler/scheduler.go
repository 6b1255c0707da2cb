package scheduler

import (
	"context"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/pkg/errors"

	"github.com/pgtelemetry/collector/util"
)

// Group runs work on a cron schedule (with seconds, e.g. "0 * * * * * *")
type Group struct {
	interval *cronexpr.Expression
}

func NewGroup(expression string) (Group, error) {
	interval, err := cronexpr.Parse(expression)
	if err != nil {
		return Group{}, errors.Wrapf(err, "invalid schedule %q", expression)
	}
	return Group{interval: interval}, nil
}

// NextRun - First scheduled time strictly after now
func (group Group) NextRun(now time.Time) time.Time {
	return group.interval.Next(now)
}

// Schedule calls runner at every scheduled time until ctx is cancelled. A run
// that takes longer than the interval delays the next run, runs never overlap.
//
// The returned channel is closed once the schedule has stopped and no run is
// in progress anymore.
func (group Group) Schedule(ctx context.Context, runner func(context.Context), logger *util.Logger, logName string) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			delay := time.Until(group.NextRun(time.Now()))

			logger.PrintVerbose("Scheduled next run for %s in %+v", logName, delay)

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
				if ctx.Err() != nil {
					return
				}
				runner(ctx)
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}
	}()
	return done
}
