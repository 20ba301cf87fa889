package worker

import (
	"context"
	"time"

	"github.com/derision-test/glock"
	"github.com/sourcegraph/log"

	"github.com/sourcegraph/precise-code-intel/internal/codeintel/queue"
)

// Resetter periodically returns jobs whose processing lease has expired
// back to the queue, so a worker that dies mid-job does not strand it.
type Resetter struct {
	queue         *queue.Queue
	resetInterval time.Duration
	clock         glock.Clock
	logger        log.Logger
}

// NewResetter builds a Resetter that sweeps q every resetInterval.
func NewResetter(q *queue.Queue, resetInterval time.Duration, logger log.Logger) *Resetter {
	return newResetter(q, resetInterval, glock.NewRealClock(), logger)
}

func newResetter(q *queue.Queue, resetInterval time.Duration, clock glock.Clock, logger log.Logger) *Resetter {
	return &Resetter{queue: q, resetInterval: resetInterval, clock: clock, logger: logger}
}

// Run sweeps the queue for stalled leases until ctx is canceled.
func (r *Resetter) Run(ctx context.Context) {
	for {
		ids, err := r.queue.ResetStalled(ctx)
		if err != nil {
			r.logger.Error("failed to reset stalled jobs", log.Error(err))
		}
		for _, id := range ids {
			r.logger.Warn("reset stalled job", log.String("jobID", id))
		}

		select {
		case <-r.clock.After(r.resetInterval):
		case <-ctx.Done():
			return
		}
	}
}
