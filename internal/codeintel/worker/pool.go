package worker

import (
	"context"
	"sync"
	"time"

	"github.com/sourcegraph/log"

	"github.com/sourcegraph/precise-code-intel/internal/codeintel/queue"
)

// LeaseDuration is how long a dequeued job is reserved before ResetStalled
// considers it abandoned and returns it to the queue.
const LeaseDuration = 5 * time.Minute

// Pool runs a fixed number of concurrent job processors against a Queue
// until stopped.
type Pool struct {
	queue        *queue.Queue
	processor    Processor
	pollInterval time.Duration
	semaphore    chan struct{}
	logger       log.Logger

	ctx    context.Context
	cancel func()
	once   sync.Once
	wg     sync.WaitGroup
}

// NewPool builds a Pool with numRoutines concurrent processor slots.
func NewPool(q *queue.Queue, processor Processor, pollInterval time.Duration, numRoutines int, logger log.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	semaphore := make(chan struct{}, numRoutines)
	for i := 0; i < numRoutines; i++ {
		semaphore <- struct{}{}
	}

	return &Pool{
		queue:        q,
		processor:    processor,
		pollInterval: pollInterval,
		semaphore:    semaphore,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start blocks the calling goroutine, polling the queue and dispatching jobs
// to processor routines until Stop is called.
func (p *Pool) Start() {
	ctx := p.ctx

	for {
		ok, err := p.dequeueAndProcess(ctx)
		if err != nil {
			p.logger.Error("failed to dequeue job", log.Error(err))
		}

		delay := p.pollInterval
		if ok {
			delay = 0
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			p.wg.Wait()
			return
		}
	}
}

// Stop cancels the poll loop and returns at once; Start waits for in-flight
// jobs to finish before it returns.
func (p *Pool) Stop() {
	p.once.Do(p.cancel)
}

// dequeueAndProcess reserves a processor routine, claims a job, and runs it
// in the background. It blocks while every routine is busy, and returns
// false (and does not error) when ctx is done or the queue was empty.
func (p *Pool) dequeueAndProcess(ctx context.Context) (bool, error) {
	if !p.reserve(ctx) {
		return false, nil
	}

	job, ok, err := p.queue.Dequeue(ctx, LeaseDuration)
	if err != nil {
		p.release()
		return false, err
	}
	if !ok {
		p.release()
		return false, nil
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.release()

		if err := p.processor.Process(ctx, *job); err != nil {
			p.logger.Warn("failed to process job", log.String("jobID", job.ID), log.String("kind", job.Kind), log.Error(err))
			return
		}

		if err := p.queue.Complete(ctx, job.ID); err != nil {
			p.logger.Warn("failed to mark job complete", log.String("jobID", job.ID), log.Error(err))
		}
	}()

	return true, nil
}

func (p *Pool) reserve(ctx context.Context) bool {
	select {
	case <-p.semaphore:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *Pool) release() {
	p.semaphore <- struct{}{}
}
