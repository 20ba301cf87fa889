// Package queue implements the Job Pipeline: a durable queue over Redis
// sorted sets with two job kinds, "convert" and "update-tips".
package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/cockroachdb/errors"
)

const (
	KindConvert    = "convert"
	KindUpdateTips = "update-tips"
)

// ConvertPayload is the job body enqueued by POST /upload once an LSIF file
// has been spooled to disk.
type ConvertPayload struct {
	Repository string `json:"repository"`
	Commit     string `json:"commit"`
	Root       string `json:"root"`
	Filename   string `json:"filename"`
}

// UpdateTipsPayload triggers a commit-graph refresh and tip-visibility
// recompute for a single repository.
type UpdateTipsPayload struct {
	Repository string `json:"repository"`
}

// Job is a durable unit of work claimed from the queue by a worker.
type Job struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
}

const (
	queuedKey     = "precise-code-intel:queued"
	processingKey = "precise-code-intel:processing"
)

// Queue is the durable job pipeline. One Queue is shared by the api-server
// process (which only enqueues) and the worker process (which dequeues,
// completes, requeues, and resets stalled leases).
type Queue struct {
	client *redis.Client
}

// New wraps an already-configured go-redis client.
func New(client *redis.Client) *Queue {
	return &Queue{client: client}
}

// Enqueue adds a job of the given kind to the queued set, scored by the
// current time so Dequeue claims jobs in FIFO order.
func (q *Queue) Enqueue(ctx context.Context, kind string, payload interface{}) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, "json.Marshal")
	}

	job := Job{ID: uuid.New().String(), Kind: kind, Payload: encoded, EnqueuedAt: time.Now()}

	jobData, err := json.Marshal(job)
	if err != nil {
		return "", errors.Wrap(err, "json.Marshal job")
	}

	if err := q.client.ZAdd(ctx, queuedKey, &redis.Z{
		Score:  float64(job.EnqueuedAt.UnixNano()),
		Member: jobData,
	}).Err(); err != nil {
		return "", errors.Wrap(err, "ZAdd")
	}

	return job.ID, nil
}

// Dequeue claims the oldest queued job, if any, by popping it with ZPOPMIN,
// so no two callers receive the same job, and then records it in the
// processing hash with a lease expiring after leaseDuration. The pop and the
// lease record are two separate commands; a job popped but not yet recorded
// is in neither the queued set nor the processing hash.
func (q *Queue) Dequeue(ctx context.Context, leaseDuration time.Duration) (*Job, bool, error) {
	results, err := q.client.ZPopMin(ctx, queuedKey, 1).Result()
	if err != nil {
		return nil, false, errors.Wrap(err, "ZPopMin")
	}
	if len(results) == 0 {
		return nil, false, nil
	}

	jobData, ok := results[0].Member.(string)
	if !ok {
		return nil, false, errors.New("queue: unexpected member type in queued set")
	}

	var job Job
	if err := json.Unmarshal([]byte(jobData), &job); err != nil {
		return nil, false, errors.Wrap(err, "json.Unmarshal job")
	}

	lease := lease{Job: job, Deadline: time.Now().Add(leaseDuration)}
	leaseData, err := json.Marshal(lease)
	if err != nil {
		return nil, false, errors.Wrap(err, "json.Marshal lease")
	}

	if err := q.client.HSet(ctx, processingKey, job.ID, leaseData).Err(); err != nil {
		return nil, false, errors.Wrap(err, "HSet")
	}

	return &job, true, nil
}

// Complete removes a successfully processed job from the processing hash.
func (q *Queue) Complete(ctx context.Context, jobID string) error {
	return q.client.HDel(ctx, processingKey, jobID).Err()
}

// Requeue removes jobID from the processing hash and re-adds it to the
// queued set, scored by the current time plus delay. Dequeue pops the lowest
// score without comparing it to the current time, so delay places the job
// behind lower-scored jobs but does not hold it back from Dequeue.
func (q *Queue) Requeue(ctx context.Context, job Job, delay time.Duration) error {
	jobData, err := json.Marshal(job)
	if err != nil {
		return errors.Wrap(err, "json.Marshal job")
	}

	pipe := q.client.TxPipeline()
	pipe.HDel(ctx, processingKey, job.ID)
	pipe.ZAdd(ctx, queuedKey, &redis.Z{
		Score:  float64(time.Now().Add(delay).UnixNano()),
		Member: jobData,
	})
	_, err = pipe.Exec(ctx)
	return errors.Wrap(err, "TxPipeline")
}

type lease struct {
	Job      Job       `json:"job"`
	Deadline time.Time `json:"deadline"`
}

// ResetStalled scans the processing hash for leases past their deadline and
// moves the underlying jobs back to the queued set. It returns the ids of
// every job it reset.
func (q *Queue) ResetStalled(ctx context.Context) ([]string, error) {
	entries, err := q.client.HGetAll(ctx, processingKey).Result()
	if err != nil {
		return nil, errors.Wrap(err, "HGetAll")
	}

	now := time.Now()

	var reset []string
	for jobID, leaseData := range entries {
		var l lease
		if err := json.Unmarshal([]byte(leaseData), &l); err != nil {
			return reset, errors.Wrap(err, "json.Unmarshal lease")
		}
		if now.Before(l.Deadline) {
			continue
		}

		if err := q.Requeue(ctx, l.Job, 0); err != nil {
			return reset, err
		}
		reset = append(reset, jobID)
	}

	return reset, nil
}

// QueueSize reports the number of jobs waiting to be claimed.
func (q *Queue) QueueSize(ctx context.Context) (int, error) {
	n, err := q.client.ZCard(ctx, queuedKey).Result()
	return int(n), err
}
