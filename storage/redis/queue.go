package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/skillbarter/backend/core"
	"github.com/skillbarter/backend/core/notification"
)

const queuePrefix = "queue:"

// Queue is a Redis list of notification jobs: LPUSH to enqueue, BRPOP to consume.
type Queue struct {
	rdb redis.Cmdable
	key string
}

var _ notification.Queue = (*Queue)(nil) // interface compliance check

func NewQueue(rdb redis.Cmdable, name string) *Queue {
	return &Queue{rdb: rdb, key: queuePrefix + name}
}

func (q *Queue) Enqueue(ctx context.Context, job notification.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return errors.Wrap(err, "encoding notification job")
	}
	return errors.Wrap(q.rdb.LPush(ctx, q.key, data).Err(), "enqueuing notification job")
}

// Len is the number of jobs waiting.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}

// Dequeue waits up to `timeout` for a job. It returns redis.Nil when none arrived.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (notification.Job, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		return notification.Job{}, err
	}
	var job notification.Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return notification.Job{}, errors.Wrap(err, "decoding notification job")
	}
	return job, nil
}

// Deliverer delivers dequeued jobs.
type Deliverer interface {
	Deliver(ctx context.Context, job notification.Job) error
}

// Worker consumes the queue until its context is cancelled.
type Worker struct {
	queue       *Queue
	deliverer   Deliverer
	logger      core.Logger
	pollTimeout time.Duration
}

func NewWorker(queue *Queue, deliverer Deliverer, logger core.Logger) *Worker {
	return &Worker{queue: queue, deliverer: deliverer, logger: logger, pollTimeout: time.Second}
}

// Run blocks until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := w.queue.Dequeue(ctx, w.pollTimeout)
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			w.logger.Error(fmt.Sprintf("dequeuing notification job: %v", err), err)
			select {
			case <-ctx.Done():
			case <-time.After(w.pollTimeout):
			}
			continue
		}
		if err := w.deliverer.Deliver(ctx, job); err != nil {
			w.logger.Error(fmt.Sprintf("delivering %s notification: %v", job.Type, err), err, job.UserID)
		}
	}
}
