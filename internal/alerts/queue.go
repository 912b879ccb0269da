package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

// enqueuer is the part of *asynq.Client the queue uses.
type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Queue puts dispatch and email work on Redis for the worker.
type Queue struct {
	client enqueuer
}

func NewQueue(redisAddr string) *Queue {
	return &Queue{client: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})}
}

func newQueue(c enqueuer) *Queue {
	return &Queue{client: c}
}

// DispatchTaskID is the dedupe key for a request's dispatch task.
func DispatchTaskID(requestID string) string {
	return "dispatch:" + requestID
}

// Schedule enqueues the dispatch for requestID. A dispatch already queued
// for the same request is left alone.
func (q *Queue) Schedule(ctx context.Context, requestID string) error {
	b, err := json.Marshal(DispatchPayload{RequestID: requestID, EnqueuedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TaskDispatchRequest, b)
	_, err = q.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueMatching),
		asynq.TaskID(DispatchTaskID(requestID)),
		asynq.MaxRetry(3),
		asynq.Retention(24*time.Hour),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

// EnqueueEmail schedules one outbound email.
func (q *Queue) EnqueueEmail(ctx context.Context, p EmailPayload) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	task := asynq.NewTask(TaskEmailNotification, b)
	_, err = q.client.EnqueueContext(ctx, task, asynq.Queue(QueueEmails), asynq.MaxRetry(5))
	return err
}

func (q *Queue) Close() error {
	return q.client.Close()
}
