package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Queue enqueues batch jobs for the worker process.
type Queue struct {
	c *asynq.Client
}

func NewQueue(redisAddr string) *Queue {
	return &Queue{c: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})}
}

func (q *Queue) Close() error { return q.c.Close() }

func (q *Queue) EnqueueRunBatch(ctx context.Context, p RunBatchPayload) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal batch payload: %w", err)
	}
	if _, err := q.c.EnqueueContext(ctx, asynq.NewTask(TaskRunBatch, b), asynq.MaxRetry(0)); err != nil {
		return fmt.Errorf("enqueue %s: %w", TaskRunBatch, err)
	}
	return nil
}
