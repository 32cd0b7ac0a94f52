package jobs

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
)

// Client enqueues background tasks from the API process.
type Client struct {
	inner *asynq.Client
}

func NewClient(opts asynq.RedisClientOpt) *Client {
	return &Client{inner: asynq.NewClient(opts)}
}

func (c *Client) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}

// EnqueueRateLimitSweep schedules a one-off prune of expired rate-limit
// window entries.
func (c *Client) EnqueueRateLimitSweep(ctx context.Context, window time.Duration) error {
	task, err := NewRateLimitSweepTask(RateLimitSweepPayload{Window: window})
	if err != nil {
		return err
	}
	_, err = c.inner.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}
