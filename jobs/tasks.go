package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-hq/meridian/internal/ratelimit"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRateLimitSweep prunes stale entries from limiter windows.
	TaskRateLimitSweep = "ratelimit:sweep"
)

// RateLimitSweepPayload parameterizes a sweep run.
type RateLimitSweepPayload struct {
	Window time.Duration `json:"window"`
}

// NewRateLimitSweepTask constructs an Asynq task.
func NewRateLimitSweepTask(payload RateLimitSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRateLimitSweep, data), nil
}

// RateLimitSweepHandler returns the handler for TaskRateLimitSweep tasks.
// Limiter keys already carry a TTL; the sweep keeps hot keys from
// accumulating entries beyond the window while their TTL keeps sliding.
func RateLimitSweepHandler(client *redis.Client, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload RateLimitSweepPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.Window <= 0 {
			payload.Window = time.Minute
		}
		removed, err := ratelimit.Sweep(ctx, client, payload.Window)
		if err != nil {
			return err
		}
		if logger != nil {
			logger.Info("rate limit sweep complete", slog.Int64("removed", removed))
		}
		return nil
	}
}
