package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-hq/meridian/internal/ratelimit"
	"github.com/meridian-hq/meridian/jobs"
	_ "github.com/meridian-hq/meridian/testing"
)

func TestRateLimitSweepHandlerPrunesStaleEntries(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	key := ratelimit.KeyPrefix + "client:203.0.113.7"
	now := time.Now()
	fresh := redis.Z{Score: float64(now.UnixMilli()), Member: "fresh"}
	stale := redis.Z{Score: float64(now.Add(-2 * time.Minute).UnixMilli()), Member: "stale"}
	require.NoError(t, client.ZAdd(ctx, key, stale, fresh).Err())

	task, err := jobs.NewRateLimitSweepTask(jobs.RateLimitSweepPayload{Window: time.Minute})
	require.NoError(t, err)

	handler := jobs.RateLimitSweepHandler(client, nil)
	require.NoError(t, handler(ctx, task))

	members, err := client.ZRange(ctx, key, 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, members)
}

func TestRateLimitSweepHandlerRejectsGarbagePayload(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	handler := jobs.RateLimitSweepHandler(client, nil)
	task := asynq.NewTask(jobs.TaskRateLimitSweep, []byte("not-json"))
	err := handler(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}
