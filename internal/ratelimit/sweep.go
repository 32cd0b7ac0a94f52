package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Sweep prunes entries older than window from every limiter key. Keys carry
// a hard TTL already; the sweep is the second line of defense against
// unbounded growth when a key keeps receiving traffic and its TTL keeps
// being refreshed. Returns the number of entries removed.
func Sweep(ctx context.Context, client *redis.Client, window time.Duration) (int64, error) {
	cutoff := strconv.FormatInt(time.Now().Add(-window).UnixMilli(), 10)

	var removed int64
	iter := client.Scan(ctx, 0, KeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := client.ZRemRangeByScore(ctx, iter.Val(), "-inf", cutoff).Result()
		if err != nil {
			return removed, fmt.Errorf("ratelimit: sweep %s: %w", iter.Val(), err)
		}
		removed += n
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("ratelimit: scan: %w", err)
	}
	return removed, nil
}
