package ratelimit_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-hq/meridian/internal/ratelimit"
	_ "github.com/meridian-hq/meridian/testing"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newLimiter(t *testing.T) (*ratelimit.Limiter, *redis.Client, *testClock) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	clock := &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	limiter := ratelimit.NewLimiter(client, slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))).WithClock(clock.Now)
	return limiter, client, clock
}

func TestCheckWithinQuotaAllowsAll(t *testing.T) {
	limiter, _, clock := newLimiter(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		d := limiter.Check(ctx, "rate-limit:10.0.0.1", 10, time.Minute)
		require.True(t, d.Allowed, "request %d", i+1)
		assert.Equal(t, 10, d.Limit)
		assert.Equal(t, 10-i-1, d.Remaining)
		assert.Equal(t, clock.Now().Add(time.Minute), d.ResetAt)
		clock.Advance(time.Second)
	}
}

func TestCheckDeniesOverQuota(t *testing.T) {
	limiter, client, _ := newLimiter(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.True(t, limiter.Check(ctx, "rate-limit:10.0.0.1", 10, time.Minute).Allowed)
	}

	d := limiter.Check(ctx, "rate-limit:10.0.0.1", 10, time.Minute)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, time.Minute, d.RetryAfter)

	// The denied attempt must not be recorded.
	count, err := client.ZCard(ctx, "rate-limit:10.0.0.1").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(10), count)
}

func TestCheckWindowSlides(t *testing.T) {
	limiter, _, clock := newLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.True(t, limiter.Check(ctx, "rate-limit:42", 5, time.Minute).Allowed)
	}
	require.False(t, limiter.Check(ctx, "rate-limit:42", 5, time.Minute).Allowed)

	// A full window with no traffic drains the log entirely.
	clock.Advance(time.Minute + time.Millisecond)

	d := limiter.Check(ctx, "rate-limit:42", 5, time.Minute)
	assert.True(t, d.Allowed)
	assert.Equal(t, 4, d.Remaining)
}

func TestCheckKeysAreIndependent(t *testing.T) {
	limiter, _, _ := newLimiter(t)
	ctx := context.Background()

	require.True(t, limiter.Check(ctx, "rate-limit:a", 1, time.Minute).Allowed)
	require.False(t, limiter.Check(ctx, "rate-limit:a", 1, time.Minute).Allowed)

	assert.True(t, limiter.Check(ctx, "rate-limit:b", 1, time.Minute).Allowed)
}

func TestCheckConcurrentNoOverrun(t *testing.T) {
	limiter, client, _ := newLimiter(t)
	ctx := context.Background()

	const attempts = 30
	const max = 10

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Check(ctx, "rate-limit:burst", max, time.Minute).Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Prune, count and insert run as one server-side script, so a burst
	// can never admit past the quota.
	assert.Equal(t, max, allowed)

	count, err := client.ZCard(ctx, "rate-limit:burst").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(max), count)
}

func TestCheckFailsOpenWhenStoreDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	var logBuf bytes.Buffer
	limiter := ratelimit.NewLimiter(client, slog.New(slog.NewTextHandler(&logBuf, nil)))

	mr.Close()

	d := limiter.Check(context.Background(), "rate-limit:down", 10, time.Minute)
	assert.True(t, d.Allowed, "limiter outage must not block the caller")
	assert.Contains(t, logBuf.String(), "failing open")
}

func TestClientKeyDerivation(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "rate-limit:203.0.113.7", ratelimit.ClientKey(r))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.9:51112"
	assert.Equal(t, "rate-limit:192.0.2.9", ratelimit.ClientKey(r))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = ""
	assert.Equal(t, "rate-limit:unknown", ratelimit.ClientKey(r))
}

func TestSubjectKeyDerivation(t *testing.T) {
	assert.Equal(t, "rate-limit:42", ratelimit.SubjectKey(42))
}
