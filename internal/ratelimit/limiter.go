// Package ratelimit implements a sliding window log limiter on a shared
// Redis counter store.
package ratelimit

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces limiter state in the shared store.
const KeyPrefix = "rate-limit:"

// Preset is a (max, window) quota pair. Presets are configuration, not
// distinct algorithms.
type Preset struct {
	Max    int
	Window time.Duration
}

// Built-in presets.
var (
	PresetStrict  = Preset{Max: 10, Window: time.Minute}
	PresetLenient = Preset{Max: 120, Window: time.Minute}
)

// Decision reports the outcome of a quota check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// windowScript runs prune, count and conditional insert as one atomic
// server-side step, so two concurrent checks for the same key cannot both
// observe a below-quota count and over-admit.
//
// KEYS[1] = window key
// ARGV[1] = now (unix milli), ARGV[2] = window (milli), ARGV[3] = max,
// ARGV[4] = entry member
// Returns {allowed, count-within-window}.
var windowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count >= max then
	return {0, count}
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return {1, count + 1}
`)

// Limiter checks request quotas against Redis. It holds no local counter
// state; every decision reads the shared store.
type Limiter struct {
	client *redis.Client
	logger *slog.Logger
	now    func() time.Time
	nonce  func() string
}

// NewLimiter constructs a Limiter.
func NewLimiter(client *redis.Client, logger *slog.Logger) *Limiter {
	return &Limiter{
		client: client,
		logger: logger,
		now:    time.Now,
		nonce:  func() string { return uuid.NewString() },
	}
}

// WithClock overrides the limiter clock. Used by tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Check records an admission attempt for key and decides whether the caller
// is within quota for the trailing window. Denied attempts are not recorded.
// An entry counts an admission attempt, not a completed operation; a request
// aborted downstream stays counted, which is what protects against retry
// storms.
//
// If Redis is unreachable the limiter fails open: the request is allowed and
// the condition logged as a warning. A limiter outage must never become an
// outage of the protected operation.
func (l *Limiter) Check(ctx context.Context, key string, max int, window time.Duration) Decision {
	now := l.now()
	reset := now.Add(window)

	// The nonce keeps two same-millisecond admissions from colliding on
	// the timestamp-derived member.
	member := strconv.FormatInt(now.UnixMilli(), 10) + "-" + l.nonce()

	res, err := windowScript.Run(ctx, l.client,
		[]string{key},
		now.UnixMilli(), window.Milliseconds(), max, member,
	).Int64Slice()
	if err != nil || len(res) != 2 {
		if l.logger != nil {
			l.logger.Warn("rate limiter unavailable, failing open",
				slog.String("key", key), slog.Any("error", err))
		}
		return Decision{Allowed: true, Limit: max, Remaining: max - 1, ResetAt: reset}
	}

	allowed := res[0] == 1
	count := int(res[1])

	d := Decision{
		Allowed:   allowed,
		Limit:     max,
		Remaining: max - count,
		ResetAt:   reset,
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !allowed {
		d.RetryAfter = window
	}
	return d
}

// ClientKey derives the anonymous quota key for a request: first
// forwarded-for hop, else the direct connection address, else a shared
// "unknown" sentinel. Callers behind the sentinel share one bucket; that is
// an accepted weakness of anonymous-IP fallback.
func ClientKey(r *http.Request) string {
	return KeyPrefix + clientIdentity(r)
}

// SubjectKey derives the per-account quota key for a verified subject.
func SubjectKey(subjectID int64) string {
	return KeyPrefix + strconv.FormatInt(subjectID, 10)
}

func clientIdentity(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
