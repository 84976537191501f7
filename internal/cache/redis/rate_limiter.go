package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/collabkale/kaledao/internal/domain"
)

const waitPollInterval = 50 * time.Millisecond

// slidingWindowScript trims expired entries from a sorted set of request
// timestamps and admits the request only when the window has room. Runs
// atomically so concurrent processes cannot overshoot the limit.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call("ZREMRANGEBYSCORE", key, 0, now - window)
local count = redis.call("ZCARD", key)
if count < limit then
	local seq = redis.call("INCR", key .. ":seq")
	redis.call("ZADD", key, now, now .. "-" .. seq)
	redis.call("PEXPIRE", key, math.ceil(window / 1000))
	redis.call("PEXPIRE", key .. ":seq", math.ceil(window / 1000))
	return 1
end
return 0
`)

// RateLimiter is a sliding-window limiter over Redis sorted sets. The resolver
// and the monitor share it to keep oracle gateway calls under the quota.
type RateLimiter struct {
	rdb *redis.Client
}

// NewRateLimiter creates a RateLimiter backed by the given Client.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{rdb: c.rdb}
}

func rateLimitKey(key string) string {
	return keyPrefix + "ratelimit:" + key
}

// Allow reports whether one more request for key fits in the window, counting
// it when it does.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	res, err := slidingWindowScript.Run(ctx, rl.rdb,
		[]string{rateLimitKey(key)},
		time.Now().UnixMicro(),
		window.Microseconds(),
		limit,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit allow %s: %w", key, err)
	}
	return res == 1, nil
}

// Wait blocks until a request for key is allowed, polling on a fixed
// interval. Returns the context error on cancellation.
func (rl *RateLimiter) Wait(ctx context.Context, key string, limit int, window time.Duration) error {
	for {
		allowed, err := rl.Allow(ctx, key, limit, window)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		timer := time.NewTimer(waitPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("redis: rate limit wait %s: %w", key, ctx.Err())
		case <-timer.C:
		}
	}
}

// Compile-time interface check.
var _ domain.RateLimiter = (*RateLimiter)(nil)
