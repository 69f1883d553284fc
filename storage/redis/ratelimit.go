package redisstore

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "rl:"

// RateLimiter is a fixed window counter: at most `limit` hits per key and window.
type RateLimiter struct {
	rdb     redis.Cmdable
	limit   int
	window  time.Duration
	nowFunc func() time.Time
}

func NewRateLimiter(rdb redis.Cmdable, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{rdb: rdb, limit: limit, window: window, nowFunc: time.Now}
}

// Allow records a hit for key. It reports whether the hit is within the limit
// and how long until the current window resets.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	now := rl.nowFunc()
	windowStart := now.Truncate(rl.window)
	k := rateLimitPrefix + key + ":" + strconv.FormatInt(windowStart.Unix(), 10)
	reset := windowStart.Add(rl.window).Sub(now)

	count, err := rl.rdb.Incr(ctx, k).Result()
	if err != nil {
		return false, 0, errors.Wrap(err, "incrementing rate limit counter")
	}
	if count == 1 {
		if err := rl.rdb.Expire(ctx, k, rl.window).Err(); err != nil {
			return false, 0, errors.Wrap(err, "expiring rate limit counter")
		}
	}
	return count <= int64(rl.limit), reset, nil
}

func (rl *RateLimiter) Limit() int {
	return rl.limit
}
