package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

// slidingWindow keeps one sorted-set member per action, scored by its time in
// milliseconds. Returns {1, 0} when recorded or {0, retry_after_ms}.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count >= max then
  local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  return {0, tonumber(oldest[2]) + window - now}
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return {1, 0}
`)

// Redis is a sliding-window limiter shared by every process using the same
// Redis instance.
type Redis struct {
	c      *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedis(c *redis.Client, prefix string) *Redis {
	return &Redis{c: c, prefix: prefix, now: time.Now}
}

func (r *Redis) Performed(ctx context.Context, key string, max int, window time.Duration) error {
	sp, ctx := tracer.StartSpanFromContext(ctx, "redis.ratelimit.performed", tracer.Tag("key", key))
	defer sp.Finish()

	now := r.now().UnixMilli()
	res, err := slidingWindow.Run(ctx, r.c, []string{r.prefix + key},
		now, window.Milliseconds(), max, fmt.Sprintf("%d-%s", now, uuid.NewString()),
	).Int64Slice()
	if err != nil {
		sp.SetTag("error", err)
		return fmt.Errorf("rate limit %s: %w", key, err)
	}
	if len(res) != 2 {
		return fmt.Errorf("rate limit %s: unexpected reply %v", key, res)
	}
	if res[0] == 1 {
		return nil
	}
	return &LimitExceededError{Key: key, Max: max, Window: window, RetryAfter: time.Duration(res[1]) * time.Millisecond}
}
