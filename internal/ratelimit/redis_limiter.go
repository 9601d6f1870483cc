package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindow trims expired hits and adds the new one only when it fits, in one round trip.
// KEYS[1] zset; ARGV: now ms, exclusive cutoff, limit, member, ttl ms.
var slidingWindow = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[2])
local count = redis.call('ZCARD', KEYS[1])
local limit = tonumber(ARGV[3])
if count < limit then
  redis.call('ZADD', KEYS[1], ARGV[1], ARGV[4])
  redis.call('PEXPIRE', KEYS[1], ARGV[5])
  return {1, limit - count - 1}
end
return {0, 0}
`)

// RedisLimiter keeps one sorted set of hit timestamps per key, shared by every bot replica.
type RedisLimiter struct {
	client *redis.Client
	log    *slog.Logger
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter creates a Redis-backed Limiter implementation.
func NewRedisLimiter(client *redis.Client, log *slog.Logger) *RedisLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &RedisLimiter{client: client, log: log}
}

// Allow evaluates the sliding window for key. Rejected hits are not recorded.
func (l *RedisLimiter) Allow(ctx context.Context, key string, rule Rule) (*Result, error) {
	if l.client == nil {
		return nil, errors.New("redis client is not configured for rate limiting")
	}

	now := time.Now()
	if rule.Limit <= 0 {
		return &Result{ResetAt: now.Add(rule.Window)}, ErrLimitExceeded
	}

	nowMs := now.UnixMilli()
	cutoff := "(" + strconv.FormatInt(now.Add(-rule.Window).UnixMilli(), 10)
	ttl := (2 * rule.Window).Milliseconds()

	reply, err := slidingWindow.Run(ctx, l.client, []string{keyPrefix + key},
		nowMs, cutoff, rule.Limit, uuid.NewString(), ttl).Int64Slice()
	if err != nil {
		l.log.Error("rate limiter script failed", slog.String("key", key), slog.Any("error", err))
		return nil, err
	}
	if len(reply) != 2 {
		return nil, errors.New("rate limiter script returned an unexpected reply")
	}

	result := &Result{
		Allowed:   reply[0] == 1,
		Remaining: int(reply[1]),
		ResetAt:   now.Add(rule.Window),
	}
	if !result.Allowed {
		return result, ErrLimitExceeded
	}
	return result, nil
}
