package ratelimit

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cleaner sweeps rate-limit sets of users who went quiet. The sets also expire on their own;
// the sweep trims long-lived keys of active users and frees memory sooner.
type Cleaner struct {
	client   *redis.Client
	log      *slog.Logger
	interval time.Duration
	maxAge   time.Duration
}

// NewCleaner constructs a Cleaner; entries older than maxAge are removed every interval.
func NewCleaner(client *redis.Client, log *slog.Logger, interval, maxAge time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}
	if maxAge <= 0 {
		maxAge = 5 * time.Minute
	}

	return &Cleaner{client: client, log: log, interval: interval, maxAge: maxAge}
}

// Run sweeps every interval until ctx is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	if c.client == nil || c.interval <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed, err := c.Cleanup(ctx); err != nil {
				c.log.Warn("rate limit sweep failed", slog.Any("error", err))
			} else if removed > 0 {
				c.log.Info("rate limit keys cleaned", slog.Int("keys_removed", removed))
			}
		}
	}
}

// Cleanup runs a single sweep and reports how many keys became empty and were deleted.
func (c *Cleaner) Cleanup(ctx context.Context) (int, error) {
	cutoff := "(" + strconv.FormatInt(time.Now().Add(-c.maxAge).UnixMilli(), 10)
	removed := 0

	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		var card *redis.IntCmd
		_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZRemRangeByScore(ctx, key, "-inf", cutoff)
			card = pipe.ZCard(ctx, key)
			return nil
		})
		if err != nil {
			c.log.Warn("rate limit trim failed", slog.String("key", key), slog.Any("error", err))
			continue
		}

		if card.Val() == 0 {
			if err := c.client.Del(ctx, key).Err(); err != nil {
				c.log.Warn("rate limit key delete failed", slog.String("key", key), slog.Any("error", err))
				continue
			}
			removed++
		}
	}

	return removed, iter.Err()
}
