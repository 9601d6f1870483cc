package ratelimit

import (
	"context"
	"errors"
	"log/slog"

	apperrors "github.com/Proton-105/trx-referral-bot/internal/errors"
	"github.com/Proton-105/trx-referral-bot/pkg/metrics"
)

// AdaptiveLimiter delegates to the shared Redis limiter and falls back to a stricter
// per-process limiter while Redis is unreachable. A circuit breaker keeps the fallback
// in place for a cooldown instead of paying a Redis timeout on every update.
type AdaptiveLimiter struct {
	primary  Limiter
	fallback Limiter
	breaker  *apperrors.CircuitBreaker
	log      *slog.Logger
}

var _ Limiter = (*AdaptiveLimiter)(nil)

// NewAdaptiveLimiter creates a limiter that adapts between Redis and in-memory backends.
func NewAdaptiveLimiter(primary, fallback Limiter, log *slog.Logger) *AdaptiveLimiter {
	if log == nil {
		log = slog.Default()
	}

	breaker := apperrors.NewCircuitBreaker(apperrors.BreakerSettings{
		ErrorThreshold:      0.5,
		MinRequests:         5,
		Cooldown:            apperrors.DefaultBreakerSettings.Cooldown,
		HalfOpenMaxRequests: 1,
	})
	breaker.OnStateChange(func(from, to apperrors.State) {
		log.Warn("rate limit backend changed", slog.String("from", from.String()), slog.String("to", to.String()))
		metrics.SetCircuitState("ratelimit_redis", to)
	})

	return &AdaptiveLimiter{primary: primary, fallback: fallback, breaker: breaker, log: log}
}

// Allow evaluates the rule on Redis, or on the fallback with half the limit.
func (a *AdaptiveLimiter) Allow(ctx context.Context, key string, rule Rule) (*Result, error) {
	var result *Result
	err := a.breaker.Call(func() error {
		res, err := a.primary.Allow(ctx, key, rule)
		result = res
		if errors.Is(err, ErrLimitExceeded) {
			return nil
		}
		return err
	})
	if err == nil {
		return a.record("redis", result)
	}

	if !errors.Is(err, apperrors.ErrCircuitOpen) {
		a.log.Warn("redis limiter failed, falling back to in-memory", slog.String("key", key), slog.Any("error", err))
	}

	strict := Rule{Limit: rule.Limit / 2, Window: rule.Window}
	if strict.Limit <= 0 {
		strict.Limit = 1
	}

	result, err = a.fallback.Allow(ctx, key, strict)
	if err != nil && !errors.Is(err, ErrLimitExceeded) {
		return result, err
	}
	return a.record("memory", result)
}

func (a *AdaptiveLimiter) record(backend string, result *Result) (*Result, error) {
	allowed := result == nil || result.Allowed
	metrics.RecordRateLimitCheck(backend, allowed)
	if !allowed {
		return result, ErrLimitExceeded
	}
	return result, nil
}
