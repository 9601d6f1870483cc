package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucket struct {
	limiter  *rate.Limiter
	rule     Rule
	lastSeen time.Time
}

// MemoryLimiter keeps a token bucket per key inside this process.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
	log     *slog.Logger
}

var _ Limiter = (*MemoryLimiter)(nil)

// NewMemoryLimiter returns an in-memory limiter used while Redis is unavailable.
func NewMemoryLimiter(log *slog.Logger) *MemoryLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &MemoryLimiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
		log:     log,
	}
}

// Allow takes one token from the key's bucket. A bucket holds rule.Limit tokens and refills
// one token every Window/Limit.
func (m *MemoryLimiter) Allow(_ context.Context, key string, rule Rule) (*Result, error) {
	now := m.now()
	if rule.Limit <= 0 || rule.Window <= 0 {
		return &Result{ResetAt: now.Add(rule.Window)}, ErrLimitExceeded
	}

	m.mu.Lock()
	b, ok := m.buckets[key]
	if !ok || b.rule != rule {
		b = &bucket{
			limiter: rate.NewLimiter(rate.Every(rule.Window/time.Duration(rule.Limit)), rule.Limit),
			rule:    rule,
		}
		m.buckets[key] = b
	}
	b.lastSeen = now
	allowed := b.limiter.AllowN(now, 1)
	remaining := int(b.limiter.TokensAt(now))
	m.mu.Unlock()

	if remaining < 0 {
		remaining = 0
	}
	result := &Result{Allowed: allowed, Remaining: remaining, ResetAt: now.Add(rule.Window)}
	if !allowed {
		return result, ErrLimitExceeded
	}
	return result, nil
}

// RunJanitor calls Cleanup every interval until ctx is cancelled.
func (m *MemoryLimiter) RunJanitor(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Cleanup(maxAge)
		}
	}
}

// Cleanup forgets buckets not touched for maxAge.
func (m *MemoryLimiter) Cleanup(maxAge time.Duration) {
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, b := range m.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(m.buckets, key)
			removed++
		}
	}
	if removed > 0 {
		m.log.Debug("memory rate limit buckets dropped", slog.Int("count", removed))
	}
}
