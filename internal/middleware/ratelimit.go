package middleware

import (
	"errors"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/trx-referral-bot/internal/bot/handlers"
	"github.com/Proton-105/trx-referral-bot/internal/ratelimit"
	"github.com/Proton-105/trx-referral-bot/pkg/metrics"
)

// RateLimitMiddleware enforces per-user and per-command limits on incoming updates.
type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
	rules   *ratelimit.Rules
	log     *slog.Logger
}

// NewRateLimitMiddleware constructs a rate-limit middleware component.
func NewRateLimitMiddleware(limiter ratelimit.Limiter, rules *ratelimit.Rules, log *slog.Logger) *RateLimitMiddleware {
	if log == nil {
		log = slog.Default()
	}

	return &RateLimitMiddleware{
		limiter: limiter,
		rules:   rules,
		log:     log,
	}
}

// Handle rejects updates over the limit with a localized notice. Limiter failures let the update through.
func (m *RateLimitMiddleware) Handle(next handlers.Handler) handlers.Handler {
	return func(c telebot.Context) error {
		if m.limiter == nil || !m.rules.Enabled() {
			return next(c)
		}

		sender := c.Sender()
		if sender == nil || m.rules.Exempt(sender.ID) {
			return next(c)
		}
		userID := sender.ID

		if !m.allow(c, ratelimit.UserKey(userID), m.rules.PerUser()) {
			return m.reject(c, userID, "user")
		}

		action := handlers.Action(c)
		if rule, ok := m.rules.ForCommand(action); ok && !m.allow(c, ratelimit.CommandKey(action, userID), rule) {
			return m.reject(c, userID, action)
		}

		return next(c)
	}
}

func (m *RateLimitMiddleware) allow(c telebot.Context, key string, rule ratelimit.Rule) bool {
	result, err := m.limiter.Allow(handlers.Context(c), key, rule)
	switch {
	case errors.Is(err, ratelimit.ErrLimitExceeded):
		return false
	case err != nil:
		m.log.Warn("rate limiter error", slog.String("key", key), slog.Any("error", err))
		return true
	}
	return result == nil || result.Allowed
}

func (m *RateLimitMiddleware) reject(c telebot.Context, userID int64, scope string) error {
	m.log.Warn("rate limit exceeded", slog.Int64("user_id", userID), slog.String("scope", scope))
	metrics.RecordError("rate_limit", "low")

	if c.Callback() != nil {
		return c.Respond(&telebot.CallbackResponse{Text: handlers.Translator(c).T("error.rate_limit")})
	}
	return c.Send(handlers.Translator(c).T("error.rate_limit"))
}
