package notify

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
	telebot "gopkg.in/telebot.v3"

	apperrors "github.com/Proton-105/trx-referral-bot/internal/errors"
	"github.com/Proton-105/trx-referral-bot/internal/i18n"
)

// Telegram allows about 30 messages per second per bot.
const (
	defaultRate  = 25
	defaultBurst = 5
)

// API is the subset of *telebot.Bot used for delivery.
type API interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

type chat string

func (c chat) Recipient() string { return string(c) }

// TelegramSender renders messages with the default catalog and sends them through the Bot API.
type TelegramSender struct {
	api     API
	tr      i18n.Translator
	limiter *rate.Limiter
	breaker *apperrors.CircuitBreaker
}

var _ Sender = (*TelegramSender)(nil)

// NewTelegramSender throttles outbound sends and stops calling Telegram while it keeps failing.
func NewTelegramSender(api API, tr i18n.Translator) *TelegramSender {
	return &TelegramSender{
		api:     api,
		tr:      tr,
		limiter: rate.NewLimiter(rate.Limit(defaultRate), defaultBurst),
		breaker: apperrors.NewCircuitBreaker(),
	}
}

func (s *TelegramSender) Deliver(ctx context.Context, msg Message) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("notify rate limit: %w", err)
	}

	text := s.Render(msg)
	return s.breaker.Call(func() error {
		if _, err := s.api.Send(chat(msg.ChatID), text); err != nil {
			return apperrors.NewExternalAPIError("telegram", err)
		}
		return nil
	})
}

// OnBreakerChange observes the circuit breaker guarding the Bot API.
func (s *TelegramSender) OnBreakerChange(fn func(from, to apperrors.State)) {
	s.breaker.OnStateChange(fn)
}

// Render resolves the message text.
func (s *TelegramSender) Render(msg Message) string {
	params := make(i18n.Params, len(msg.Params))
	for k, v := range msg.Params {
		params[k] = v
	}

	return s.tr.Tf(msg.Key, params)
}
