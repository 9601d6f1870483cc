package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/trx-referral-bot/internal/bot/handlers"
	"github.com/Proton-105/trx-referral-bot/internal/idempotency"
)

// UpdateTTL is how long a processed update id is remembered. Telegram stops redelivering long before.
const UpdateTTL = 24 * time.Hour

// Idempotency ensures handlers execute at most once per Telegram update. A redelivered
// update that already succeeded, or one still being processed, is dropped silently.
func Idempotency(manager idempotency.Manager, botID int64, log *slog.Logger) handlers.Middleware {
	if manager == nil {
		return func(next handlers.Handler) handlers.Handler {
			return next
		}
	}
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			key := extractIdempotencyKey(c)
			if key == "" {
				return next(c)
			}
			key = idempotency.UpdateKey(botID, key)

			var (
				ran        bool
				handlerErr error
			)
			result, err := manager.Execute(handlers.Context(c), key, UpdateTTL, func(context.Context) (interface{}, error) {
				ran = true
				handlerErr = next(c)
				return "done", handlerErr
			})
			switch {
			case errors.Is(err, idempotency.ErrRequestInProgress):
				log.Info("duplicate update dropped", slog.String("key", key))
				return nil
			case ran:
				return handlerErr
			case err != nil:
				// the store failed before the handler ran; process rather than lose the update
				log.Warn("idempotency store unavailable", slog.String("key", key), slog.Any("error", err))
				return next(c)
			}

			if result != nil && result.FromCache {
				log.Info("redelivered update skipped", slog.String("key", key))
			}
			return nil
		}
	}
}

func extractIdempotencyKey(c telebot.Context) string {
	if c == nil {
		return ""
	}

	if id := c.Update().ID; id != 0 {
		return fmt.Sprintf("upd:%d", id)
	}

	if cb := c.Callback(); cb != nil && cb.ID != "" {
		return fmt.Sprintf("cb:%s", cb.ID)
	}

	if msg := c.Message(); msg != nil && msg.ID != 0 {
		chatID := int64(0)
		if msg.Chat != nil {
			chatID = msg.Chat.ID
		}
		return fmt.Sprintf("msg:%d:%d", chatID, msg.ID)
	}

	return ""
}
