package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/trx-referral-bot/internal/bot/handlers"
	errors "github.com/Proton-105/trx-referral-bot/internal/errors"
	"github.com/Proton-105/trx-referral-bot/internal/i18n"
	"github.com/Proton-105/trx-referral-bot/pkg/logger"
)

// RecoveryMiddleware turns handler panics into a reported error and a generic reply.
func RecoveryMiddleware(log *slog.Logger, errHandler *errors.Handler) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				log.Error("panic recovered in handler", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
				if sendErr := replyWithError(c, errHandler, errors.NewPanicError(r)); sendErr != nil {
					log.Error("failed to notify user about panic", slog.Any("error", sendErr))
				}
				err = nil
			}()

			return next(c)
		}
	}
}

// ErrorHandlingMiddleware reports handler errors and answers the user with the matching message.
func ErrorHandlingMiddleware(errHandler *errors.Handler) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			if err := next(c); err != nil {
				_ = replyWithError(c, errHandler, err)
			}
			return nil
		}
	}
}

// replyWithError localizes the message chosen by errHandler; callbacks get a toast, messages a reply.
func replyWithError(c telebot.Context, errHandler *errors.Handler, err error) error {
	key := errors.GenericMessage
	if errHandler != nil {
		if k, _ := errHandler.Handle(handlers.Context(c), err); k != "" {
			key = k
		}
	}

	text := handlers.Translator(c).T(key)
	if c.Callback() != nil {
		return c.Respond(&telebot.CallbackResponse{Text: text})
	}
	return c.Send(text)
}

// LoggingMiddleware attaches a correlation id to the update and logs basic telemetry about it.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			start := time.Now()
			userID := int64(0)
			if c.Sender() != nil {
				userID = c.Sender().ID
			}

			ctx := logger.WithCorrelationID(context.Background(), fmt.Sprintf("upd-%d", c.Update().ID))
			handlers.SetContext(c, ctx)

			action := handlers.Action(c)
			log.DebugContext(ctx, "handling update", slog.Int64("user_id", userID), slog.String("action", action))
			err := next(c)
			log.InfoContext(ctx, "handled update",
				slog.Int64("user_id", userID),
				slog.String("action", action),
				slog.Duration("duration", time.Since(start)),
				slog.Any("error", err),
			)

			return err
		}
	}
}

// I18nMiddleware picks the translator matching the sender's Telegram language.
func I18nMiddleware(manager *i18n.Manager) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			lang := ""
			if c.Sender() != nil {
				lang = c.Sender().LanguageCode
			}
			handlers.SetTranslator(c, manager.Translator(lang))
			return next(c)
		}
	}
}
