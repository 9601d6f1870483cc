package middleware

import (
	"errors"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/trx-referral-bot/internal/bot/handlers"
	apperrors "github.com/Proton-105/trx-referral-bot/internal/errors"
	"github.com/Proton-105/trx-referral-bot/pkg/metrics"
)

// Metrics times every routed update. Updates are labelled by action so free text never
// becomes a label value.
func Metrics(next handlers.Handler) handlers.Handler {
	if next == nil {
		return nil
	}

	return func(c telebot.Context) error {
		start := time.Now()
		err := next(c)
		metrics.RecordCommand(handlers.Action(c), outcome(err), time.Since(start))
		return err
	}
}

// outcome separates failures the user caused or can retry from faults of the bot.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Severity == apperrors.SeverityLow {
		return "rejected"
	}
	return "error"
}
