// Package handlers processes the asynq tasks declared in package jobs.
package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/trx-referral-bot/internal/jobs"
	"github.com/Proton-105/trx-referral-bot/internal/notify"
)

// NotifyHandler delivers queued notifications through the direct sender.
type NotifyHandler struct {
	sender notify.Sender
	log    *slog.Logger
}

func NewNotifyHandler(sender notify.Sender, log *slog.Logger) *NotifyHandler {
	return &NotifyHandler{sender: sender, log: log}
}

func (h *NotifyHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	msg, err := jobs.DecodeNotifyTask(t)
	if err != nil {
		if h.log != nil {
			h.log.ErrorContext(ctx, "notify: failed to decode payload", slog.String("task_type", t.Type()), slog.String("error", err.Error()))
		}
		// a malformed payload never gets better
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	if err := h.sender.Deliver(ctx, msg); err != nil {
		if h.log != nil {
			h.log.WarnContext(ctx, "notify: delivery failed",
				slog.String("chat_id", msg.ChatID),
				slog.String("key", msg.Key),
				slog.String("error", err.Error()),
			)
		}
		return err
	}

	return nil
}
