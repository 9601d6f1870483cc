// Package notify delivers best-effort side messages: inviter credits,
// new withdrawal requests for administrators and review outcomes.
package notify

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/Proton-105/trx-referral-bot/pkg/metrics"
)

// Message is a localized side message addressed to a chat.
type Message struct {
	// ChatID is a numeric chat id or a public channel username such as "@payouts".
	ChatID string            `json:"chat_id"`
	Key    string            `json:"key"`
	Params map[string]string `json:"params,omitempty"`
}

// UserChat formats a Telegram user id as a ChatID.
func UserChat(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// Sender delivers a single message or reports why it could not.
type Sender interface {
	Deliver(ctx context.Context, msg Message) error
}

// Notifier fans messages out to a Sender and swallows failures.
type Notifier struct {
	sender Sender
	log    *slog.Logger
}

// New builds a Notifier. A nil sender turns every notification into a no-op.
func New(sender Sender, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}

	return &Notifier{sender: sender, log: log}
}

// Notify sends every message, logging failures without returning them.
func (n *Notifier) Notify(ctx context.Context, msgs ...Message) {
	if n == nil || n.sender == nil {
		return
	}

	for _, msg := range msgs {
		if msg.ChatID == "" {
			continue
		}

		if err := n.sender.Deliver(ctx, msg); err != nil {
			metrics.RecordNotification("failed")
			n.log.WarnContext(ctx, "best-effort notification failed",
				slog.String("chat_id", msg.ChatID),
				slog.String("key", msg.Key),
				slog.Any("error", err),
			)
			continue
		}

		metrics.RecordNotification("delivered")
	}
}
