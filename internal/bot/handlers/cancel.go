package handlers

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/trx-referral-bot/internal/bot/keyboard"
)

// NewCancelHandler closes an open wallet prompt and returns the user to the main menu.
func NewCancelHandler(svc Ledger, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		userID, ok := senderID(c)
		if !ok {
			log.Warn("cancel handler invoked without sender context")
			return nil
		}

		t := Translator(c)
		cancelled, err := svc.CancelWithdrawal(Context(c), userID)
		if err != nil {
			log.Error("failed to cancel withdrawal", slog.Int64("user_id", userID), slog.Any("error", err))
			return err
		}

		key := "withdraw.nothing_to_cancel"
		if cancelled {
			key = "withdraw.cancelled"
		}
		return c.Send(t.T(key), keyboard.MainMenu(t, svc.IsAdmin(userID)))
	}
}
