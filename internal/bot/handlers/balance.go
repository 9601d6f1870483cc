package handlers

import (
	"errors"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/trx-referral-bot/internal/bot/keyboard"
	"github.com/Proton-105/trx-referral-bot/internal/i18n"
	"github.com/Proton-105/trx-referral-bot/internal/ledger"
)

// NewBalanceHandler shows balance, invite count, referral link and the withdrawal threshold.
func NewBalanceHandler(svc Ledger, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		userID, ok := senderID(c)
		if !ok {
			log.Warn("balance handler invoked without sender")
			return nil
		}

		t := Translator(c)
		view, err := svc.Balance(Context(c), userID)
		if err != nil {
			return replyLedgerError(c, err)
		}

		return c.Send(t.Tf("balance.view", i18n.Params{
			"balance": view.Balance.String(),
			"invites": view.Invites,
			"link":    view.Link,
			"min":     view.MinWithdraw.String(),
		}), keyboard.MainMenu(t, svc.IsAdmin(userID)), telebot.NoPreview)
	}
}

// replyLedgerError answers the informational outcomes every user-facing screen shares.
// Anything else is returned for the error middleware.
func replyLedgerError(c telebot.Context, err error) error {
	t := Translator(c)
	switch {
	case errors.Is(err, ledger.ErrNotRegistered):
		return c.Send(t.T("common.not_registered"))
	default:
		return err
	}
}
