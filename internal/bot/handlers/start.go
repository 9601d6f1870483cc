package handlers

import (
	"errors"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/trx-referral-bot/internal/bot/keyboard"
	"github.com/Proton-105/trx-referral-bot/internal/i18n"
	"github.com/Proton-105/trx-referral-bot/internal/ledger"
)

// NewStartHandler registers the sender, crediting the inviter named in the deep-link payload.
func NewStartHandler(svc Ledger, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		userID, ok := senderID(c)
		if !ok {
			log.Warn("start handler invoked without sender")
			return nil
		}

		t := Translator(c)
		menu := keyboard.MainMenu(t, svc.IsAdmin(userID))

		var payload string
		if args := commandArgs(c.Text()); len(args) > 0 {
			payload = args[0]
		}

		reg, err := svc.Register(Context(c), userID, payload)
		switch {
		case errors.Is(err, ledger.ErrAlreadyRegistered):
			return c.Send(t.T("start.already"), menu)
		case err != nil:
			return err
		}

		return c.Send(t.Tf("start.welcome", i18n.Params{
			"reward":        reg.Reward.String(),
			"invite_reward": svc.Policy().InviteReward().String(),
		}), menu)
	}
}
