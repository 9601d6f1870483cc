package handlers

import (
	"errors"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/trx-referral-bot/internal/bot/keyboard"
	"github.com/Proton-105/trx-referral-bot/internal/i18n"
	"github.com/Proton-105/trx-referral-bot/internal/ledger"
)

// NewWithdrawHandler opens the wallet prompt when the balance reaches the minimum.
func NewWithdrawHandler(svc Ledger, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		userID, ok := senderID(c)
		if !ok {
			log.Warn("withdraw handler invoked without sender")
			return nil
		}

		t := Translator(c)
		view, err := svc.RequestWithdrawal(Context(c), userID)
		switch {
		case errors.Is(err, ledger.ErrBelowMinimum):
			return c.Send(t.Tf("withdraw.below_min", i18n.Params{
				"balance": view.Balance.String(),
				"min":     view.MinWithdraw.String(),
			}))
		case err != nil:
			return replyLedgerError(c, err)
		}

		return c.Send(t.Tf("withdraw.prompt", i18n.Params{"balance": view.Balance.String()}))
	}
}

// NewWalletHandler handles the free-text "<wallet> <amount>" reply while the prompt is open.
// Parse and balance errors keep the prompt open.
func NewWalletHandler(svc Ledger, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		userID, ok := senderID(c)
		if !ok {
			log.Warn("wallet handler invoked without sender")
			return nil
		}

		t := Translator(c)
		ctx := Context(c)

		w, err := svc.SubmitWithdrawal(ctx, userID, c.Text())
		switch {
		case err == nil:
		case errors.Is(err, ledger.ErrInvalidWithdrawal):
			return c.Send(t.T("withdraw.invalid_format"))
		case errors.Is(err, ledger.ErrInvalidAmount):
			return c.Send(t.T("withdraw.invalid_amount"))
		case errors.Is(err, ledger.ErrInsufficientBalance):
			view, balanceErr := svc.Balance(ctx, userID)
			if balanceErr != nil {
				return replyLedgerError(c, balanceErr)
			}
			return c.Send(t.Tf("withdraw.insufficient", i18n.Params{"balance": view.Balance.String()}))
		case errors.Is(err, ledger.ErrNotAwaitingWallet):
			return c.Send(t.T("common.unknown"), keyboard.MainMenu(t, svc.IsAdmin(userID)))
		default:
			return replyLedgerError(c, err)
		}

		return c.Send(t.Tf("withdraw.submitted", i18n.Params{
			"id":     w.ID,
			"amount": w.Amount.String(),
		}), keyboard.MainMenu(t, svc.IsAdmin(userID)))
	}
}
