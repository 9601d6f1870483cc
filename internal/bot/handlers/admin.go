package handlers

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/trx-referral-bot/internal/bot/keyboard"
	"github.com/Proton-105/trx-referral-bot/internal/domain"
	"github.com/Proton-105/trx-referral-bot/internal/i18n"
	"github.com/Proton-105/trx-referral-bot/internal/ledger"
)

// adminOnly drops updates from senders outside the allow-list without answering them.
func adminOnly(svc Ledger, log *slog.Logger, next Handler) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		userID, ok := senderID(c)
		if !ok || !svc.IsAdmin(userID) {
			log.Warn("unauthorized admin action ignored",
				slog.Int64("user_id", userID),
				slog.String("action", Action(c)),
			)
			if c != nil && c.Callback() != nil {
				return c.Respond()
			}
			return nil
		}
		return next(c)
	}
}

// NewAdminPanelHandler opens the admin reply keyboard.
func NewAdminPanelHandler(svc Ledger, log *slog.Logger) Handler {
	return adminOnly(svc, log, func(c telebot.Context) error {
		t := Translator(c)
		return c.Send(t.T("admin.panel"), keyboard.AdminMenu(t))
	})
}

// NewBackHandler leaves the admin panel.
func NewBackHandler(svc Ledger, log *slog.Logger) Handler {
	return adminOnly(svc, log, func(c telebot.Context) error {
		t := Translator(c)
		return c.Send(t.T("menu.main"), keyboard.MainMenu(t, true))
	})
}

// NewStatsHandler replies with the ledger totals.
func NewStatsHandler(svc Ledger, log *slog.Logger) Handler {
	return adminOnly(svc, log, func(c telebot.Context) error {
		t := Translator(c)
		stats, err := svc.Stats(Context(c), c.Sender().ID)
		if err != nil {
			return silentIfForbidden(err)
		}

		return c.Send(t.Tf("admin.stats", i18n.Params{
			"users":           stats.Users,
			"balance":         stats.TotalBalance.String(),
			"invites":         stats.TotalInvites,
			"pending":         stats.PendingCount,
			"pending_amount":  stats.PendingAmount.String(),
			"approved_amount": stats.ApprovedAmount.String(),
		}), keyboard.AdminMenu(t))
	})
}

// NewWithdrawalsHandler sends the first page of pending withdrawals.
func NewWithdrawalsHandler(svc Ledger, log *slog.Logger) Handler {
	return adminOnly(svc, log, func(c telebot.Context) error {
		text, opts, err := pendingScreen(c, svc, 0)
		if err != nil {
			return silentIfForbidden(err)
		}
		return c.Send(text, opts...)
	})
}

// NewPageCallback switches the pending list to the requested page in place.
func NewPageCallback(svc Ledger, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return adminOnly(svc, log, func(c telebot.Context) error {
		if c.Callback() == nil {
			return nil
		}

		_, page, err := keyboard.DecodeCallbackInt(c.Callback().Data)
		if err != nil {
			log.Warn("malformed page callback", slog.String("data", c.Callback().Data), slog.Any("error", err))
			return c.Respond()
		}

		if err := editPending(c, svc, int(page)); err != nil {
			return err
		}
		return c.Respond()
	})
}

// NewResolveCallback approves or rejects the request named by an inline button.
func NewResolveCallback(svc Ledger, approve bool, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return adminOnly(svc, log, func(c telebot.Context) error {
		if c.Callback() == nil {
			return nil
		}

		_, id, err := keyboard.DecodeCallbackInt(c.Callback().Data)
		if err != nil {
			log.Warn("malformed resolve callback", slog.String("data", c.Callback().Data), slog.Any("error", err))
			return c.Respond()
		}

		msg, err := resolve(c, svc, id, approve)
		if err != nil {
			return silentIfForbidden(err)
		}

		if err := c.Respond(&telebot.CallbackResponse{Text: msg}); err != nil {
			log.Warn("failed to answer callback", slog.Any("error", err))
		}
		return editPending(c, svc, 0)
	})
}

// NewResolveCommand handles "/approve <id>" and "/reject <id>".
func NewResolveCommand(svc Ledger, approve bool, log *slog.Logger) Handler {
	return adminOnly(svc, log, func(c telebot.Context) error {
		t := Translator(c)

		args := commandArgs(c.Text())
		if len(args) != 1 {
			return c.Send(t.T("admin.resolve_usage"))
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Send(t.T("admin.resolve_usage"))
		}

		msg, err := resolve(c, svc, id, approve)
		if err != nil {
			return silentIfForbidden(err)
		}
		return c.Send(msg)
	})
}

// NewGiftHandler handles "/gift <user_id> <amount>".
func NewGiftHandler(svc Ledger, log *slog.Logger) Handler {
	return adminOnly(svc, log, func(c telebot.Context) error {
		t := Translator(c)

		args := commandArgs(c.Text())
		if len(args) != 2 {
			return c.Send(t.T("admin.gift_usage"))
		}
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Send(t.T("admin.gift_usage"))
		}
		amount, err := ledger.ParseAmount(args[1])
		if err != nil {
			return c.Send(t.T("admin.gift_invalid"))
		}

		params := i18n.Params{"user_id": userID, "amount": amount.String()}
		err = svc.Gift(Context(c), c.Sender().ID, userID, amount)
		switch {
		case err == nil:
			return c.Send(t.Tf("admin.gift_done", params))
		case errors.Is(err, ledger.ErrUnknownUser):
			return c.Send(t.Tf("admin.gift_unknown", params))
		case errors.Is(err, ledger.ErrInvalidAmount):
			return c.Send(t.T("admin.gift_invalid"))
		default:
			return silentIfForbidden(err)
		}
	})
}

// NewGiftButtonHandler explains the gift command.
func NewGiftButtonHandler(svc Ledger, log *slog.Logger) Handler {
	return adminOnly(svc, log, func(c telebot.Context) error {
		return c.Send(Translator(c).T("admin.gift_usage"), keyboard.AdminMenu(Translator(c)))
	})
}

func resolve(c telebot.Context, svc Ledger, id int64, approve bool) (string, error) {
	t := Translator(c)
	params := i18n.Params{"id": id}

	var (
		w   *domain.Withdrawal
		err error
	)
	key := "admin.rejected"
	if approve {
		key = "admin.approved"
		w, err = svc.Approve(Context(c), c.Sender().ID, id)
	} else {
		w, err = svc.Reject(Context(c), c.Sender().ID, id)
	}

	switch {
	case err == nil:
	case errors.Is(err, ledger.ErrWithdrawalResolved):
		key = alreadyResolvedKey(w)
	case errors.Is(err, ledger.ErrWithdrawalNotFound):
		key = "admin.not_found"
	case errors.Is(err, ledger.ErrInsufficientBalance):
		key = "admin.insufficient"
	default:
		return "", err
	}

	return t.Tf(key, params), nil
}

func alreadyResolvedKey(w *domain.Withdrawal) string {
	if w == nil {
		return "admin.already_resolved"
	}
	switch w.Status {
	case domain.WithdrawalApproved:
		return "admin.already_approved"
	case domain.WithdrawalRejected:
		return "admin.already_rejected"
	default:
		return "admin.already_resolved"
	}
}

func pendingScreen(c telebot.Context, svc Ledger, page int) (string, []interface{}, error) {
	t := Translator(c)

	result, err := svc.PendingWithdrawals(Context(c), c.Sender().ID, page)
	if err != nil {
		return "", nil, err
	}
	if result.Total == 0 {
		return t.T("admin.no_pending"), nil, nil
	}

	var b strings.Builder
	b.WriteString(t.Tf("admin.pending_header", i18n.Params{
		"page":  result.Page + 1,
		"pages": result.TotalPages,
		"total": result.Total,
	}))
	for _, w := range result.Items {
		b.WriteString("\n\n")
		b.WriteString(t.Tf("admin.pending_item", i18n.Params{
			"id":      w.ID,
			"user_id": w.UserID,
			"amount":  w.Amount.String(),
			"wallet":  w.Wallet,
		}))
	}

	markup, err := keyboard.PendingWithdrawals(t, result.Items, result.Page, result.TotalPages)
	if err != nil {
		return "", nil, err
	}
	return b.String(), []interface{}{markup}, nil
}

func editPending(c telebot.Context, svc Ledger, page int) error {
	text, opts, err := pendingScreen(c, svc, page)
	if err != nil {
		return silentIfForbidden(err)
	}

	err = c.Edit(text, opts...)
	if errors.Is(err, telebot.ErrSameMessageContent) {
		return nil
	}
	return err
}

func silentIfForbidden(err error) error {
	if errors.Is(err, ledger.ErrForbidden) {
		return nil
	}
	return err
}
