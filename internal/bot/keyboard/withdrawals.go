package keyboard

import (
	"strconv"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/trx-referral-bot/internal/domain"
	"github.com/Proton-105/trx-referral-bot/internal/i18n"
)

// Callback prefixes of the pending-withdrawal list.
const (
	CallbackApprove = "wd_approve"
	CallbackReject  = "wd_reject"
	CallbackPage    = "wd_page"
)

// PendingWithdrawals renders one approve/reject row per request plus a pagination row.
func PendingWithdrawals(t i18n.Translator, items []domain.Withdrawal, page, totalPages int) (*telebot.ReplyMarkup, error) {
	builder := NewInlineKeyboard()

	for _, w := range items {
		id := strconv.FormatInt(w.ID, 10)
		params := i18n.Params{"id": id}
		builder.AddRow(
			InlineButton{Text: tf(t, "admin.approve_button", params), Unique: CallbackApprove, Data: id},
			InlineButton{Text: tf(t, "admin.reject_button", params), Unique: CallbackReject, Data: id},
		)
	}

	if totalPages > 1 {
		builder.AddRow(PaginationButtons(t, CallbackPage, page, totalPages)...)
	}

	return builder.Build()
}

func tf(t i18n.Translator, key string, params i18n.Params) string {
	if t == nil {
		return key
	}
	return t.Tf(key, params)
}
