package keyboard

import (
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/trx-referral-bot/internal/i18n"
)

// Menu button keys. The router maps every translation of these back to an action.
const (
	ButtonBalance     = "menu.balance"
	ButtonWithdraw    = "menu.withdraw"
	ButtonInvite      = "menu.invite"
	ButtonAdmin       = "menu.admin"
	ButtonStats       = "admin_menu.stats"
	ButtonWithdrawals = "admin_menu.withdrawals"
	ButtonGift        = "admin_menu.gift"
	ButtonBack        = "admin_menu.back"
)

// MainMenu builds the localized main reply keyboard. The admin entry is shown only to admins.
func MainMenu(t i18n.Translator, isAdmin bool) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{ResizeKeyboard: true}
	lookup := lookupFunc(t)

	rows := []telebot.Row{
		markup.Row(markup.Text(lookup(ButtonBalance)), markup.Text(lookup(ButtonWithdraw))),
		markup.Row(markup.Text(lookup(ButtonInvite))),
	}
	if isAdmin {
		rows = append(rows, markup.Row(markup.Text(lookup(ButtonAdmin))))
	}

	markup.Reply(rows...)
	return markup
}

// AdminMenu builds the admin panel reply keyboard.
func AdminMenu(t i18n.Translator) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{ResizeKeyboard: true}
	lookup := lookupFunc(t)

	markup.Reply(
		markup.Row(markup.Text(lookup(ButtonStats)), markup.Text(lookup(ButtonWithdrawals))),
		markup.Row(markup.Text(lookup(ButtonGift)), markup.Text(lookup(ButtonBack))),
	)
	return markup
}

// MenuButtons lists every reply-keyboard button key.
func MenuButtons() []string {
	return []string{
		ButtonBalance, ButtonWithdraw, ButtonInvite, ButtonAdmin,
		ButtonStats, ButtonWithdrawals, ButtonGift, ButtonBack,
	}
}

func lookupFunc(t i18n.Translator) func(string) string {
	return func(key string) string {
		if t == nil {
			return key
		}
		return t.T(key)
	}
}
