package handlers

import (
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/trx-referral-bot/internal/bot/keyboard"
)

// NewHelpHandler lists the available commands.
func NewHelpHandler(svc Ledger) Handler {
	return func(c telebot.Context) error {
		userID, _ := senderID(c)
		t := Translator(c)
		isAdmin := svc.IsAdmin(userID)

		text := t.T("help.text")
		if isAdmin {
			text += "\n\n" + t.T("help.admin")
		}
		return c.Send(text, keyboard.MainMenu(t, isAdmin))
	}
}

// NewUnknownHandler answers text that matches no command, button or open prompt.
func NewUnknownHandler(svc Ledger) Handler {
	return func(c telebot.Context) error {
		userID, _ := senderID(c)
		t := Translator(c)
		return c.Send(t.T("common.unknown"), keyboard.MainMenu(t, svc.IsAdmin(userID)))
	}
}
