package handlers

import (
	"context"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/trx-referral-bot/internal/i18n"
)

// Keys stored on telebot.Context by the router and its middlewares.
const (
	ActionKey     = "action"
	translatorKey = "translator"
	contextKey    = "context"
)

var untranslated = (*i18n.Manager)(nil).Default()

// SetTranslator stores the translator picked for the sender.
func SetTranslator(c telebot.Context, t i18n.Translator) {
	c.Set(translatorKey, t)
}

// Translator returns the translator stored on c; keys are returned verbatim when none is set.
func Translator(c telebot.Context) i18n.Translator {
	if t, ok := c.Get(translatorKey).(i18n.Translator); ok && t != nil {
		return t
	}
	return untranslated
}

// SetContext attaches a request context to the update.
func SetContext(c telebot.Context, ctx context.Context) {
	c.Set(contextKey, ctx)
}

// Context returns the request context attached to the update.
func Context(c telebot.Context) context.Context {
	if ctx, ok := c.Get(contextKey).(context.Context); ok && ctx != nil {
		return ctx
	}
	return context.Background()
}

// Action returns the action name the router resolved for the update.
func Action(c telebot.Context) string {
	if action, ok := c.Get(ActionKey).(string); ok && action != "" {
		return action
	}
	return "unknown"
}

func senderID(c telebot.Context) (int64, bool) {
	if c == nil || c.Sender() == nil {
		return 0, false
	}
	return c.Sender().ID, true
}

// commandArgs returns the whitespace separated arguments following a slash command.
func commandArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return nil
	}
	return fields[1:]
}
