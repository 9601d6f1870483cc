package bot

import (
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/trx-referral-bot/internal/i18n"
)

// Command constants for Telegram bot commands.
const (
	CommandStart       = "/start"
	CommandBalance     = "/balance"
	CommandInvite      = "/invite"
	CommandWithdraw    = "/withdraw"
	CommandCancel      = "/cancel"
	CommandHelp        = "/help"
	CommandAdmin       = "/admin"
	CommandStats       = "/stats"
	CommandWithdrawals = "/withdrawals"
	CommandGift        = "/gift"
	CommandApprove     = "/approve"
	CommandReject      = "/reject"
)

// Action names label routed updates in logs, metrics and rate-limit rules.
const (
	ActionStart       = "start"
	ActionBalance     = "balance"
	ActionInvite      = "invite"
	ActionWithdraw    = "withdraw"
	ActionCancel      = "cancel"
	ActionHelp        = "help"
	ActionAdmin       = "admin"
	ActionStats       = "stats"
	ActionWithdrawals = "withdrawals"
	ActionGift        = "gift"
	ActionApprove     = "approve"
	ActionReject      = "reject"
	ActionBack        = "back"
	ActionPage        = "page"
	ActionText        = "text"
)

// publicCommands are advertised in Telegram's command menu.
var publicCommands = []string{
	CommandStart, CommandBalance, CommandInvite, CommandWithdraw, CommandCancel, CommandHelp,
}

// menuCommands returns the command menu described in the translator's language.
func menuCommands(t i18n.Translator) []telebot.Command {
	cmds := make([]telebot.Command, 0, len(publicCommands))
	for _, cmd := range publicCommands {
		name := cmd[1:]
		cmds = append(cmds, telebot.Command{Text: name, Description: t.T("commands." + name)})
	}
	return cmds
}
