package bot

import (
	"fmt"
	"log/slog"
	"net/http"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/trx-referral-bot/internal/bot/handlers"
	"github.com/Proton-105/trx-referral-bot/internal/bot/keyboard"
	errors "github.com/Proton-105/trx-referral-bot/internal/errors"
	"github.com/Proton-105/trx-referral-bot/internal/i18n"
	"github.com/Proton-105/trx-referral-bot/internal/idempotency"
	"github.com/Proton-105/trx-referral-bot/internal/middleware"
	"github.com/Proton-105/trx-referral-bot/internal/state"
	"github.com/Proton-105/trx-referral-bot/pkg/config"
)

// NewAPI creates the telebot client with the poller selected by cfg.Bot.Mode. In webhook mode
// the poller does not listen itself; Bot.WebhookHandler is mounted on the application router.
func NewAPI(cfg config.Config, log *slog.Logger) (*telebot.Bot, error) {
	if log == nil {
		log = slog.Default()
	}

	settings := telebot.Settings{
		Token: cfg.Bot.Token,
		OnError: func(err error, c telebot.Context) {
			attrs := []any{slog.Any("error", err)}
			if c != nil && c.Sender() != nil {
				attrs = append(attrs, slog.Int64("user_id", c.Sender().ID))
			}
			log.Error("telegram update failed", attrs...)
		},
	}

	settings.Poller = newPoller(cfg)

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}
	return tb, nil
}

// Options wires the Bot dependencies.
type Options struct {
	Ledger      handlers.Ledger
	FSM         state.StateMachine
	I18n        *i18n.Manager
	Idempotency idempotency.Manager
	RateLimit   *middleware.RateLimitMiddleware
	ErrHandler  *errors.Handler
	Log         *slog.Logger
}

// Bot wraps telebot.Bot with the routing of the referral ledger.
type Bot struct {
	telebot    *telebot.Bot
	log        *slog.Logger
	i18n       *i18n.Manager
	router     *Router
	dispatcher *Dispatcher
}

// New registers all routes and middlewares on api.
func New(api *telebot.Bot, opts Options) *Bot {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	dispatcher := NewDispatcher(opts.FSM, log)
	b := &Bot{
		telebot:    api,
		log:        log,
		i18n:       opts.I18n,
		router:     NewRouter(dispatcher, log),
		dispatcher: dispatcher,
	}

	var botID int64
	if api != nil && api.Me != nil {
		botID = api.Me.ID
	}

	b.router.Use(RecoveryMiddleware(log, opts.ErrHandler))
	b.router.Use(LoggingMiddleware(log))
	b.router.Use(I18nMiddleware(opts.I18n))
	b.router.Use(middleware.Idempotency(opts.Idempotency, botID, log))
	if opts.RateLimit != nil {
		b.router.Use(opts.RateLimit.Handle)
	}
	b.router.Use(ErrorHandlingMiddleware(opts.ErrHandler))
	b.router.Use(middleware.Metrics)

	b.registerRoutes(opts.Ledger)

	if api != nil {
		api.Handle(telebot.OnText, b.router.Route)
		api.Handle(telebot.OnCallback, b.router.Route)
	}

	return b
}

func (b *Bot) registerRoutes(svc handlers.Ledger) {
	log := b.log
	r := b.router

	start := handlers.NewStartHandler(svc, log)
	balance := handlers.NewBalanceHandler(svc, log)
	invite := handlers.NewInviteHandler(svc, log)
	withdraw := handlers.NewWithdrawHandler(svc, log)
	cancel := handlers.NewCancelHandler(svc, log)
	panel := handlers.NewAdminPanelHandler(svc, log)
	stats := handlers.NewStatsHandler(svc, log)
	withdrawals := handlers.NewWithdrawalsHandler(svc, log)

	r.RegisterCommand(CommandStart, ActionStart, start)
	r.RegisterCommand(CommandBalance, ActionBalance, balance)
	r.RegisterCommand(CommandInvite, ActionInvite, invite)
	r.RegisterCommand(CommandWithdraw, ActionWithdraw, withdraw)
	r.RegisterCommand(CommandCancel, ActionCancel, cancel)
	r.RegisterCommand(CommandHelp, ActionHelp, handlers.NewHelpHandler(svc))
	r.RegisterCommand(CommandAdmin, ActionAdmin, panel)
	r.RegisterCommand(CommandStats, ActionStats, stats)
	r.RegisterCommand(CommandWithdrawals, ActionWithdrawals, withdrawals)
	r.RegisterCommand(CommandGift, ActionGift, handlers.NewGiftHandler(svc, log))
	r.RegisterCommand(CommandApprove, ActionApprove, handlers.NewResolveCommand(svc, true, log))
	r.RegisterCommand(CommandReject, ActionReject, handlers.NewResolveCommand(svc, false, log))

	buttons := map[string]route{
		keyboard.ButtonBalance:     {action: ActionBalance, handler: balance},
		keyboard.ButtonWithdraw:    {action: ActionWithdraw, handler: withdraw},
		keyboard.ButtonInvite:      {action: ActionInvite, handler: invite},
		keyboard.ButtonAdmin:       {action: ActionAdmin, handler: panel},
		keyboard.ButtonStats:       {action: ActionStats, handler: stats},
		keyboard.ButtonWithdrawals: {action: ActionWithdrawals, handler: withdrawals},
		keyboard.ButtonGift:        {action: ActionGift, handler: handlers.NewGiftButtonHandler(svc, log)},
		keyboard.ButtonBack:        {action: ActionBack, handler: handlers.NewBackHandler(svc, log)},
	}
	for _, lang := range b.i18n.Languages() {
		t := b.i18n.Translator(lang)
		for _, key := range keyboard.MenuButtons() {
			rt := buttons[key]
			r.RegisterText(t.T(key), rt.action, rt.handler)
		}
	}

	r.RegisterCallback(keyboard.CallbackApprove, ActionApprove, handlers.NewResolveCallback(svc, true, log))
	r.RegisterCallback(keyboard.CallbackReject, ActionReject, handlers.NewResolveCallback(svc, false, log))
	r.RegisterCallback(keyboard.CallbackPage, ActionPage, handlers.NewPageCallback(svc, log))

	b.dispatcher.RegisterStateHandler(state.StateAwaitingWallet, handlers.NewWalletHandler(svc, log))
	r.SetDefault(handlers.NewUnknownHandler(svc))
}

// Route exposes the router entry point; tests feed fake contexts through it.
func (b *Bot) Route(c telebot.Context) error {
	return b.router.Route(c)
}

// Start publishes the command menu and runs the telegram bot event loop until Stop.
func (b *Bot) Start() {
	if b.telebot == nil {
		return
	}

	for _, lang := range b.i18n.Languages() {
		if err := b.telebot.SetCommands(menuCommands(b.i18n.Translator(lang)), lang); err != nil {
			b.log.Warn("failed to publish command menu", slog.String("lang", lang), slog.Any("error", err))
		}
	}
	if err := b.telebot.SetCommands(menuCommands(b.i18n.Default())); err != nil {
		b.log.Warn("failed to publish default command menu", slog.Any("error", err))
	}

	b.telebot.Start()
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	if b.telebot == nil {
		return
	}

	b.log.Info("stopping telegram bot...")
	b.telebot.Stop()
}

// Telebot exposes the underlying telebot.Bot instance for integrations such as health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

var allowedUpdates = []string{"message", "callback_query"}

// newPoller selects the update source. The webhook only accepts requests carrying
// the configured secret token, so forged updates posted to the public path are dropped.
func newPoller(cfg config.Config) telebot.Poller {
	if cfg.Bot.Mode != "webhook" {
		return &telebot.LongPoller{Timeout: cfg.Bot.Timeout, AllowedUpdates: allowedUpdates}
	}
	return &telebot.Webhook{
		Endpoint:       &telebot.WebhookEndpoint{PublicURL: cfg.WebhookEndpoint()},
		SecretToken:    cfg.Bot.WebhookSecret,
		AllowedUpdates: allowedUpdates,
	}
}

// WebhookHandler returns the handler Telegram posts updates to, or nil in polling mode.
func (b *Bot) WebhookHandler() http.Handler {
	if b.telebot == nil {
		return nil
	}
	if wh, ok := b.telebot.Poller.(*telebot.Webhook); ok {
		return wh
	}
	return nil
}
