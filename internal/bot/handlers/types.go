package handlers

import (
	"context"

	"github.com/shopspring/decimal"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/trx-referral-bot/internal/domain"
	"github.com/Proton-105/trx-referral-bot/internal/ledger"
	"github.com/Proton-105/trx-referral-bot/internal/reward"
)

// Handler processes a single update.
type Handler func(c telebot.Context) error

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler

// Ledger is the part of ledger.Service the chat handlers drive.
type Ledger interface {
	IsAdmin(userID int64) bool
	Policy() reward.Policy

	Register(ctx context.Context, userID int64, payload string) (*ledger.Registration, error)
	Balance(ctx context.Context, userID int64) (*ledger.BalanceView, error)
	InviteLink(ctx context.Context, userID int64) (string, error)

	RequestWithdrawal(ctx context.Context, userID int64) (*ledger.BalanceView, error)
	SubmitWithdrawal(ctx context.Context, userID int64, text string) (*domain.Withdrawal, error)
	CancelWithdrawal(ctx context.Context, userID int64) (bool, error)

	Stats(ctx context.Context, adminID int64) (*domain.Stats, error)
	PendingWithdrawals(ctx context.Context, adminID int64, page int) (*ledger.PendingPage, error)
	Approve(ctx context.Context, adminID, withdrawalID int64) (*domain.Withdrawal, error)
	Reject(ctx context.Context, adminID, withdrawalID int64) (*domain.Withdrawal, error)
	Gift(ctx context.Context, adminID, userID int64, amount decimal.Decimal) error
}

var _ Ledger = (*ledger.Service)(nil)
