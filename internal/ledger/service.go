// Package ledger implements the referral-reward ledger operations behind the bot.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/trx-referral-bot/internal/admin"
	"github.com/Proton-105/trx-referral-bot/internal/domain"
	apperrors "github.com/Proton-105/trx-referral-bot/internal/errors"
	"github.com/Proton-105/trx-referral-bot/internal/notify"
	"github.com/Proton-105/trx-referral-bot/internal/repository"
	"github.com/Proton-105/trx-referral-bot/internal/reward"
	"github.com/Proton-105/trx-referral-bot/internal/state"
	"github.com/Proton-105/trx-referral-bot/pkg/metrics"
)

// PageSize is the number of pending withdrawals shown per admin page.
const PageSize = 5

// Notifier sends best-effort side messages.
type Notifier interface {
	Notify(ctx context.Context, msgs ...notify.Message)
}

// Options wires the Service dependencies.
type Options struct {
	Store     repository.LedgerRepository
	FSM       state.StateMachine
	Policy    reward.Policy
	Admins    admin.AllowList
	Notifier  Notifier
	LinkFor   func(userID int64) string
	ChannelID string
	Log       *slog.Logger
}

// Service provides business operations over the ledger.
type Service struct {
	store     repository.LedgerRepository
	fsm       state.StateMachine
	policy    reward.Policy
	admins    admin.AllowList
	notifier  Notifier
	linkFor   func(userID int64) string
	channelID string
	log       *slog.Logger
}

// NewService constructs a new Service instance.
func NewService(opts Options) *Service {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.New(nil, log)
	}
	linkFor := opts.LinkFor
	if linkFor == nil {
		linkFor = func(int64) string { return "" }
	}

	return &Service{
		store:     opts.Store,
		fsm:       opts.FSM,
		policy:    opts.Policy,
		admins:    opts.Admins,
		notifier:  notifier,
		linkFor:   linkFor,
		channelID: opts.ChannelID,
		log:       log,
	}
}

// Policy returns the reward amounts in effect.
func (s *Service) Policy() reward.Policy {
	return s.policy
}

// IsAdmin reports whether userID may use the admin panel.
func (s *Service) IsAdmin(userID int64) bool {
	return s.admins.Contains(userID)
}

// Registration describes a successful /start.
type Registration struct {
	UserID          int64
	Reward          decimal.Decimal
	InviterID       *int64
	InviterCredited bool
}

// ParseInviter extracts the inviter id from a /start payload. Malformed payloads yield nil.
func ParseInviter(payload string) *int64 {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil
	}

	id, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

// Register creates the user's ledger record and credits the inviter when the payload names
// another registered user. Both happen in one store transaction.
func (s *Service) Register(ctx context.Context, userID int64, payload string) (*Registration, error) {
	exists, err := s.store.Exists(ctx, userID)
	if err != nil {
		return nil, s.storeError("register.exists", userID, err)
	}
	if exists {
		return nil, ErrAlreadyRegistered
	}

	inviterID := ParseInviter(payload)
	if inviterID != nil && *inviterID == userID {
		inviterID = nil
	}

	credited, err := s.store.Create(ctx, userID, inviterID, s.policy.RegistrationReward(), s.policy.InviteReward())
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, ErrAlreadyRegistered
		}
		return nil, s.storeError("register.create", userID, err)
	}

	reg := &Registration{
		UserID:          userID,
		Reward:          s.policy.RegistrationReward(),
		InviterCredited: credited,
	}
	if credited {
		reg.InviterID = inviterID
		s.notifier.Notify(ctx, notify.Message{
			ChatID: notify.UserChat(*inviterID),
			Key:    "notify.invite_credited",
			Params: map[string]string{"reward": s.policy.InviteReward().String()},
		})
	}

	metrics.RecordRegistration(reg.InviterCredited)
	s.log.InfoContext(ctx, "user registered",
		slog.Int64("user_id", userID),
		slog.Bool("invited", reg.InviterCredited),
	)

	return reg, nil
}

// BalanceView is what the balance screen shows.
type BalanceView struct {
	Balance     decimal.Decimal
	Invites     int64
	Link        string
	MinWithdraw decimal.Decimal
}

// Balance returns the user's balance, invite count, referral link and the withdrawal threshold.
func (s *Service) Balance(ctx context.Context, userID int64) (*BalanceView, error) {
	user, err := s.store.GetBalanceAndInvites(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrNotRegistered
		}
		return nil, s.storeError("balance", userID, err)
	}

	return &BalanceView{
		Balance:     user.Balance,
		Invites:     user.Invites,
		Link:        s.linkFor(userID),
		MinWithdraw: s.policy.MinWithdraw(),
	}, nil
}

// InviteLink returns the caller's referral link.
func (s *Service) InviteLink(ctx context.Context, userID int64) (string, error) {
	exists, err := s.store.Exists(ctx, userID)
	if err != nil {
		return "", s.storeError("invite_link", userID, err)
	}
	if !exists {
		return "", ErrNotRegistered
	}

	return s.linkFor(userID), nil
}

// Stats returns aggregate ledger figures for administrators.
func (s *Service) Stats(ctx context.Context, adminID int64) (*domain.Stats, error) {
	if !s.IsAdmin(adminID) {
		return nil, ErrForbidden
	}

	stats, err := s.store.AggregateStats(ctx)
	if err != nil {
		return nil, s.storeError("stats", adminID, err)
	}
	return stats, nil
}

// Gift credits amount to userID on behalf of an administrator.
func (s *Service) Gift(ctx context.Context, adminID, userID int64, amount decimal.Decimal) error {
	if !s.IsAdmin(adminID) {
		return ErrForbidden
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	if err := s.store.Credit(ctx, userID, amount); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUnknownUser
		}
		return s.storeError("gift", userID, err)
	}

	metrics.RecordGift()
	s.log.InfoContext(ctx, "gift credited",
		slog.Int64("admin_id", adminID),
		slog.Int64("user_id", userID),
		slog.String("amount", amount.String()),
	)

	s.notifier.Notify(ctx, notify.Message{
		ChatID: notify.UserChat(userID),
		Key:    "notify.gift",
		Params: map[string]string{"amount": amount.String()},
	})
	return nil
}

func (s *Service) storeError(op string, userID int64, err error) error {
	s.log.Error("ledger store failure",
		slog.String("operation", op),
		slog.Int64("user_id", userID),
		slog.Any("error", err),
	)
	return apperrors.NewDatabaseError(fmt.Errorf("%s: %w", op, err))
}
