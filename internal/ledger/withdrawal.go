package ledger

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/Proton-105/trx-referral-bot/internal/domain"
	apperrors "github.com/Proton-105/trx-referral-bot/internal/errors"
	"github.com/Proton-105/trx-referral-bot/internal/notify"
	"github.com/Proton-105/trx-referral-bot/internal/repository"
	"github.com/Proton-105/trx-referral-bot/internal/state"
	"github.com/Proton-105/trx-referral-bot/pkg/metrics"
)

// RequestWithdrawal opens the wallet prompt when the balance reaches the threshold.
// The returned view is filled even when ErrBelowMinimum is returned.
func (s *Service) RequestWithdrawal(ctx context.Context, userID int64) (*BalanceView, error) {
	view, err := s.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !s.policy.CanWithdraw(view.Balance) {
		return view, ErrBelowMinimum
	}

	if err := s.fsm.TransitionTo(ctx, userID, state.StateAwaitingWallet); err != nil {
		return nil, s.stateError("withdraw.request", userID, err)
	}

	return view, nil
}

// AwaitingWallet reports whether the user's next free-text message is a withdrawal submission.
func (s *Service) AwaitingWallet(ctx context.Context, userID int64) (bool, error) {
	current, err := s.fsm.Current(ctx, userID)
	if err != nil {
		if errors.Is(err, state.ErrStateNotFound) {
			return false, nil
		}
		return false, s.storeError("withdraw.state", userID, err)
	}

	return current == state.StateAwaitingWallet, nil
}

// SubmitWithdrawal parses "<wallet> <amount>" and records a pending request.
// On a parse or balance error the user stays in the wallet prompt.
func (s *Service) SubmitWithdrawal(ctx context.Context, userID int64, text string) (*domain.Withdrawal, error) {
	wallet, amount, err := ParseWithdrawal(text)
	if err != nil {
		return nil, err
	}

	w, err := s.store.SubmitWithdrawal(ctx, userID, wallet, amount)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrInsufficientBalance):
		return nil, ErrInsufficientBalance
	case errors.Is(err, repository.ErrNotAwaitingWallet):
		return nil, ErrNotAwaitingWallet
	case errors.Is(err, repository.ErrUserNotFound):
		return nil, ErrNotRegistered
	default:
		return nil, s.storeError("withdraw.submit", userID, err)
	}

	state.RecordTransition(state.StateAwaitingWallet, state.StateIdle)
	metrics.RecordWithdrawalRequest()
	s.log.InfoContext(ctx, "withdrawal requested",
		slog.Int64("user_id", userID),
		slog.Int64("withdrawal_id", w.ID),
		slog.String("amount", amount.String()),
	)

	s.notifier.Notify(ctx, s.newRequestMessages(*w)...)
	return w, nil
}

func (s *Service) newRequestMessages(w domain.Withdrawal) []notify.Message {
	params := map[string]string{
		"id":      strconv.FormatInt(w.ID, 10),
		"user_id": strconv.FormatInt(w.UserID, 10),
		"wallet":  w.Wallet,
		"amount":  w.Amount.String(),
	}

	msgs := make([]notify.Message, 0, s.admins.Len()+1)
	for _, id := range s.admins.IDs() {
		msgs = append(msgs, notify.Message{ChatID: notify.UserChat(id), Key: "notify.new_request", Params: params})
	}
	if s.channelID != "" {
		msgs = append(msgs, notify.Message{ChatID: s.channelID, Key: "notify.new_request", Params: params})
	}

	return msgs
}

// CancelWithdrawal leaves the wallet prompt. It reports whether a prompt was open.
func (s *Service) CancelWithdrawal(ctx context.Context, userID int64) (bool, error) {
	awaiting, err := s.AwaitingWallet(ctx, userID)
	if err != nil || !awaiting {
		return false, err
	}

	if err := s.fsm.Reset(ctx, userID); err != nil {
		return false, s.stateError("withdraw.cancel", userID, err)
	}
	return true, nil
}

// PendingPage is one page of the admin withdrawal list.
type PendingPage struct {
	Items      []domain.Withdrawal
	Page       int
	TotalPages int
	Total      int
}

// PendingWithdrawals lists pending requests oldest first. Pages are zero-based and clamped.
func (s *Service) PendingWithdrawals(ctx context.Context, adminID int64, page int) (*PendingPage, error) {
	if !s.IsAdmin(adminID) {
		return nil, ErrForbidden
	}
	if page < 0 {
		page = 0
	}

	items, total, err := s.store.ListPendingWithdrawals(ctx, PageSize, page*PageSize)
	if err != nil {
		return nil, s.storeError("withdrawals.list", adminID, err)
	}

	totalPages := (total + PageSize - 1) / PageSize
	if totalPages > 0 && page >= totalPages {
		// the list shrank since the keyboard was rendered
		page = totalPages - 1
		items, total, err = s.store.ListPendingWithdrawals(ctx, PageSize, page*PageSize)
		if err != nil {
			return nil, s.storeError("withdrawals.list", adminID, err)
		}
	}

	return &PendingPage{Items: items, Page: page, TotalPages: totalPages, Total: total}, nil
}

// Approve marks a pending request approved and debits the owner's balance.
func (s *Service) Approve(ctx context.Context, adminID, withdrawalID int64) (*domain.Withdrawal, error) {
	return s.resolve(ctx, adminID, withdrawalID, domain.WithdrawalApproved)
}

// Reject marks a pending request rejected; the balance is untouched.
func (s *Service) Reject(ctx context.Context, adminID, withdrawalID int64) (*domain.Withdrawal, error) {
	return s.resolve(ctx, adminID, withdrawalID, domain.WithdrawalRejected)
}

func (s *Service) resolve(ctx context.Context, adminID, withdrawalID int64, status domain.WithdrawalStatus) (*domain.Withdrawal, error) {
	if !s.IsAdmin(adminID) {
		return nil, ErrForbidden
	}

	w, err := s.store.ResolveWithdrawal(ctx, withdrawalID, status, adminID)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrWithdrawalNotFound):
		return nil, ErrWithdrawalNotFound
	case errors.Is(err, repository.ErrWithdrawalResolved):
		return s.resolvedEarlier(ctx, withdrawalID), ErrWithdrawalResolved
	case errors.Is(err, repository.ErrInsufficientBalance):
		return nil, ErrInsufficientBalance
	default:
		return nil, s.storeError("withdrawals.resolve", adminID, err)
	}

	metrics.RecordWithdrawalResolution(status)
	s.log.InfoContext(ctx, "withdrawal resolved",
		slog.Int64("withdrawal_id", w.ID),
		slog.Int64("admin_id", adminID),
		slog.String("status", string(status)),
	)

	key := "notify.approved"
	if status == domain.WithdrawalRejected {
		key = "notify.rejected"
	}
	s.notifier.Notify(ctx, notify.Message{
		ChatID: notify.UserChat(w.UserID),
		Key:    key,
		Params: map[string]string{
			"id":     strconv.FormatInt(w.ID, 10),
			"amount": w.Amount.String(),
		},
	})

	return w, nil
}

// resolvedEarlier loads a request another review already settled so the caller can show
// its final status. A failed lookup yields nil.
func (s *Service) resolvedEarlier(ctx context.Context, withdrawalID int64) *domain.Withdrawal {
	w, err := s.store.GetWithdrawal(ctx, withdrawalID)
	if err != nil {
		s.log.WarnContext(ctx, "load resolved withdrawal",
			slog.Int64("withdrawal_id", withdrawalID),
			slog.Any("error", err),
		)
		return nil
	}
	return w
}

func (s *Service) stateError(op string, userID int64, err error) error {
	switch {
	case errors.Is(err, state.ErrStateLocked):
		return apperrors.NewBusyError(err)
	case errors.Is(err, state.ErrStateNotFound):
		return ErrNotRegistered
	case errors.Is(err, state.ErrInvalidTransition):
		return apperrors.NewStateError(err.Error())
	default:
		return s.storeError(op, userID, err)
	}
}
