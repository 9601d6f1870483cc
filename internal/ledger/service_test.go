package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/trx-referral-bot/internal/admin"
	"github.com/Proton-105/trx-referral-bot/internal/domain"
	apperrors "github.com/Proton-105/trx-referral-bot/internal/errors"
	"github.com/Proton-105/trx-referral-bot/internal/reward"
	"github.com/Proton-105/trx-referral-bot/internal/state"
)

const adminID = int64(1)

type fixture struct {
	svc   *Service
	store *memStore
	notes *recorder
	fsm   state.StateMachine
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := newMemStore()
	notes := &recorder{}
	fsm := state.NewStateMachine(store, log, nil)

	svc := NewService(Options{
		Store:     store,
		FSM:       fsm,
		Policy:    reward.MustPolicy("0.5", "0.5", "5"),
		Admins:    admin.NewAllowList([]int64{adminID}),
		Notifier:  notes,
		LinkFor:   func(id int64) string { return fmt.Sprintf("https://t.me/trx_bot?start=%d", id) },
		ChannelID: "@payouts",
		Log:       log,
	})

	return fixture{svc: svc, store: store, notes: notes, fsm: fsm}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestParseInviter(t *testing.T) {
	require.NotNil(t, ParseInviter("42"))
	assert.Equal(t, int64(42), *ParseInviter(" 42 "))
	assert.Nil(t, ParseInviter(""))
	assert.Nil(t, ParseInviter("abc"))
	assert.Nil(t, ParseInviter("42abc"))
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("plain registration", func(t *testing.T) {
		f := newFixture(t)

		reg, err := f.svc.Register(ctx, 10, "")
		require.NoError(t, err)
		assert.True(t, dec("0.5").Equal(reg.Reward))
		assert.Nil(t, reg.InviterID)
		assert.True(t, dec("0.5").Equal(f.store.balance(10)))
	})

	t.Run("double registration is rejected without mutation", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Register(ctx, 10, "")
		require.NoError(t, err)

		_, err = f.svc.Register(ctx, 10, "")
		assert.ErrorIs(t, err, ErrAlreadyRegistered)
		assert.True(t, dec("0.5").Equal(f.store.balance(10)))
	})

	t.Run("self invite gives no credit", func(t *testing.T) {
		f := newFixture(t)

		reg, err := f.svc.Register(ctx, 10, "10")
		require.NoError(t, err)
		assert.Nil(t, reg.InviterID)
		assert.True(t, dec("0.5").Equal(f.store.balance(10)))
	})

	t.Run("unknown inviter stored as none", func(t *testing.T) {
		f := newFixture(t)

		reg, err := f.svc.Register(ctx, 10, "999")
		require.NoError(t, err)
		assert.Nil(t, reg.InviterID)
		assert.False(t, reg.InviterCredited)
	})

	t.Run("malformed payload", func(t *testing.T) {
		f := newFixture(t)

		reg, err := f.svc.Register(ctx, 10, "ref_abc")
		require.NoError(t, err)
		assert.Nil(t, reg.InviterID)
	})

	t.Run("store failure becomes database error", func(t *testing.T) {
		f := newFixture(t)
		f.store.failNext = errors.New("connection refused")

		_, err := f.svc.Register(ctx, 10, "")
		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "E200", appErr.Code)
	})
}

func TestRegister_InviteCreditFailureKeepsNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Register(ctx, 100, "")
	require.NoError(t, err)

	f.store.failCreate = errors.New("deadlock detected")
	_, err = f.svc.Register(ctx, 200, "100")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeDatabase, appErr.Code)

	exists, err := f.store.Exists(ctx, 200)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.True(t, dec("0.5").Equal(f.store.balance(100)))

	// a retried /start registers and credits the inviter exactly once
	reg, err := f.svc.Register(ctx, 200, "100")
	require.NoError(t, err)
	assert.True(t, reg.InviterCredited)
	assert.True(t, dec("1").Equal(f.store.balance(100)))
}

func TestRegister_WorkedExample(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Register(ctx, 100, "")
	require.NoError(t, err)

	for i := int64(0); i < 9; i++ {
		reg, err := f.svc.Register(ctx, 200+i, "100")
		require.NoError(t, err)
		assert.True(t, reg.InviterCredited)
	}

	view, err := f.svc.Balance(ctx, 100)
	require.NoError(t, err)
	assert.True(t, dec("5").Equal(view.Balance), "balance %s", view.Balance)
	assert.Equal(t, int64(9), view.Invites)
	assert.Equal(t, "https://t.me/trx_bot?start=100", view.Link)
	assert.Len(t, f.notes.keysFor("100"), 9)

	_, err = f.svc.RequestWithdrawal(ctx, 100)
	require.NoError(t, err)

	w, err := f.svc.SubmitWithdrawal(ctx, 100, "TXyz123 5")
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalPending, w.Status)

	awaiting, err := f.svc.AwaitingWallet(ctx, 100)
	require.NoError(t, err)
	assert.False(t, awaiting)
}

func TestRegister_ConcurrentInvites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Register(ctx, 100, "")
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := f.svc.Register(ctx, id, "100")
			assert.NoError(t, err)
		}(int64(1000 + i))
	}
	wg.Wait()

	view, err := f.svc.Balance(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(n), view.Invites)
	assert.True(t, dec("0.5").Add(dec("0.5").Mul(decimal.NewFromInt(n))).Equal(view.Balance))
}

func TestBalance_NotRegistered(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Balance(context.Background(), 10)
	assert.ErrorIs(t, err, ErrNotRegistered)

	_, err = f.svc.InviteLink(context.Background(), 10)
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestRequestWithdrawal_BelowMinimum(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.Register(ctx, 10, "")
	require.NoError(t, err)

	view, err := f.svc.RequestWithdrawal(ctx, 10)
	assert.ErrorIs(t, err, ErrBelowMinimum)
	require.NotNil(t, view)
	assert.True(t, dec("0.5").Equal(view.Balance))

	awaiting, err := f.svc.AwaitingWallet(ctx, 10)
	require.NoError(t, err)
	assert.False(t, awaiting)
	assert.Zero(t, f.store.pendingCount())
}

func TestRequestWithdrawal_NotRegistered(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RequestWithdrawal(context.Background(), 10)
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func richUser(t *testing.T, f fixture, userID int64, balance string) {
	t.Helper()
	_, err := f.svc.Register(context.Background(), userID, "")
	require.NoError(t, err)
	require.NoError(t, f.store.Credit(context.Background(), userID, dec(balance).Sub(dec("0.5"))))
}

func TestSubmitWithdrawal(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid input keeps prompt open", func(t *testing.T) {
		f := newFixture(t)
		richUser(t, f, 10, "6")
		_, err := f.svc.RequestWithdrawal(ctx, 10)
		require.NoError(t, err)

		_, err = f.svc.SubmitWithdrawal(ctx, 10, "just-a-wallet")
		assert.ErrorIs(t, err, ErrInvalidWithdrawal)
		_, err = f.svc.SubmitWithdrawal(ctx, 10, "TXyz 0")
		assert.ErrorIs(t, err, ErrInvalidAmount)
		_, err = f.svc.SubmitWithdrawal(ctx, 10, "TXyz 6.01")
		assert.ErrorIs(t, err, ErrInsufficientBalance)

		awaiting, err := f.svc.AwaitingWallet(ctx, 10)
		require.NoError(t, err)
		assert.True(t, awaiting)
		assert.Zero(t, f.store.pendingCount())
	})

	t.Run("success notifies admins and channel", func(t *testing.T) {
		f := newFixture(t)
		richUser(t, f, 10, "6")
		_, err := f.svc.RequestWithdrawal(ctx, 10)
		require.NoError(t, err)

		w, err := f.svc.SubmitWithdrawal(ctx, 10, "6 TXyz")
		require.NoError(t, err)
		assert.Equal(t, "TXyz", w.Wallet)
		assert.Equal(t, 1, f.store.pendingCount())
		assert.Equal(t, []string{"notify.new_request"}, f.notes.keysFor("1"))
		assert.Equal(t, []string{"notify.new_request"}, f.notes.keysFor("@payouts"))

		// balance is reserved only on approval
		assert.True(t, dec("6").Equal(f.store.balance(10)))
	})

	t.Run("outside the prompt", func(t *testing.T) {
		f := newFixture(t)
		richUser(t, f, 10, "6")

		_, err := f.svc.SubmitWithdrawal(ctx, 10, "TXyz 5")
		assert.ErrorIs(t, err, ErrNotAwaitingWallet)
	})
}

func TestCancelWithdrawal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	richUser(t, f, 10, "6")

	cancelled, err := f.svc.CancelWithdrawal(ctx, 10)
	require.NoError(t, err)
	assert.False(t, cancelled)

	_, err = f.svc.RequestWithdrawal(ctx, 10)
	require.NoError(t, err)

	cancelled, err = f.svc.CancelWithdrawal(ctx, 10)
	require.NoError(t, err)
	assert.True(t, cancelled)

	awaiting, err := f.svc.AwaitingWallet(ctx, 10)
	require.NoError(t, err)
	assert.False(t, awaiting)

	cancelled, err = f.svc.CancelWithdrawal(ctx, 999)
	require.NoError(t, err)
	assert.False(t, cancelled)
}

func TestGift(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.Register(ctx, 10, "")
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Gift(ctx, 10, 10, dec("1")), ErrForbidden)
	assert.ErrorIs(t, f.svc.Gift(ctx, adminID, 999, dec("1")), ErrUnknownUser)
	assert.ErrorIs(t, f.svc.Gift(ctx, adminID, 10, dec("0")), ErrInvalidAmount)
	assert.True(t, dec("0.5").Equal(f.store.balance(10)))

	require.NoError(t, f.svc.Gift(ctx, adminID, 10, dec("2.25")))
	assert.True(t, dec("2.75").Equal(f.store.balance(10)))
	assert.Equal(t, []string{"notify.gift"}, f.notes.keysFor("10"))

	stats, err := f.svc.Stats(ctx, adminID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Users)
	assert.True(t, dec("2.75").Equal(stats.TotalBalance))
}

func TestStats_Forbidden(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Stats(context.Background(), 10)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.PendingWithdrawals(context.Background(), 10, 0)
	assert.ErrorIs(t, err, ErrForbidden)
}

func submitRequest(t *testing.T, f fixture, userID int64, amount string) *domain.Withdrawal {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.RequestWithdrawal(ctx, userID)
	require.NoError(t, err)
	w, err := f.svc.SubmitWithdrawal(ctx, userID, "TXyz "+amount)
	require.NoError(t, err)
	return w
}

func TestResolveWithdrawal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	richUser(t, f, 10, "12")

	first := submitRequest(t, f, 10, "5")
	second := submitRequest(t, f, 10, "6")

	_, err := f.svc.Approve(ctx, 10, first.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	approved, err := f.svc.Approve(ctx, adminID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalApproved, approved.Status)
	assert.True(t, dec("7").Equal(f.store.balance(10)))

	settled, err := f.svc.Reject(ctx, adminID, first.ID)
	assert.ErrorIs(t, err, ErrWithdrawalResolved)
	require.NotNil(t, settled)
	assert.Equal(t, domain.WithdrawalApproved, settled.Status)

	rejected, err := f.svc.Reject(ctx, adminID, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalRejected, rejected.Status)
	assert.True(t, dec("7").Equal(f.store.balance(10)))

	_, err = f.svc.Approve(ctx, adminID, 404)
	assert.ErrorIs(t, err, ErrWithdrawalNotFound)

	assert.Equal(t, []string{"notify.approved", "notify.rejected"}, f.notes.keysFor("10"))
}

func TestResolveWithdrawal_InsufficientOnApproval(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	richUser(t, f, 10, "6")

	first := submitRequest(t, f, 10, "5")
	second := submitRequest(t, f, 10, "5")

	_, err := f.svc.Approve(ctx, adminID, first.ID)
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, adminID, second.ID)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, 1, f.store.pendingCount())
}

func TestPendingWithdrawals_Pagination(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	richUser(t, f, 10, "100")

	for i := 0; i < 7; i++ {
		submitRequest(t, f, 10, "5")
	}

	page, err := f.svc.PendingWithdrawals(ctx, adminID, 0)
	require.NoError(t, err)
	assert.Len(t, page.Items, PageSize)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 7, page.Total)
	assert.Equal(t, int64(1), page.Items[0].ID)

	page, err = f.svc.PendingWithdrawals(ctx, adminID, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Len(t, page.Items, 2)

	empty := newFixture(t)
	page, err = empty.svc.PendingWithdrawals(ctx, adminID, 0)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Zero(t, page.TotalPages)
}
