package repository

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/trx-referral-bot/internal/domain"
	"github.com/Proton-105/trx-referral-bot/internal/state"
)

func newMockRepo(t *testing.T) (LedgerRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewLedgerRepository(db, slog.New(slog.NewTextHandler(io.Discard, nil))), mock
}

func TestLedgerRepository_Create(t *testing.T) {
	ctx := context.Background()
	reward := decimal.RequireFromString("0.5")
	inviteReward := decimal.RequireFromString("0.25")
	inviter := int64(7)

	testCases := []struct {
		name         string
		inviterID    *int64
		setup        func(m sqlmock.Sqlmock)
		wantCredited bool
		wantErr      error
	}{
		{
			name:      "new user credits inviter in the same transaction",
			inviterID: &inviter,
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectExec(`SET balance = balance \+ \$2, invites = invites \+ 1`).
					WithArgs(int64(7), inviteReward).
					WillReturnResult(sqlmock.NewResult(0, 1))
				m.ExpectExec(`INSERT INTO users`).
					WithArgs(int64(42), reward, int64(7), "idle").
					WillReturnResult(sqlmock.NewResult(0, 1))
				m.ExpectCommit()
			},
			wantCredited: true,
		},
		{
			name:      "missing inviter is stored as none",
			inviterID: &inviter,
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectExec(`invites = invites \+ 1`).
					WithArgs(int64(7), inviteReward).
					WillReturnResult(sqlmock.NewResult(0, 0))
				m.ExpectExec(`INSERT INTO users`).
					WithArgs(int64(42), reward, nil, "idle").
					WillReturnResult(sqlmock.NewResult(0, 1))
				m.ExpectCommit()
			},
		},
		{
			name: "new user without inviter",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectExec(`INSERT INTO users`).
					WithArgs(int64(42), reward, nil, "idle").
					WillReturnResult(sqlmock.NewResult(0, 1))
				m.ExpectCommit()
			},
		},
		{
			name:      "inviter credit failure rolls back",
			inviterID: &inviter,
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectExec(`invites = invites \+ 1`).
					WithArgs(int64(7), inviteReward).
					WillReturnError(errors.New("deadlock detected"))
				m.ExpectRollback()
			},
			wantErr: errors.New("credit inviter"),
		},
		{
			name:      "already registered undoes the credit",
			inviterID: &inviter,
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectExec(`invites = invites \+ 1`).
					WillReturnResult(sqlmock.NewResult(0, 1))
				m.ExpectExec(`ON CONFLICT \(user_id\) DO NOTHING`).
					WillReturnResult(sqlmock.NewResult(0, 0))
				m.ExpectRollback()
			},
			wantErr: ErrAlreadyExists,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			repo, m := newMockRepo(t)
			tc.setup(m)

			credited, err := repo.Create(ctx, 42, tc.inviterID, reward, inviteReward)
			switch {
			case errors.Is(tc.wantErr, ErrAlreadyExists):
				assert.ErrorIs(t, err, ErrAlreadyExists)
			case tc.wantErr != nil:
				assert.ErrorContains(t, err, tc.wantErr.Error())
			default:
				require.NoError(t, err)
				assert.Equal(t, tc.wantCredited, credited)
			}
			assert.NoError(t, m.ExpectationsWereMet())
		})
	}
}

func TestLedgerRepository_GetBalanceAndInvites(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		repo, m := newMockRepo(t)
		m.ExpectQuery(`SELECT user_id, balance, invited_by, invites, withdrawal_state, created_at`).
			WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "balance", "invited_by", "invites", "withdrawal_state", "created_at"}).
				AddRow(int64(42), "5.50000000", int64(7), int64(3), "idle", created))

		user, err := repo.GetBalanceAndInvites(ctx, 42)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("5.5").Equal(user.Balance))
		assert.Equal(t, int64(3), user.Invites)
		require.NotNil(t, user.InvitedBy)
		assert.Equal(t, int64(7), *user.InvitedBy)
		assert.NoError(t, m.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		repo, m := newMockRepo(t)
		m.ExpectQuery(`FROM users`).WithArgs(int64(42)).WillReturnError(sql.ErrNoRows)

		_, err := repo.GetBalanceAndInvites(ctx, 42)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestLedgerRepository_Credit(t *testing.T) {
	ctx := context.Background()
	amount := decimal.RequireFromString("2")

	t.Run("gift credits balance", func(t *testing.T) {
		repo, m := newMockRepo(t)
		m.ExpectExec(`UPDATE users SET balance = balance \+ \$2`).
			WithArgs(int64(7), amount).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Credit(ctx, 7, amount))
		assert.NoError(t, m.ExpectationsWereMet())
	})

	t.Run("gift to unknown user", func(t *testing.T) {
		repo, m := newMockRepo(t)
		m.ExpectExec(`UPDATE users SET balance = balance \+ \$2`).
			WithArgs(int64(99), amount).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.Credit(ctx, 99, amount), ErrUserNotFound)
	})

	t.Run("driver failure", func(t *testing.T) {
		repo, m := newMockRepo(t)
		m.ExpectExec(`UPDATE users`).WillReturnError(errors.New("conn reset"))

		err := repo.Credit(ctx, 1, amount)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUserNotFound)
	})
}

func TestLedgerRepository_AggregateStats(t *testing.T) {
	repo, m := newMockRepo(t)
	m.ExpectQuery(`FROM withdrawals`).
		WillReturnRows(sqlmock.NewRows([]string{"users", "balance", "invites", "pending", "pending_amount", "approved_amount"}).
			AddRow(int64(10), "12.5", int64(4), int64(2), "7", "3"))

	stats, err := repo.AggregateStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10), stats.Users)
	assert.Equal(t, int64(2), stats.PendingCount)
	assert.True(t, decimal.RequireFromString("12.5").Equal(stats.TotalBalance))
	assert.True(t, decimal.RequireFromString("7").Equal(stats.PendingAmount))
	assert.NoError(t, m.ExpectationsWereMet())
}

func TestLedgerRepository_SubmitWithdrawal(t *testing.T) {
	ctx := context.Background()
	amount := decimal.RequireFromString("5")
	lockQuery := `SELECT balance, withdrawal_state FROM users WHERE user_id = \$1 FOR UPDATE`

	t.Run("success resets state", func(t *testing.T) {
		repo, m := newMockRepo(t)
		m.ExpectBegin()
		m.ExpectQuery(lockQuery).WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"balance", "withdrawal_state"}).AddRow("6", "awaiting_wallet"))
		m.ExpectQuery(`INSERT INTO withdrawals`).
			WithArgs(int64(42), "TXYZ", amount, "pending").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(12), time.Now()))
		m.ExpectExec(`UPDATE users SET withdrawal_state`).
			WithArgs(int64(42), "idle").
			WillReturnResult(sqlmock.NewResult(0, 1))
		m.ExpectCommit()

		w, err := repo.SubmitWithdrawal(ctx, 42, "TXYZ", amount)
		require.NoError(t, err)
		assert.Equal(t, int64(12), w.ID)
		assert.Equal(t, domain.WithdrawalPending, w.Status)
		assert.NoError(t, m.ExpectationsWereMet())
	})

	t.Run("not awaiting wallet", func(t *testing.T) {
		repo, m := newMockRepo(t)
		m.ExpectBegin()
		m.ExpectQuery(lockQuery).WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"balance", "withdrawal_state"}).AddRow("6", string(state.StateIdle)))
		m.ExpectRollback()

		_, err := repo.SubmitWithdrawal(ctx, 42, "TXYZ", amount)
		assert.ErrorIs(t, err, ErrNotAwaitingWallet)
		assert.NoError(t, m.ExpectationsWereMet())
	})

	t.Run("amount above balance", func(t *testing.T) {
		repo, m := newMockRepo(t)
		m.ExpectBegin()
		m.ExpectQuery(lockQuery).WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"balance", "withdrawal_state"}).AddRow("4.99", "awaiting_wallet"))
		m.ExpectRollback()

		_, err := repo.SubmitWithdrawal(ctx, 42, "TXYZ", amount)
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		assert.NoError(t, m.ExpectationsWereMet())
	})
}

func withdrawalRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "wallet", "amount", "status", "created_at", "reviewed_at", "reviewed_by"})
}

func TestLedgerRepository_ResolveWithdrawal(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	lockQuery := `FROM withdrawals WHERE id = \$1 FOR UPDATE`

	t.Run("approve debits balance", func(t *testing.T) {
		repo, m := newMockRepo(t)
		m.ExpectBegin()
		m.ExpectQuery(lockQuery).WithArgs(int64(3)).
			WillReturnRows(withdrawalRows().AddRow(int64(3), int64(42), "TXYZ", "5", "pending", created, nil, nil))
		m.ExpectExec(`SET balance = balance - \$2 WHERE user_id = \$1 AND balance >= \$2`).
			WithArgs(int64(42), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		m.ExpectExec(`UPDATE withdrawals SET status`).
			WithArgs(int64(3), "approved", sqlmock.AnyArg(), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		m.ExpectCommit()

		w, err := repo.ResolveWithdrawal(ctx, 3, domain.WithdrawalApproved, 1)
		require.NoError(t, err)
		assert.Equal(t, domain.WithdrawalApproved, w.Status)
		require.NotNil(t, w.ReviewedBy)
		assert.Equal(t, int64(1), *w.ReviewedBy)
		assert.NoError(t, m.ExpectationsWereMet())
	})

	t.Run("reject leaves balance", func(t *testing.T) {
		repo, m := newMockRepo(t)
		m.ExpectBegin()
		m.ExpectQuery(lockQuery).WithArgs(int64(3)).
			WillReturnRows(withdrawalRows().AddRow(int64(3), int64(42), "TXYZ", "5", "pending", created, nil, nil))
		m.ExpectExec(`UPDATE withdrawals SET status`).
			WithArgs(int64(3), "rejected", sqlmock.AnyArg(), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		m.ExpectCommit()

		w, err := repo.ResolveWithdrawal(ctx, 3, domain.WithdrawalRejected, 1)
		require.NoError(t, err)
		assert.Equal(t, domain.WithdrawalRejected, w.Status)
		assert.NoError(t, m.ExpectationsWereMet())
	})

	t.Run("already resolved", func(t *testing.T) {
		repo, m := newMockRepo(t)
		m.ExpectBegin()
		m.ExpectQuery(lockQuery).WithArgs(int64(3)).
			WillReturnRows(withdrawalRows().AddRow(int64(3), int64(42), "TXYZ", "5", "approved", created, created, int64(1)))
		m.ExpectRollback()

		_, err := repo.ResolveWithdrawal(ctx, 3, domain.WithdrawalRejected, 1)
		assert.ErrorIs(t, err, ErrWithdrawalResolved)
		assert.NoError(t, m.ExpectationsWereMet())
	})

	t.Run("balance spent meanwhile", func(t *testing.T) {
		repo, m := newMockRepo(t)
		m.ExpectBegin()
		m.ExpectQuery(lockQuery).WithArgs(int64(3)).
			WillReturnRows(withdrawalRows().AddRow(int64(3), int64(42), "TXYZ", "5", "pending", created, nil, nil))
		m.ExpectExec(`SET balance = balance -`).WillReturnResult(sqlmock.NewResult(0, 0))
		m.ExpectRollback()

		_, err := repo.ResolveWithdrawal(ctx, 3, domain.WithdrawalApproved, 1)
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		assert.NoError(t, m.ExpectationsWereMet())
	})

	t.Run("unknown id", func(t *testing.T) {
		repo, m := newMockRepo(t)
		m.ExpectBegin()
		m.ExpectQuery(lockQuery).WithArgs(int64(404)).WillReturnError(sql.ErrNoRows)
		m.ExpectRollback()

		_, err := repo.ResolveWithdrawal(ctx, 404, domain.WithdrawalApproved, 1)
		assert.ErrorIs(t, err, ErrWithdrawalNotFound)
	})
}

func TestLedgerRepository_ListPendingWithdrawals(t *testing.T) {
	repo, m := newMockRepo(t)
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	m.ExpectQuery(`SELECT COUNT\(\*\) FROM withdrawals WHERE status = \$1`).
		WithArgs("pending").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	m.ExpectQuery(`ORDER BY created_at, id`).
		WithArgs("pending", 5, 5).
		WillReturnRows(withdrawalRows().
			AddRow(int64(6), int64(42), "TA", "5", "pending", created, nil, nil).
			AddRow(int64(7), int64(43), "TB", "6.25", "pending", created.Add(time.Minute), nil, nil))

	list, total, err := repo.ListPendingWithdrawals(context.Background(), 5, 5)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, list, 2)
	assert.Equal(t, int64(6), list[0].ID)
	assert.True(t, decimal.RequireFromString("6.25").Equal(list[1].Amount))
	assert.NoError(t, m.ExpectationsWereMet())
}

func TestLedgerRepository_GetWithdrawal(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	reviewed := created.Add(time.Hour)

	t.Run("found", func(t *testing.T) {
		repo, m := newMockRepo(t)
		m.ExpectQuery(`FROM withdrawals WHERE id = \$1`).
			WithArgs(int64(9)).
			WillReturnRows(withdrawalRows().
				AddRow(int64(9), int64(42), "TA", "5", "approved", created, reviewed, int64(1)))

		w, err := repo.GetWithdrawal(context.Background(), 9)
		require.NoError(t, err)
		assert.Equal(t, domain.WithdrawalApproved, w.Status)
		assert.Equal(t, int64(42), w.UserID)
		assert.NoError(t, m.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		repo, m := newMockRepo(t)
		m.ExpectQuery(`FROM withdrawals WHERE id = \$1`).
			WithArgs(int64(10)).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetWithdrawal(context.Background(), 10)
		assert.ErrorIs(t, err, ErrWithdrawalNotFound)
		assert.NoError(t, m.ExpectationsWereMet())
	})
}
