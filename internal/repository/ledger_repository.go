package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/trx-referral-bot/internal/domain"
	"github.com/Proton-105/trx-referral-bot/internal/state"
)

// LedgerRepository defines persistence operations for the referral ledger.
type LedgerRepository interface {
	Exists(ctx context.Context, userID int64) (bool, error)
	Create(ctx context.Context, userID int64, inviterID *int64, reward, inviteReward decimal.Decimal) (bool, error)
	GetBalanceAndInvites(ctx context.Context, userID int64) (*domain.User, error)
	Credit(ctx context.Context, userID int64, amount decimal.Decimal) error
	SubmitWithdrawal(ctx context.Context, userID int64, wallet string, amount decimal.Decimal) (*domain.Withdrawal, error)
	ListPendingWithdrawals(ctx context.Context, limit, offset int) ([]domain.Withdrawal, int, error)
	GetWithdrawal(ctx context.Context, id int64) (*domain.Withdrawal, error)
	ResolveWithdrawal(ctx context.Context, id int64, status domain.WithdrawalStatus, adminID int64) (*domain.Withdrawal, error)
	AggregateStats(ctx context.Context) (*domain.Stats, error)
}

type ledgerRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewLedgerRepository creates a new SQL-backed ledger repository.
func NewLedgerRepository(db *sql.DB, log *slog.Logger) LedgerRepository {
	return &ledgerRepository{
		db:  db,
		log: log,
	}
}

func (r *ledgerRepository) Exists(ctx context.Context, userID int64) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM users WHERE user_id = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&exists); err != nil {
		r.logError("failed to check user existence", userID, err)
		return false, fmt.Errorf("check user exists: %w", err)
	}

	return exists, nil
}

// Create inserts a new user with the registration reward and, in the same transaction,
// credits inviterID with inviteReward. It reports whether the inviter was credited; an
// inviter without a row is stored as none. A repeated registration yields ErrAlreadyExists
// and rolls the credit back.
func (r *ledgerRepository) Create(ctx context.Context, userID int64, inviterID *int64, reward, inviteReward decimal.Decimal) (bool, error) {
	const (
		creditInviter = `
			UPDATE users
			SET balance = balance + $2, invites = invites + 1
			WHERE user_id = $1
		`
		insertUser = `
			INSERT INTO users (user_id, balance, invited_by, invites, withdrawal_state, created_at)
			VALUES ($1, $2, $3, 0, $4, NOW())
			ON CONFLICT (user_id) DO NOTHING
		`
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin register: %w", err)
	}
	defer rollback(tx, r.log)

	var invitedBy sql.NullInt64
	if inviterID != nil && *inviterID != userID {
		res, err := tx.ExecContext(ctx, creditInviter, *inviterID, inviteReward)
		if err != nil {
			r.logError("failed to credit inviter", *inviterID, err)
			return false, fmt.Errorf("credit inviter: %w", err)
		}
		credited, err := res.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("credit inviter rows affected: %w", err)
		}
		if credited == 1 {
			invitedBy = sql.NullInt64{Int64: *inviterID, Valid: true}
		}
	}

	res, err := tx.ExecContext(ctx, insertUser, userID, reward, invitedBy, string(state.StateIdle))
	if err != nil {
		r.logError("failed to create user", userID, err)
		return false, fmt.Errorf("insert user: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert user rows affected: %w", err)
	}
	if inserted == 0 {
		return false, ErrAlreadyExists
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit register: %w", err)
	}
	return invitedBy.Valid, nil
}

func (r *ledgerRepository) GetBalanceAndInvites(ctx context.Context, userID int64) (*domain.User, error) {
	const query = `
		SELECT user_id, balance, invited_by, invites, withdrawal_state, created_at
		FROM users
		WHERE user_id = $1
	`

	var (
		user      domain.User
		invitedBy sql.NullInt64
	)
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&user.ID,
		&user.Balance,
		&invitedBy,
		&user.Invites,
		&user.WithdrawalState,
		&user.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}

		r.logError("failed to fetch user", userID, err)
		return nil, fmt.Errorf("select user: %w", err)
	}

	if invitedBy.Valid {
		inviter := invitedBy.Int64
		user.InvitedBy = &inviter
	}

	return &user, nil
}

// Credit adds a manual gift to the user's balance.
func (r *ledgerRepository) Credit(ctx context.Context, userID int64, amount decimal.Decimal) error {
	const query = `UPDATE users SET balance = balance + $2 WHERE user_id = $1`

	return r.execOnUser(ctx, "credit user", userID, query, userID, amount)
}

func (r *ledgerRepository) execOnUser(ctx context.Context, op string, userID int64, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logError("failed to "+op, userID, err)
		return fmt.Errorf("%s: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *ledgerRepository) AggregateStats(ctx context.Context) (*domain.Stats, error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COALESCE(SUM(balance), 0) FROM users),
			(SELECT COALESCE(SUM(invites), 0) FROM users),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COALESCE(SUM(amount) FILTER (WHERE status = 'pending'), 0),
			COALESCE(SUM(amount) FILTER (WHERE status = 'approved'), 0)
		FROM withdrawals
	`

	var stats domain.Stats
	if err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.Users,
		&stats.TotalBalance,
		&stats.TotalInvites,
		&stats.PendingCount,
		&stats.PendingAmount,
		&stats.ApprovedAmount,
	); err != nil {
		if r.log != nil {
			r.log.Error("failed to aggregate stats", slog.Any("error", err))
		}
		return nil, fmt.Errorf("aggregate stats: %w", err)
	}

	return &stats, nil
}

func (r *ledgerRepository) logError(msg string, userID int64, err error) {
	if r.log == nil {
		return
	}

	r.log.Error(msg, slog.Int64("user_id", userID), slog.Any("error", err))
}

func rollback(tx *sql.Tx, log *slog.Logger) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) && log != nil {
		log.Error("rollback error", slog.Any("error", err))
	}
}
