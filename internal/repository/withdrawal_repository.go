package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/trx-referral-bot/internal/domain"
	"github.com/Proton-105/trx-referral-bot/internal/state"
)

const withdrawalColumns = `id, user_id, wallet, amount, status, created_at, reviewed_at, reviewed_by`

// SubmitWithdrawal records a pending request and returns the user to idle atomically.
// The user row is locked so concurrent submissions cannot both pass the balance check.
func (r *ledgerRepository) SubmitWithdrawal(ctx context.Context, userID int64, wallet string, amount decimal.Decimal) (*domain.Withdrawal, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin submit withdrawal: %w", err)
	}
	defer rollback(tx, r.log)

	var (
		balance  decimal.Decimal
		curState string
	)
	err = tx.QueryRowContext(ctx,
		`SELECT balance, withdrawal_state FROM users WHERE user_id = $1 FOR UPDATE`,
		userID,
	).Scan(&balance, &curState)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		r.logError("failed to lock user for withdrawal", userID, err)
		return nil, fmt.Errorf("lock user: %w", err)
	}

	if state.State(curState) != state.StateAwaitingWallet {
		return nil, ErrNotAwaitingWallet
	}
	if amount.GreaterThan(balance) {
		return nil, ErrInsufficientBalance
	}

	w := domain.Withdrawal{
		UserID: userID,
		Wallet: wallet,
		Amount: amount,
		Status: domain.WithdrawalPending,
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO withdrawals (user_id, wallet, amount, status, created_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 RETURNING id, created_at`,
		userID, wallet, amount, string(domain.WithdrawalPending),
	).Scan(&w.ID, &w.CreatedAt)
	if err != nil {
		r.logError("failed to insert withdrawal", userID, err)
		return nil, fmt.Errorf("insert withdrawal: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET withdrawal_state = $2, state_updated_at = NOW() WHERE user_id = $1`,
		userID, string(state.StateIdle),
	); err != nil {
		r.logError("failed to reset withdrawal state", userID, err)
		return nil, fmt.Errorf("reset withdrawal state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit submit withdrawal: %w", err)
	}

	return &w, nil
}

func (r *ledgerRepository) ListPendingWithdrawals(ctx context.Context, limit, offset int) ([]domain.Withdrawal, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM withdrawals WHERE status = $1`,
		string(domain.WithdrawalPending),
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count pending withdrawals: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+withdrawalColumns+`
		 FROM withdrawals
		 WHERE status = $1
		 ORDER BY created_at, id
		 LIMIT $2 OFFSET $3`,
		string(domain.WithdrawalPending), limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list pending withdrawals: %w", err)
	}
	defer rows.Close()

	var list []domain.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan withdrawal: %w", err)
		}
		list = append(list, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate withdrawals: %w", err)
	}

	return list, total, nil
}

func (r *ledgerRepository) GetWithdrawal(ctx context.Context, id int64) (*domain.Withdrawal, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1`, id)

	w, err := scanWithdrawal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("select withdrawal: %w", err)
	}

	return w, nil
}

// ResolveWithdrawal moves a pending request to approved or rejected exactly once.
// Approval debits the owner's balance in the same transaction.
func (r *ledgerRepository) ResolveWithdrawal(ctx context.Context, id int64, status domain.WithdrawalStatus, adminID int64) (*domain.Withdrawal, error) {
	if !status.IsTerminal() {
		return nil, fmt.Errorf("resolve withdrawal: unsupported status %q", status)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin resolve withdrawal: %w", err)
	}
	defer rollback(tx, r.log)

	w, err := scanWithdrawal(tx.QueryRowContext(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1 FOR UPDATE`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("lock withdrawal: %w", err)
	}

	if w.Status != domain.WithdrawalPending {
		return nil, ErrWithdrawalResolved
	}

	if status == domain.WithdrawalApproved {
		res, err := tx.ExecContext(ctx,
			`UPDATE users SET balance = balance - $2 WHERE user_id = $1 AND balance >= $2`,
			w.UserID, w.Amount,
		)
		if err != nil {
			r.logError("failed to debit withdrawal", w.UserID, err)
			return nil, fmt.Errorf("debit balance: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("debit balance rows affected: %w", err)
		}
		if affected == 0 {
			return nil, ErrInsufficientBalance
		}
	}

	reviewedAt := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE withdrawals SET status = $2, reviewed_at = $3, reviewed_by = $4 WHERE id = $1`,
		id, string(status), reviewedAt, adminID,
	); err != nil {
		return nil, fmt.Errorf("update withdrawal status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit resolve withdrawal: %w", err)
	}

	w.Status = status
	w.ReviewedAt = &reviewedAt
	w.ReviewedBy = &adminID
	return w, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWithdrawal(row rowScanner) (*domain.Withdrawal, error) {
	var (
		w          domain.Withdrawal
		status     string
		reviewedAt sql.NullTime
		reviewedBy sql.NullInt64
	)
	if err := row.Scan(&w.ID, &w.UserID, &w.Wallet, &w.Amount, &status, &w.CreatedAt, &reviewedAt, &reviewedBy); err != nil {
		return nil, err
	}

	w.Status = domain.WithdrawalStatus(status)
	if reviewedAt.Valid {
		t := reviewedAt.Time
		w.ReviewedAt = &t
	}
	if reviewedBy.Valid {
		id := reviewedBy.Int64
		w.ReviewedBy = &id
	}

	return &w, nil
}
