package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Proton-105/trx-referral-bot/internal/state"
)

// StateRepository persists the withdrawal conversation state in users.withdrawal_state.
type StateRepository struct {
	db *sql.DB
}

var _ state.Storage = (*StateRepository)(nil)

// NewStateRepository creates a Postgres-backed implementation of state.Storage.
func NewStateRepository(db *sql.DB) *StateRepository {
	return &StateRepository{db: db}
}

// GetState retrieves the user's state; state.ErrStateNotFound for unregistered users.
func (r *StateRepository) GetState(ctx context.Context, userID int64) (*state.UserState, error) {
	var (
		raw       string
		updatedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT withdrawal_state, state_updated_at FROM users WHERE user_id = $1`, userID,
	).Scan(&raw, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, state.ErrStateNotFound
		}
		return nil, fmt.Errorf("get withdrawal state: %w", err)
	}

	// unknown values read as idle
	current := state.State(raw)
	if !current.Valid() {
		current = state.StateIdle
	}

	return &state.UserState{
		UserID:       userID,
		CurrentState: current,
		UpdatedAt:    updatedAt.Time,
	}, nil
}

// SetState stores the user's state.
func (r *StateRepository) SetState(ctx context.Context, userID int64, userState *state.UserState) error {
	if userState == nil {
		return fmt.Errorf("set withdrawal state: nil state")
	}

	updatedAt := userState.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET withdrawal_state = $2, state_updated_at = $3 WHERE user_id = $1`,
		userID, string(userState.CurrentState), updatedAt,
	)
	if err != nil {
		return fmt.Errorf("set withdrawal state: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set withdrawal state rows affected: %w", err)
	}
	if affected == 0 {
		return state.ErrStateNotFound
	}

	return nil
}

// CountByState groups users by their withdrawal state.
func (r *StateRepository) CountByState(ctx context.Context) (map[state.State]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT withdrawal_state, COUNT(*) FROM users GROUP BY withdrawal_state`,
	)
	if err != nil {
		return nil, fmt.Errorf("count states: %w", err)
	}
	defer rows.Close()

	counts := make(map[state.State]int, len(state.Known))
	for rows.Next() {
		var (
			name  string
			count int
		)
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("scan state count: %w", err)
		}
		counts[state.State(name)] = count
	}

	return counts, rows.Err()
}
