// Package state implements the per-user withdrawal conversation state machine.
package state

import (
	"context"
	"time"
)

// State is a step of the withdrawal conversation, persisted per user.
type State string

const (
	// StateIdle means no withdrawal is in progress.
	StateIdle State = "idle"
	// StateAwaitingWallet means the next free-text message is the wallet and amount of a withdrawal.
	StateAwaitingWallet State = "awaiting_wallet"
)

// Known lists every state in display order.
var Known = []State{StateIdle, StateAwaitingWallet}

// Valid reports whether s is one of the Known states.
func (s State) Valid() bool {
	for _, known := range Known {
		if s == known {
			return true
		}
	}
	return false
}

// UserState is the persisted state of one user.
type UserState struct {
	UserID       int64     `json:"user_id"`
	CurrentState State     `json:"current_state"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Storage persists UserState next to the user's ledger record.
type Storage interface {
	// GetState returns ErrStateNotFound when the user has no record.
	GetState(ctx context.Context, userID int64) (*UserState, error)
	// SetState returns ErrStateNotFound when the user has no record.
	SetState(ctx context.Context, userID int64, state *UserState) error
	CountByState(ctx context.Context) (map[State]int, error)
}
