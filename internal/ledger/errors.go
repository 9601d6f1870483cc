package ledger

import "errors"

var (
	ErrNotRegistered     = errors.New("user is not registered")
	ErrAlreadyRegistered = errors.New("user is already registered")
	ErrBelowMinimum      = errors.New("balance below withdrawal minimum")
	// ErrInvalidWithdrawal means the wallet/amount message could not be parsed.
	ErrInvalidWithdrawal   = errors.New("invalid withdrawal format")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotAwaitingWallet   = errors.New("no withdrawal in progress")
	ErrForbidden           = errors.New("admin privileges required")
	ErrUnknownUser         = errors.New("target user not found")
	ErrWithdrawalNotFound  = errors.New("withdrawal not found")
	ErrWithdrawalResolved  = errors.New("withdrawal already resolved")
)
