// Package repository implements the Postgres-backed ledger store.
package repository

import "errors"

var (
	// ErrAlreadyExists is returned when a user registers twice.
	ErrAlreadyExists = errors.New("user already exists")
	// ErrUserNotFound is returned for operations on an unregistered user.
	ErrUserNotFound = errors.New("user not found")
	// ErrWithdrawalNotFound is returned when no request has the given id.
	ErrWithdrawalNotFound = errors.New("withdrawal not found")
	// ErrWithdrawalResolved is returned when a request was already approved or rejected.
	ErrWithdrawalResolved = errors.New("withdrawal already resolved")
	// ErrInsufficientBalance is returned when a debit would make the balance negative.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrNotAwaitingWallet is returned when a submission arrives outside the wallet prompt.
	ErrNotAwaitingWallet = errors.New("user is not awaiting wallet")
)
