package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// WithdrawalStatus is the review state of a withdrawal request.
type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalApproved WithdrawalStatus = "approved"
	WithdrawalRejected WithdrawalStatus = "rejected"
)

// IsTerminal reports whether the status can no longer change.
func (s WithdrawalStatus) IsTerminal() bool {
	return s == WithdrawalApproved || s == WithdrawalRejected
}

// Withdrawal is a user-submitted, admin-reviewed cash-out request.
type Withdrawal struct {
	ID         int64
	UserID     int64
	Wallet     string
	Amount     decimal.Decimal
	Status     WithdrawalStatus
	CreatedAt  time.Time
	ReviewedAt *time.Time
	ReviewedBy *int64
}
