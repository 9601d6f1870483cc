// Package domain holds the ledger entities shared across layers.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is one registered chat participant and their ledger position.
type User struct {
	ID              int64
	Balance         decimal.Decimal
	InvitedBy       *int64
	Invites         int64
	WithdrawalState string
	CreatedAt       time.Time
}

// Stats aggregates the whole ledger for the admin panel.
type Stats struct {
	Users          int64
	TotalBalance   decimal.Decimal
	TotalInvites   int64
	PendingCount   int64
	PendingAmount  decimal.Decimal
	ApprovedAmount decimal.Decimal
}
