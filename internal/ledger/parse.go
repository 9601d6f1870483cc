package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

const maxAmountScale = 8

// ParseWithdrawal splits "<wallet> <amount>" (either order) into its parts.
func ParseWithdrawal(text string) (string, decimal.Decimal, error) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return "", decimal.Zero, ErrInvalidWithdrawal
	}

	wallet, rawAmount := fields[0], fields[1]
	if _, err := decimal.NewFromString(rawAmount); err != nil {
		wallet, rawAmount = rawAmount, wallet
	}

	// two numbers leave nothing to identify the wallet
	if _, err := decimal.NewFromString(wallet); err == nil {
		return "", decimal.Zero, ErrInvalidWithdrawal
	}

	amount, err := ParseAmount(rawAmount)
	if err != nil {
		return "", decimal.Zero, err
	}

	return wallet, amount, nil
}

// ParseAmount parses a strictly positive amount with at most 8 fractional digits.
func ParseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, ErrInvalidWithdrawal
	}
	if !amount.IsPositive() || !amount.Equal(amount.Truncate(maxAmountScale)) {
		return decimal.Zero, ErrInvalidAmount
	}

	return amount, nil
}
