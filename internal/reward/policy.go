// Package reward holds the fixed reward amounts and the withdrawal threshold.
package reward

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/trx-referral-bot/pkg/config"
)

// Policy is immutable after construction.
type Policy struct {
	registration decimal.Decimal
	invite       decimal.Decimal
	minWithdraw  decimal.Decimal
}

// NewPolicy parses and validates the configured amounts.
func NewPolicy(cfg config.RewardsConfig) (Policy, error) {
	registration, err := parseAmount("registration reward", cfg.Registration)
	if err != nil {
		return Policy{}, err
	}
	invite, err := parseAmount("invite reward", cfg.Invite)
	if err != nil {
		return Policy{}, err
	}
	minWithdraw, err := parseAmount("min withdraw", cfg.MinWithdraw)
	if err != nil {
		return Policy{}, err
	}

	return Policy{registration: registration, invite: invite, minWithdraw: minWithdraw}, nil
}

// MustPolicy builds a Policy from literal amounts and panics on invalid input. Intended for tests and defaults.
func MustPolicy(registration, invite, minWithdraw string) Policy {
	p, err := NewPolicy(config.RewardsConfig{Registration: registration, Invite: invite, MinWithdraw: minWithdraw})
	if err != nil {
		panic(err)
	}
	return p
}

func (p Policy) RegistrationReward() decimal.Decimal { return p.registration }
func (p Policy) InviteReward() decimal.Decimal       { return p.invite }
func (p Policy) MinWithdraw() decimal.Decimal        { return p.minWithdraw }

// CanWithdraw reports whether balance reaches the withdrawal threshold.
func (p Policy) CanWithdraw(balance decimal.Decimal) bool {
	return balance.GreaterThanOrEqual(p.minWithdraw)
}

func parseAmount(name, raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %s %q: %w", name, raw, err)
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must not be negative, got %s", name, raw)
	}
	return amount, nil
}
