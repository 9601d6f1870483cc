package ratelimit

import (
	"fmt"
	"time"

	"github.com/Proton-105/trx-referral-bot/internal/admin"
	"github.com/Proton-105/trx-referral-bot/pkg/config"
)

// Commands with their own, stricter limits.
const (
	CommandWithdraw = "withdraw"
	CommandGift     = "gift"
)

// Rules holds the parsed limits. Administrators are never limited.
type Rules struct {
	enabled  bool
	perUser  Rule
	commands map[string]Rule
	admins   admin.AllowList
}

// NewRules parses the configured windows once so that bad values fail at startup.
func NewRules(cfg config.RateLimitConfig, admins admin.AllowList) (*Rules, error) {
	r := &Rules{enabled: cfg.Enabled, admins: admins, commands: make(map[string]Rule, 2)}
	if !cfg.Enabled {
		return r, nil
	}

	var err error
	if r.perUser, err = parseRule("per_user", cfg.PerUser); err != nil {
		return nil, err
	}

	for command, raw := range map[string]config.RateLimitRule{
		CommandWithdraw: cfg.Commands.Withdraw,
		CommandGift:     cfg.Commands.Gift,
	} {
		if raw.Limit == 0 && raw.Window == "" {
			continue
		}
		rule, err := parseRule(command, raw)
		if err != nil {
			return nil, err
		}
		r.commands[command] = rule
	}

	return r, nil
}

// Enabled reports whether limits are enforced at all.
func (r *Rules) Enabled() bool {
	return r != nil && r.enabled
}

// Exempt reports whether userID bypasses rate limits.
func (r *Rules) Exempt(userID int64) bool {
	return r.admins.Contains(userID)
}

// PerUser is the budget shared by every update of one user.
func (r *Rules) PerUser() Rule {
	return r.perUser
}

// ForCommand returns the dedicated rule of command, if it has one.
func (r *Rules) ForCommand(command string) (Rule, bool) {
	rule, ok := r.commands[command]
	return rule, ok
}

func parseRule(name string, raw config.RateLimitRule) (Rule, error) {
	window, err := time.ParseDuration(raw.Window)
	if err != nil {
		return Rule{}, fmt.Errorf("rate_limit %s: parse window %q: %w", name, raw.Window, err)
	}
	if raw.Limit <= 0 || window <= 0 {
		return Rule{}, fmt.Errorf("rate_limit %s: limit and window must be positive", name)
	}
	return Rule{Limit: raw.Limit, Window: window}, nil
}
