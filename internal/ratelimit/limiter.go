// Package ratelimit throttles chat updates per user and per sensitive command.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const keyPrefix = "ratelimit:"

// Rule allows Limit hits per sliding Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Result captures the outcome of a rate-limit evaluation.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter records a hit for key and reports whether it fits the rule.
type Limiter interface {
	Allow(ctx context.Context, key string, rule Rule) (*Result, error)
}

// ErrLimitExceeded indicates the rate limit has been reached for the key.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// UserKey scopes the global per-user budget.
func UserKey(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

// CommandKey scopes the budget of one command for one user.
func CommandKey(command string, userID int64) string {
	return fmt.Sprintf("cmd:%s:%d", command, userID)
}
