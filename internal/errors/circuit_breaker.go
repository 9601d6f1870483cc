package errors

import (
	"errors"
	"sync"
	"time"
)

// BreakerSettings tunes when a CircuitBreaker opens and how it recovers.
type BreakerSettings struct {
	// ErrorThreshold is the failure ratio that opens the circuit once MinRequests were seen.
	ErrorThreshold float64
	MinRequests    int
	// Cooldown is how long the circuit stays open before probing again.
	Cooldown            time.Duration
	HalfOpenMaxRequests int
}

// DefaultBreakerSettings suits the Telegram Bot API.
var DefaultBreakerSettings = BreakerSettings{
	ErrorThreshold:      0.5,
	MinRequests:         10,
	Cooldown:            30 * time.Second,
	HalfOpenMaxRequests: 3,
}

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

var (
	// ErrCircuitOpen is returned without calling through while the circuit is open.
	ErrCircuitOpen             = errors.New("circuit breaker is open")
	errHalfOpenTooManyRequests = errors.New("too many requests in half-open")
)

// CircuitBreaker stops calling a failing dependency for a cooldown period.
type CircuitBreaker struct {
	settings BreakerSettings
	now      func() time.Time
	onChange func(from, to State)

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	requests  int
	openedAt  time.Time
}

// NewCircuitBreaker builds a closed breaker; zero settings fall back to DefaultBreakerSettings.
func NewCircuitBreaker(settings ...BreakerSettings) *CircuitBreaker {
	s := DefaultBreakerSettings
	if len(settings) > 0 {
		s = settings[0]
	}

	return &CircuitBreaker{settings: s, now: time.Now, state: StateClosed}
}

// OnStateChange registers a callback invoked on every state change while the breaker lock is held.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onChange = fn
}

// Call runs fn unless the circuit is open.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if fn == nil {
		return nil
	}

	cb.mu.Lock()
	if cb.state == StateOpen {
		if cb.now().Sub(cb.openedAt) < cb.settings.Cooldown {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.setStateLocked(StateHalfOpen)
	}

	if cb.state == StateHalfOpen && cb.requests >= cb.settings.HalfOpenMaxRequests {
		cb.mu.Unlock()
		return errHalfOpenTooManyRequests
	}
	cb.requests++
	cb.mu.Unlock()

	callErr := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if callErr != nil {
		cb.failures++
		if cb.state == StateHalfOpen || cb.tripped() {
			cb.setStateLocked(StateOpen)
		}
		return callErr
	}

	cb.successes++
	if cb.state == StateHalfOpen && cb.successes >= cb.settings.HalfOpenMaxRequests {
		cb.setStateLocked(StateClosed)
	}
	return nil
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) tripped() bool {
	if cb.requests < cb.settings.MinRequests {
		return false
	}
	return float64(cb.failures)/float64(cb.requests) >= cb.settings.ErrorThreshold
}

func (cb *CircuitBreaker) setStateLocked(next State) {
	prev := cb.state
	cb.state = next
	cb.failures, cb.successes, cb.requests = 0, 0, 0
	if next == StateOpen {
		cb.openedAt = cb.now()
	}
	if cb.onChange != nil && prev != next {
		cb.onChange(prev, next)
	}
}
