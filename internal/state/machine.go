package state

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrInvalidTransition indicates that a requested FSM transition is not allowed.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrStateNotFound indicates that the user has no ledger record to hold a state.
	ErrStateNotFound = errors.New("user state not found")
	// ErrStateLocked indicates that a concurrent operation already holds the lock.
	ErrStateLocked = errors.New("state is locked, try again later")
)

var transitionRecorder = func(from, to string) {}

// RegisterTransitionRecorder allows external packages to observe FSM transitions.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}
	transitionRecorder = recorder
}

// RecordTransition reports a transition that was applied outside the machine, e.g. inside a ledger transaction.
func RecordTransition(from, to State) {
	transitionRecorder(string(from), string(to))
}

// StateMachine describes the operations supported by the FSM controller.
type StateMachine interface {
	// Current returns the user's state; ErrStateNotFound for unregistered users.
	Current(ctx context.Context, userID int64) (State, error)
	TransitionTo(ctx context.Context, userID int64, newState State) error
	Reset(ctx context.Context, userID int64) error
	CountByState(ctx context.Context) (map[State]int, error)
}

type machine struct {
	storage Storage
	locks   *userLocks
	log     *slog.Logger
	now     func() time.Time
}

// NewStateMachine creates a FSM controller on top of storage.
// Transitions are serialized per user through a Redis lock; a nil client disables locking.
func NewStateMachine(storage Storage, log *slog.Logger, redisClient *redis.Client) StateMachine {
	if log == nil {
		log = slog.Default()
	}

	return &machine{
		storage: storage,
		locks:   newUserLocks(redisClient),
		log:     log,
		now:     time.Now,
	}
}

func (m *machine) Current(ctx context.Context, userID int64) (State, error) {
	stored, err := m.storage.GetState(ctx, userID)
	if err != nil {
		return "", err
	}
	if stored == nil || stored.CurrentState == "" {
		return StateIdle, nil
	}
	return stored.CurrentState, nil
}

func (m *machine) CountByState(ctx context.Context) (map[State]int, error) {
	return m.storage.CountByState(ctx)
}

// TransitionTo moves the user to next if the edge exists.
func (m *machine) TransitionTo(ctx context.Context, userID int64, next State) error {
	release, err := m.locks.acquire(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrStateLocked) {
			m.log.Error("acquire state lock", "user_id", userID, "error", err)
		}
		return err
	}
	defer func() {
		if err := release(); err != nil {
			m.log.Error("release state lock", "user_id", userID, "error", err)
		}
	}()

	current, err := m.Current(ctx, userID)
	if err != nil {
		return err
	}
	if !IsTransitionAllowed(current, next) {
		m.log.Warn("invalid state transition", "user_id", userID, "from", current, "to", next)
		return ErrInvalidTransition
	}

	err = m.storage.SetState(ctx, userID, &UserState{
		UserID:       userID,
		CurrentState: next,
		UpdatedAt:    m.now().UTC(),
	})
	if err != nil {
		return err
	}

	RecordTransition(current, next)
	return nil
}

// Reset returns the user to idle under the lock.
func (m *machine) Reset(ctx context.Context, userID int64) error {
	return m.TransitionTo(ctx, userID, StateIdle)
}
