package state

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockKeyPattern = "withdrawal:lock:%d"
	lockTTL        = 5 * time.Second
)

// unlockIfOwner deletes the lock only while it still carries our token,
// so an expired lock taken over by another request is left alone.
var unlockIfOwner = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type userLocks struct {
	client *redis.Client
}

func newUserLocks(client *redis.Client) *userLocks {
	return &userLocks{client: client}
}

func lockKey(userID int64) string {
	return fmt.Sprintf(lockKeyPattern, userID)
}

// acquire takes the per-user lock and returns the function that releases it.
func (l *userLocks) acquire(ctx context.Context, userID int64) (func() error, error) {
	if l.client == nil {
		return func() error { return nil }, nil
	}

	key := lockKey(userID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrStateLocked
	}

	return func() error {
		// the caller's ctx may already be cancelled
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		return unlockIfOwner.Run(releaseCtx, l.client, []string{key}, token).Err()
	}, nil
}
