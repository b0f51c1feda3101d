package utils

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"fiat-checkout/internal/status"
)

// RedLocker provides per-resource distributed mutexes over Redis. A held
// mutex survives at most its TTL; a worker that outlives the TTL loses
// exclusivity, which the pipeline accepts by sizing the TTL to its full
// timeout budget.
type RedLocker struct {
	rs *redsync.Redsync
}

func NewRedLocker(client *redis.Client) *RedLocker {
	return &RedLocker{rs: redsync.New(goredis.NewPool(client))}
}

// Acquire takes the mutex for key with a single attempt. A resource that is
// already locked by another worker returns status.ErrLockNotAcquired.
func (l *RedLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	mu := l.rs.NewMutex(
		"lock:"+key,
		redsync.WithExpiry(ttl),
		redsync.WithTries(1),
	)

	if err := mu.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.As(err, &taken) {
			return nil, status.ErrLockNotAcquired
		}
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}

	release := func() {
		// Unlock with a fresh context: the pipeline context may already be
		// cancelled and the lock must still be released.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if ok, err := mu.UnlockContext(unlockCtx); !ok || err != nil {
			log.Printf("release lock %s: ok=%v err=%v", key, ok, err)
		}
	}

	return release, nil
}
