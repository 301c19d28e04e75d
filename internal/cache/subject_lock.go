package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dellplatz/diag-backend/internal/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotAcquired is returned when another holder keeps the lock past the wait.
var ErrLockNotAcquired = errors.New("lock not acquired")

const lockRetryInterval = 50 * time.Millisecond

// Deletes the key only while it still holds our token, so an expired lock
// taken over by another holder is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SubjectLock serializes writes of one subject across all API instances.
type SubjectLock struct {
	rdb  *redis.Client
	ttl  time.Duration
	wait time.Duration
}

// NewSubjectLock creates a SubjectLock. ttl bounds how long a crashed holder
// can block a subject; wait bounds how long Acquire polls.
func NewSubjectLock(rdb *redis.Client, ttl, wait time.Duration) *SubjectLock {
	return &SubjectLock{rdb: rdb, ttl: ttl, wait: wait}
}

// Acquire blocks until the subject's lock is held, the wait elapses, or ctx
// is done. The returned release func must be called exactly once.
func (l *SubjectLock) Acquire(ctx context.Context, subjectID string) (func(), error) {
	key := config.CacheKey.SubjectLockKey(subjectID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire subject lock: %w", err)
		}
		if ok {
			return func() {
				// Release must not depend on the request context, which may be cancelled.
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = releaseScript.Run(ctx, l.rdb, []string{key}, token).Err()
			}, nil
		}

		if time.Now().After(deadline) {
			return nil, ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}
