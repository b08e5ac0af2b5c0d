package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Locker is a TTL-bounded mutual exclusion primitive shared across processes.
// Acquire never waits: false means someone else holds the key right now.
type Locker struct {
	rdb    *redis.Client
	holder string
}

func NewLocker(rdb *redis.Client) *Locker {
	return &Locker{rdb: rdb, holder: uuid.NewString()}
}

// Acquire sets key only if it is absent. A crashed holder's key expires after ttl.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.rdb.SetNX(ctx, key, l.holder, ttl).Result()
}

// Release clears key regardless of who holds it.
func (l *Locker) Release(ctx context.Context, key string) error {
	return l.rdb.Del(ctx, key).Err()
}
