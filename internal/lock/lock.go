// Package lock provides the per-connection mutual exclusion that
// guarantees at most one stage invocation runs for a connection at a time,
// system-wide. Acquisition fails fast; a failed acquire means "skip this
// run", never an error.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type Locker interface {
	// Acquire returns an ownership token when the lock was taken, or
	// ok=false when another holder is active. It never blocks or retries.
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	// Release is a no-op when the token no longer matches: the lock expired
	// and may already belong to someone else, so deleting by key alone
	// would steal it.
	Release(ctx context.Context, key, token string) error
}

// ConnectionKey is the lock key serializing all sync work for one
// connection, across both sync kinds.
func ConnectionKey(connectionID int64) string {
	return fmt.Sprintf("syncd:lock:connection:%d", connectionID)
}

type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquiring lock %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
		return fmt.Errorf("releasing lock %s: %w", key, err)
	}
	return nil
}
