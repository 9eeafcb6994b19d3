// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"fmt"
	"time"

	"telegram-max-bridge/internal/domain"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Locker is a best-effort distributed mutex. The dispatcher holds a per-link
// lock across the quota check / send / increment sequence so two deliveries
// for the same link cannot both spend the last quota slot. Locks for
// different links never contend.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

type RedisLocker struct {
	cli *redis.Client
}

var _ Locker = (*RedisLocker)(nil)

func NewLocker(c *Client) *RedisLocker {
	return &RedisLocker{cli: c.cli}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	for i := 0; i < 5; i++ { // 5 tries
		ok, err := l.cli.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			continue
		}
		if ok {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(50 * time.Millisecond): // wait before retrying
		}
	}
	return "", domain.ErrLockNotAcquired
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := luaUnlock.Run(ctx, l.cli, []string{key}, token).Result()
	return err
}

// LinkLockKey scopes the dispatch mutex to one link.
func LinkLockKey(linkID string) string {
	return fmt.Sprintf("dispatch_lock:%s", linkID)
}

// PruneLockKey guards the retention sweep so one replica prunes at a time.
func PruneLockKey() string {
	return "retention_prune_lock"
}
