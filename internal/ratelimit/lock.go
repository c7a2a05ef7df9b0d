package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

var ErrLockHeld = errors.New("lock_held")

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

type Locker struct {
	client *redis.Client
	script *redis.Script
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("lock client not configured")
	}
	if key == "" {
		return "", false, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *Locker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}

// Mutex serializes work on a key across replicas. The database row lock
// remains the source of truth; this keeps concurrent approvals from queueing
// on it.
type Mutex interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// NewMutex returns a redis-backed Mutex, or a no-op when redis is absent.
func NewMutex(client *redis.Client) Mutex {
	if client == nil {
		return noopMutex{}
	}
	return &redisMutex{locker: NewLocker(client)}
}

type redisMutex struct {
	locker *Locker
}

func (m *redisMutex) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token, ok, err := m.locker.TryLock(ctx, key, ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return func() {
		// Release must outlive a cancelled request, or the key stays held for ttl.
		_ = m.locker.Release(context.WithoutCancel(ctx), key, token)
	}, nil
}

type noopMutex struct{}

func (noopMutex) Acquire(context.Context, string, time.Duration) (func(), error) {
	return func() {}, nil
}
