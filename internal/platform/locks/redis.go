// Package locks provides short-lived distributed locks backed by Redis.
package locks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/services"
)

const defaultLockTTL = 30 * time.Second

// releaseScript deletes the key only while it still holds the caller's token, so an expired lock
// re-acquired by another process is left alone.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// ErrLockLost is returned by release when the lock expired before it was released.
var ErrLockLost = errors.New("locks: lock expired before release")

// RedisLocker implements services.Locker with SET NX PX and a token-checked release.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	token  func() string
}

var _ services.Locker = (*RedisLocker)(nil)

// Option customises a RedisLocker.
type Option func(*RedisLocker)

// WithKeyPrefix namespaces every lock key.
func WithKeyPrefix(prefix string) Option {
	return func(l *RedisLocker) {
		l.prefix = strings.TrimSpace(prefix)
	}
}

// NewRedisLocker constructs a locker over client.
func NewRedisLocker(client redis.UniversalClient, opts ...Option) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("locks: redis client is required")
	}
	l := &RedisLocker{
		client: client,
		token:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l, nil
}

// Acquire tries once to take key for ttl. acquired is false when another holder owns it.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false, errors.New("locks: key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	fullKey := l.prefix + key
	token := l.token()

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("locks: acquire %s: %w", fullKey, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		deleted, err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Int()
		if err != nil {
			return fmt.Errorf("locks: release %s: %w", fullKey, err)
		}
		if deleted == 0 {
			return fmt.Errorf("%w: %s", ErrLockLost, fullKey)
		}
		return nil
	}
	return release, true, nil
}

// Ping reports whether Redis is reachable. It backs the readiness probe.
func (l *RedisLocker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
