// Package lock provides the per-analysis run lock that keeps two processes
// from running the same analysis at once.
package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrLocked is returned by Acquire when another holder owns the key.
var ErrLocked = eris.New("lock: already held")

// ReleaseFunc releases a held lock. Releasing a lock that expired or was
// taken over is a no-op.
type ReleaseFunc func(ctx context.Context) error

// Locker acquires named locks with a TTL.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, error)
}

// Nop is a Locker that always succeeds. It is used when Redis is not
// configured and the store's state guard is the only protection.
type Nop struct{}

// Acquire implements Locker.
func (Nop) Acquire(context.Context, string, time.Duration) (ReleaseFunc, error) {
	return func(context.Context) error { return nil }, nil
}

// releaseScript deletes the key only while it still holds our token.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// Redis implements Locker with SET NX and a token-checked release.
type Redis struct {
	client   redis.Cmdable
	prefix   string
	newToken func() string
}

// NewRedis creates a Redis locker. Keys are stored as prefix+key.
func NewRedis(client redis.Cmdable, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix, newToken: uuid.NewString}
}

// NewRedisClient opens a go-redis client for addr.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// Acquire implements Locker.
func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, error) {
	k := r.prefix + key
	token := r.newToken()

	ok, err := r.client.SetNX(ctx, k, token, ttl).Result()
	if err != nil {
		return nil, eris.Wrapf(err, "lock: acquire %s", k)
	}
	if !ok {
		return nil, eris.Wrapf(ErrLocked, "lock: acquire %s", k)
	}
	zap.L().Debug("lock: acquired", zap.String("key", k), zap.Duration("ttl", ttl))

	return func(ctx context.Context) error {
		n, err := r.client.Eval(ctx, releaseScript, []string{k}, token).Int64()
		if err != nil {
			return eris.Wrapf(err, "lock: release %s", k)
		}
		if n == 0 {
			zap.L().Warn("lock: released after expiry", zap.String("key", k))
		}
		return nil
	}, nil
}
