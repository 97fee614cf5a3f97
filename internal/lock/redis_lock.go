package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prohmpiriya/concert-booking/pkg/logger"
	pkgredis "github.com/prohmpiriya/concert-booking/pkg/redis"
	"go.uber.org/zap"
)

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

var releaseLua = pkgredis.NewScript("lock_release", releaseScript)

// RedisLockerConfig holds distributed lock settings
type RedisLockerConfig struct {
	// Prefix is prepended to every key
	Prefix string
	// TTL bounds how long a crashed holder keeps the lock
	TTL time.Duration
	// RetryInterval is the pause between acquisition attempts
	RetryInterval time.Duration
}

// RedisLocker is a single-instance Redis lock (SET NX PX plus a
// token-checked release), for running several service replicas against
// one seat store
type RedisLocker struct {
	client   *pkgredis.Client
	config   *RedisLockerConfig
	newToken func() string
}

// NewRedisLocker creates a Redis-backed locker
func NewRedisLocker(client *pkgredis.Client, cfg *RedisLockerConfig) *RedisLocker {
	c := RedisLockerConfig{Prefix: "lock:", TTL: 10 * time.Second, RetryInterval: 10 * time.Millisecond}
	if cfg != nil {
		if cfg.Prefix != "" {
			c.Prefix = cfg.Prefix
		}
		if cfg.TTL > 0 {
			c.TTL = cfg.TTL
		}
		if cfg.RetryInterval > 0 {
			c.RetryInterval = cfg.RetryInterval
		}
	}
	return &RedisLocker{
		client:   client,
		config:   &c,
		newToken: func() string { return uuid.New().String() },
	}
}

// Lock polls until the key is acquired or ctx is done
func (l *RedisLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	redisKey := l.config.Prefix + key
	token := l.newToken()

	for {
		ok, err := l.client.Redis().SetNX(ctx, redisKey, token, l.config.TTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrLockTimeout
			}
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(l.config.RetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ErrLockTimeout
		case <-timer.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// release even if the request context is already gone
			releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := l.client.Run(releaseCtx, releaseLua, []string{redisKey}, token).Err(); err != nil {
				logger.Warn("failed to release redis lock", zap.String("key", redisKey), zap.Error(err))
			}
		})
	}, nil
}

var _ Locker = (*RedisLocker)(nil)
