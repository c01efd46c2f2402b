package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the key only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker implements ports.Locker with Redis leases (SET NX PX).
// A lease expires after ttl even if the holder dies.
type Locker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	retry  time.Duration
	logger *zap.Logger
}

// NewLocker creates a Redis locker
func NewLocker(client redis.UniversalClient, prefix string, ttl time.Duration, logger *zap.Logger) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		retry:  25 * time.Millisecond,
		logger: logger,
	}
}

// Lock polls until the lease for key is acquired or ctx is done
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := l.lockKey(key)
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := releaseScript.Run(ctx, l.client, []string{lockKey}, token).Err(); err != nil {
			l.logger.Warn("failed to release lock",
				zap.String("key", lockKey),
				zap.Error(err))
		}
	}, nil
}

func (l *Locker) lockKey(key string) string {
	return fmt.Sprintf("%s:lock:%s", l.prefix, key)
}
