package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/domain"
)

// enqueueScript pushes a job id only while the list is below capacity.
// Returns 1 when pushed, 0 when full.
var enqueueScript = redis.NewScript(`
local cap = tonumber(ARGV[2])
if cap > 0 and redis.call("LLEN", KEYS[1]) >= cap then
	return 0
end
redis.call("LPUSH", KEYS[1], ARGV[1])
return 1
`)

// Queue implements ports.JobQueue on a Redis list (LPUSH / BRPOP)
type Queue struct {
	client   redis.UniversalClient
	key      string
	capacity int
	block    time.Duration
	logger   *zap.Logger
}

// NewQueue creates a Redis backed queue. capacity <= 0 means unbounded.
func NewQueue(client redis.UniversalClient, key string, capacity int, logger *zap.Logger) *Queue {
	return &Queue{
		client:   client,
		key:      key,
		capacity: capacity,
		block:    time.Second,
		logger:   logger,
	}
}

// Enqueue pushes a job id, returning domain.ErrQueueFull at capacity
func (q *Queue) Enqueue(ctx context.Context, jobID string) error {
	pushed, err := enqueueScript.Run(ctx, q.client, []string{q.key}, jobID, q.capacity).Int()
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	if pushed == 0 {
		return domain.ErrQueueFull
	}

	q.logger.Debug("job enqueued",
		zap.String("job_id", jobID),
		zap.String("queue", q.key))
	return nil
}

// Dequeue blocks until a job id is available or ctx is done.
// BRPOP is issued with a short timeout so cancellation is noticed promptly.
func (q *Queue) Dequeue(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		result, err := q.client.BRPop(ctx, q.block, q.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", fmt.Errorf("failed to dequeue job: %w", err)
		}

		// result is [key, value]
		if len(result) == 2 {
			return result[1], nil
		}
	}
}

// Len returns the number of waiting job ids
func (q *Queue) Len(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return int(n), nil
}
