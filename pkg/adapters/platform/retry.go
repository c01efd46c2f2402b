package platform

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/ports"
)

// Retrying retries failed sync calls on adapters that deduplicate by idempotency key
type Retrying struct {
	next     ports.SyncAdapter
	attempts int
	delay    time.Duration
	logger   *zap.Logger
}

// NewRetrying wraps next. attempts counts the first call; values below 1 become 1.
func NewRetrying(next ports.SyncAdapter, attempts int, delay time.Duration, logger *zap.Logger) *Retrying {
	if attempts < 1 {
		attempts = 1
	}
	return &Retrying{
		next:     next,
		attempts: attempts,
		delay:    delay,
		logger:   logger,
	}
}

// Sync calls the wrapped adapter, retrying with a linear backoff when it is idempotent
func (r *Retrying) Sync(ctx context.Context, req ports.SyncRequest) (*ports.SyncResult, error) {
	attempts := 1
	if idem, ok := r.next.(ports.IdempotentSyncAdapter); ok && idem.Idempotent() {
		attempts = r.attempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := r.next.Sync(ctx, req)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == attempts || ctx.Err() != nil {
			break
		}

		r.logger.Warn("sync attempt failed, retrying",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.Int("attempt", attempt),
			zap.Error(err))

		timer := time.NewTimer(r.delay * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("sync cancelled after %d attempts: %w", attempt, lastErr)
		case <-timer.C:
		}
	}

	if attempts > 1 {
		return nil, fmt.Errorf("sync failed after %d attempts: %w", attempts, lastErr)
	}
	return nil, lastErr
}

// Name reports the wrapped adapter's name for metrics
func (r *Retrying) Name() string {
	return ports.SyncAdapterName(r.next)
}
