package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// AdvisoryLocker implements ports.Locker with PostgreSQL session advisory locks.
// Each held lock pins one pooled connection until it is released.
type AdvisoryLocker struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAdvisoryLocker creates a locker on db
func NewAdvisoryLocker(db *sql.DB, logger *zap.Logger) *AdvisoryLocker {
	return &AdvisoryLocker{db: db, logger: logger}
}

// Lock blocks until the advisory lock for key is held or ctx is done
func (l *AdvisoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection for lock: %w", err)
	}

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock(hashtext($1))`, key); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to acquire advisory lock %s: %w", key, err)
	}

	return func() {
		// The lock must be released even when the caller's context is gone.
		if _, err := conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock(hashtext($1))`, key); err != nil {
			l.logger.Warn("failed to release advisory lock",
				zap.String("key", key),
				zap.Error(err))
		}
		_ = conn.Close()
	}, nil
}
