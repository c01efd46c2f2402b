package memory

import (
	"context"
	"sync"

	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/domain"
)

// Queue implements ports.JobQueue with a bounded buffered channel
type Queue struct {
	jobs   chan string
	mu     sync.RWMutex
	closed bool
}

// NewQueue creates a queue that holds at most capacity job ids
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{jobs: make(chan string, capacity)}
}

// Enqueue adds a job id without blocking. A full queue returns domain.ErrQueueFull.
func (q *Queue) Enqueue(ctx context.Context, jobID string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return domain.ErrQueueClosed
	}

	select {
	case q.jobs <- jobID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return domain.ErrQueueFull
	}
}

// Dequeue blocks until a job id is available, the queue is closed or ctx is done
func (q *Queue) Dequeue(ctx context.Context) (string, error) {
	select {
	case jobID, ok := <-q.jobs:
		if !ok {
			return "", domain.ErrQueueClosed
		}
		return jobID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Len returns the number of waiting job ids
func (q *Queue) Len(ctx context.Context) (int, error) {
	return len(q.jobs), nil
}

// Close stops accepting jobs. Waiting ids can still be drained.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	return nil
}
