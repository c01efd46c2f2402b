package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/domain"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue(3)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "a"))
	require.NoError(t, q.Enqueue(ctx, "b"))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	first, err := q.Dequeue(ctx)
	require.NoError(t, err)
	second, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, []string{first, second})
}

func TestQueue_Backpressure(t *testing.T) {
	q := NewQueue(1)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "a"))
	assert.ErrorIs(t, q.Enqueue(ctx, "b"), domain.ErrQueueFull)
}

func TestQueue_DequeueHonoursContext(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_Close(t *testing.T) {
	q := NewQueue(2)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "a"))
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.Enqueue(ctx, "b"), domain.ErrQueueClosed)

	id, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", id)

	_, err = q.Dequeue(ctx)
	assert.ErrorIs(t, err, domain.ErrQueueClosed)
}
