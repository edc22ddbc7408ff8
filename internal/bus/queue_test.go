package bus

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFullAndClosed(t *testing.T) {
	var drops atomic.Int64
	q := NewQueue[int](2, func() { drops.Add(1) })

	require.NoError(t, q.TryPublish(1))
	require.NoError(t, q.TryPublish(2))
	assert.ErrorIs(t, q.TryPublish(3), ErrQueueFull)
	assert.Equal(t, int64(1), drops.Load())
	assert.Equal(t, 2, q.Len())

	q.Close()
	q.Close()
	assert.ErrorIs(t, q.TryPublish(4), ErrQueueClosed)

	var got []int
	q.Run(context.Background(), func(v int) { got = append(got, v) })
	assert.Equal(t, []int{1, 2}, got)
}

func TestQueueRecvContext(t *testing.T) {
	q := NewQueue[string](1, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, ok := q.Recv(ctx)
	assert.False(t, ok)

	require.NoError(t, q.TryPublish("a"))
	v, ok := q.Recv(context.Background())
	require.True(t, ok)
	assert.Equal(t, "a", v)
}
