package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingQueueWrapsAround(t *testing.T) {
	rq := NewRingQueue[uint64](2)
	require.True(t, rq.IsEmpty())

	require.NoError(t, rq.Enqueue(1))
	require.NoError(t, rq.Enqueue(2))
	assert.ErrorIs(t, rq.Enqueue(3), ErrQueueFull)

	v, err := rq.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)

	require.NoError(t, rq.Enqueue(3))
	front, err := rq.Peek()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), front)
	assert.Equal(t, 2, rq.Len())

	rq.Dequeue()
	v, _ = rq.Dequeue()
	assert.Equal(t, uint64(3), v)

	_, err = rq.Dequeue()
	assert.ErrorIs(t, err, ErrQueueEmpty)
}
