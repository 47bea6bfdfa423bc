package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/paramsync/internal/protocol"
)

func TestQueue_FIFO(t *testing.T) {
	q := newQueue()
	for i := 0; i < 100; i++ {
		q.Push(protocol.EncoderChange{EncoderID: i})
	}
	require.Equal(t, 100, q.Len())

	for i := 0; i < 100; i++ {
		msg, ok := q.Pop(context.Background(), time.Millisecond)
		require.True(t, ok)
		assert.Equal(t, i, msg.(protocol.EncoderChange).EncoderID)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueue_PopTimesOut(t *testing.T) {
	q := newQueue()

	start := time.Now()
	_, ok := q.Pop(context.Background(), 20*time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestQueue_PopWakesOnPush(t *testing.T) {
	q := newQueue()

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Push(protocol.Heartbeat{})
	}()

	msg, ok := q.Pop(context.Background(), 5*time.Second)
	require.True(t, ok)
	assert.Equal(t, protocol.TypeHeartbeat, msg.MessageType())
}

func TestQueue_PopCancelled(t *testing.T) {
	q := newQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := q.Pop(ctx, 5*time.Second)
	assert.False(t, ok)
}
