package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/paramsync/internal/protocol"
)

// queue is an unbounded FIFO with one producer (the serial reader) and one
// consumer (the forwarder). Push never blocks.
type queue struct {
	mu     sync.Mutex
	items  []protocol.Message
	signal chan struct{}
}

func newQueue() *queue {
	return &queue{signal: make(chan struct{}, 1)}
}

// Push appends msg and wakes the consumer.
func (q *queue) Push(msg protocol.Message) {
	q.mu.Lock()
	q.items = append(q.items, msg)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Pop returns the oldest message, waiting up to timeout for one to arrive.
// It returns false on timeout or when ctx is done.
func (q *queue) Pop(ctx context.Context, timeout time.Duration) (protocol.Message, bool) {
	if msg, ok := q.tryPop(); ok {
		return msg, true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, false
		case <-timer.C:
			return q.tryPop()
		case <-q.signal:
			if msg, ok := q.tryPop(); ok {
				return msg, true
			}
		}
	}
}

func (q *queue) tryPop() (protocol.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}
	msg := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return msg, true
}

// Len returns the number of queued messages.
func (q *queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
