// Package memory provides the in-process ingest queue.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/cerebro/internal/paper"
)

// ErrClosed is returned once the queue is closed and drained.
var ErrClosed = paper.ErrQueueClosed

// Queue is an unbounded FIFO of ingest work with context-aware dequeue.
// Enqueue never blocks.
type Queue struct {
	mu     sync.Mutex
	items  []paper.QueueItem
	notify chan struct{}
	closed bool
}

// NewQueue constructs an empty queue.
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Enqueue appends an item to the tail of the queue.
func (q *Queue) Enqueue(ctx context.Context, item paper.QueueItem) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("enqueue canceled: %w", err)
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.signal()
	return nil
}

// Dequeue pops the head of the queue, blocking until an item arrives, the
// queue is closed and empty, or ctx ends.
func (q *Queue) Dequeue(ctx context.Context) (paper.QueueItem, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = paper.QueueItem{}
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				q.signal()
			}
			return item, nil
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return paper.QueueItem{}, ErrClosed
		}

		select {
		case <-ctx.Done():
			return paper.QueueItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
		case <-q.notify:
		}
	}
}

// Len reports how many items are waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting new work. Waiting items can still be dequeued.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
