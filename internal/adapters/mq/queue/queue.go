// Package queue carries pipeline triggers from request handlers to the
// background sweeper.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/helix/pkg/metrics"
)

const defaultCapacity = 1024

// Trigger asks the sweeper to run the pipeline for one employee, or for
// everyone when EmployeeID is model.AllEmployees.
type Trigger struct {
	EmployeeID string    `json:"employee_id"`
	Reason     string    `json:"reason"`
	At         time.Time `json:"at"`
}

// Queue provides non-blocking enqueue and channel-based dequeue.
type Queue interface {
	Enqueue(ctx context.Context, t Trigger) error
	Dequeue() <-chan Trigger
	Len() int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue on a buffered channel.
type InMemoryQueue struct {
	triggers chan Trigger
	capacity int

	mu     sync.RWMutex
	closed bool
}

var _ Queue = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates a bounded queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.triggers = make(chan Trigger, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds t without blocking. It fails with ErrFull when the buffer is
// full and ErrClosed after Close.
func (q *InMemoryQueue) Enqueue(ctx context.Context, t Trigger) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueRejected()
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueRejected()
		return fmt.Errorf("enqueue %s: %w", t.EmployeeID, err)
	}

	select {
	case q.triggers <- t:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.triggers))
		return nil
	default:
		metrics.RecordQueueRejected()
		return ErrFull
	}
}

// Dequeue returns the receive side. It is closed by Close once drained.
func (q *InMemoryQueue) Dequeue() <-chan Trigger {
	return q.triggers
}

// Len returns the number of buffered triggers.
func (q *InMemoryQueue) Len() int {
	n := len(q.triggers)
	metrics.UpdateQueueSize(n)
	return n
}

// Close stops accepting triggers. Buffered triggers remain readable.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.triggers)
	q.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
