// Package queue carries evaluation jobs from a catalog load to the worker pool.
package queue

import (
	"context"
	"sync"

	"github.com/okian/restock/internal/domain/model"
	"github.com/okian/restock/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Outcome is the result of evaluating one job.
type Outcome struct {
	Seq  int
	Item model.EnrichedItem
	Err  error
}

// Job asks a worker to evaluate Item and send the Outcome on Reply.
// Seq is the item's position in the submitted catalog.
type Job struct {
	Seq   int
	Item  model.CatalogItem
	Reply chan<- Outcome
}

// Queue provides bounded enqueue and channel-based dequeue semantics.
type Queue interface {
	// TryEnqueue adds j without blocking. It returns ErrQueueFull or
	// ErrQueueClosed when j was not accepted.
	TryEnqueue(ctx context.Context, j Job) error

	// Enqueue blocks until j is accepted, ctx ends or the queue closes.
	Enqueue(ctx context.Context, j Job) error

	// Dequeue returns the channel workers receive jobs from. It is closed
	// when the queue is closed.
	Dequeue(ctx context.Context) <-chan Job

	// Len returns the number of pending jobs.
	Len(ctx context.Context) int

	// Close stops accepting jobs. Pending jobs stay readable.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue with a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	done     chan struct{}
	doneOnce sync.Once
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)
	q.done = make(chan struct{})

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0)
	return q
}

// TryEnqueue adds j if there is room.
func (q *InMemoryQueue) TryEnqueue(ctx context.Context, j Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.refused("closed")
		return ErrQueueClosed
	}
	select {
	case q.jobs <- j:
		q.accepted()
		return nil
	case <-ctx.Done():
		q.refused("context_cancelled")
		return ctx.Err()
	default:
		q.refused("queue_full")
		return ErrQueueFull
	}
}

// Enqueue waits for room.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.refused("closed")
		return ErrQueueClosed
	}
	select {
	case q.jobs <- j:
		q.accepted()
		return nil
	case <-q.done:
		q.refused("closed")
		return ErrQueueClosed
	case <-ctx.Done():
		q.refused("context_cancelled")
		return ctx.Err()
	}
}

func (q *InMemoryQueue) accepted() {
	metrics.RecordQueueEnqueue()
	q.observe()
}

func (q *InMemoryQueue) refused(reason string) {
	metrics.RecordQueueEnqueueError()
	metrics.RecordErrorByComponent("queue", reason)
}

func (q *InMemoryQueue) observe() {
	n := len(q.jobs)
	metrics.UpdateQueueSize(n)
	metrics.UpdateQueueUtilization(float64(n) / float64(q.capacity))
}

// Dequeue returns the receive side of the job channel.
func (q *InMemoryQueue) Dequeue(_ context.Context) <-chan Job {
	return q.jobs
}

// Len returns the number of pending jobs.
func (q *InMemoryQueue) Len(_ context.Context) int {
	q.observe()
	return len(q.jobs)
}

// Close signals blocked producers, then closes the job channel.
func (q *InMemoryQueue) Close() error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return nil
	}

	// Wake producers blocked in Enqueue so they release the read lock.
	q.doneOnce.Do(func() { close(q.done) })

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
