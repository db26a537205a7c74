// Package queue provides the bounded, concurrency-safe buffer between
// producer call sites and the background delivery worker. It is the only
// shared mutable structure on the hot path: producers enqueue from many
// goroutines while the worker drains.
package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/arclight-ai/arclight-go/internal/event"
)

// ErrDropped is returned when a non-blocking enqueue refuses an item because
// the queue is at capacity. The new item is refused; queued items are never
// evicted.
var ErrDropped = errors.New("queue full, event dropped")

// fillRatio is the fraction of capacity at which the queue wakes the worker
// ahead of its flush interval.
const fillRatio = 0.5

// Queue is a bounded FIFO buffer of events. The zero value is not usable;
// construct with New.
type Queue struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	items    []event.Event
	capacity int
	blocking bool

	dropped atomic.Uint64
	wake    chan struct{}
}

// New creates a queue holding at most capacity events. When blocking is set,
// Enqueue waits for space instead of dropping; the default drop behavior is
// preferred because telemetry must never stall application logic.
func New(capacity int, blocking bool) *Queue {
	q := &Queue{
		capacity: capacity,
		blocking: blocking,
		wake:     make(chan struct{}, 1),
	}
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends an event. In the default non-blocking mode a full queue
// refuses the event, increments the drop counter, and returns ErrDropped.
// In blocking mode Enqueue waits for space or context cancellation.
func (q *Queue) Enqueue(ctx context.Context, ev event.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.capacity {
		if !q.blocking {
			q.dropped.Add(1)
			return ErrDropped
		}
		if err := q.waitForSpace(ctx); err != nil {
			return err
		}
	}

	q.items = append(q.items, ev)
	if float64(len(q.items)) >= float64(q.capacity)*fillRatio {
		q.notify()
	}
	return nil
}

// TryEnqueue appends an event without ever blocking, regardless of the
// configured mode. The delivery worker uses it to return undelivered events
// to the queue; blocking there would deadlock, since the worker is the only
// drainer.
func (q *Queue) TryEnqueue(ev event.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.capacity {
		q.dropped.Add(1)
		return ErrDropped
	}
	q.items = append(q.items, ev)
	return nil
}

// waitForSpace blocks (with q.mu held) until the queue has room or ctx is
// done. A watcher goroutine converts cancellation into a broadcast so the
// cond wait can observe it.
func (q *Queue) waitForSpace(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.notFull.Broadcast()
	})
	defer stop()

	for len(q.items) >= q.capacity {
		if err := ctx.Err(); err != nil {
			return err
		}
		q.notFull.Wait()
	}
	return nil
}

// Drain atomically removes and returns all queued events in FIFO order.
func (q *Queue) Drain() []event.Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	q.notFull.Broadcast()
	return items
}

// Len returns the current number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns the total number of events refused at enqueue time.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// ResetDropped clears the drop counter. Test support.
func (q *Queue) ResetDropped() {
	q.dropped.Store(0)
}

// Wake signals when the queue crosses its urgency threshold. The channel
// carries at most one pending signal.
func (q *Queue) Wake() <-chan struct{} {
	return q.wake
}

func (q *Queue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
