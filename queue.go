package trafficlight

import (
	"context"
	"sync"
)

// Queue hands the freshest value from any number of senders to a blocking
// receiver. It keeps a single slot: Send overwrites whatever has not been
// received yet, and Receive takes the most recently sent value and empties
// the slot.
//
// Queue is meant for a single consumer. When several goroutines receive
// concurrently, each sent value is delivered to exactly one of them and the
// others keep waiting for a later Send.
type Queue[T any] struct {
	mu    sync.Mutex
	value T
	full  bool
	ready chan struct{}
}

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{
		ready: make(chan struct{}, 1),
	}
}

// Send stores v as the latest value and wakes at most one waiting receiver.
// It never blocks beyond lock contention.
func (q *Queue[T]) Send(v T) {
	q.mu.Lock()
	q.value = v
	q.full = true
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
		// a wakeup is already pending
	}
}

// Receive blocks until a value is available and returns it.
func (q *Queue[T]) Receive() T {
	v, _ := q.ReceiveContext(context.Background())
	return v
}

// ReceiveContext blocks until a value is available or ctx is done.
func (q *Queue[T]) ReceiveContext(ctx context.Context) (T, error) {
	for {
		if v, ok := q.TryReceive(); ok {
			return v, nil
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-q.ready:
			// re-check: another receiver may have taken the value first
		}
	}
}

// TryReceive takes the latest value without blocking.
func (q *Queue[T]) TryReceive() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if !q.full {
		return zero, false
	}
	v := q.value
	q.value = zero
	q.full = false
	return v, true
}

// Len returns 1 if a value is waiting to be received, 0 otherwise.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return 1
	}
	return 0
}
