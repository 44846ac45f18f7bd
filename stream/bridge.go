package stream

import (
	"sync"

	"github.com/kleeedolinux/stream.go/stream/transport"
)

// queue is an unbounded FIFO. Push and pop never block. It is meant for one
// consumer; concurrent pops are safe but their interleaving is unspecified.
type queue[T any] struct {
	mu     sync.Mutex
	items  []T
	head   int
	closed bool

	// ready holds a token whenever a push may have left items to pop.
	ready chan struct{}
}

// eventQueue hands events from the reader goroutine to Poll.
type eventQueue = queue[StreamEvent]

// frameQueue holds outbound frames until the writer drains them.
type frameQueue = queue[transport.Frame]

func newQueue[T any]() *queue[T] {
	return &queue[T]{
		items: make([]T, 0, 64),
		ready: make(chan struct{}, 1),
	}
}

func newEventQueue() *eventQueue {
	return newQueue[StreamEvent]()
}

func newFrameQueue() *frameQueue {
	return newQueue[transport.Frame]()
}

// push appends v. It reports false once the queue is closed.
func (q *queue[T]) push(v T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}

	if q.head > 0 && q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head >= 1024 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}

	q.items = append(q.items, v)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

func (q *queue[T]) pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.head == len(q.items) {
		return zero, false
	}

	v := q.items[q.head]
	q.items[q.head] = zero
	q.head++

	return v, true
}

func (q *queue[T]) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items) - q.head
}

// close rejects further pushes. Items already queued stay poppable.
func (q *queue[T]) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
}
