package event

import "sync"

// Queue is a typed FIFO owned by the tick goroutine. Producers push during one
// phase and a later phase (or the next tick) drains it, so delivery order is
// fixed by the phase layout instead of subscription order.
type Queue[T any] struct {
	items []T
}

func NewQueue[T any](capacity int) *Queue[T] {
	return &Queue[T]{items: make([]T, 0, capacity)}
}

func (q *Queue[T]) Push(v T) {
	q.items = append(q.items, v)
}

func (q *Queue[T]) Len() int { return len(q.items) }

// Drain hands every queued item to fn in FIFO order and empties the queue.
// Items pushed by fn are delivered in the same call.
func (q *Queue[T]) Drain(fn func(T)) {
	for i := 0; i < len(q.items); i++ {
		fn(q.items[i])
	}
	clear(q.items)
	q.items = q.items[:0]
}

// Inbox is a Queue that may be pushed from any goroutine, used for work
// produced by transport callbacks. Only the tick goroutine drains it.
type Inbox[T any] struct {
	mu    sync.Mutex
	items []T
	spare []T
}

func NewInbox[T any](capacity int) *Inbox[T] {
	return &Inbox[T]{
		items: make([]T, 0, capacity),
		spare: make([]T, 0, capacity),
	}
}

func (b *Inbox[T]) Push(v T) {
	b.mu.Lock()
	b.items = append(b.items, v)
	b.mu.Unlock()
}

func (b *Inbox[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Drain swaps the buffers under the lock and delivers outside it, so pushes
// racing with a drain land in the next drain.
func (b *Inbox[T]) Drain(fn func(T)) {
	b.mu.Lock()
	batch := b.items
	b.items = b.spare[:0]
	b.mu.Unlock()

	for _, v := range batch {
		fn(v)
	}
	clear(batch)

	b.mu.Lock()
	b.spare = batch[:0]
	b.mu.Unlock()
}
