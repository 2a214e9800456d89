// Package eventbus fans dispatcher notices out to observers without ever
// blocking the publisher.
package eventbus

import "sync"

// DefaultBuffer is used by Subscribe when the requested size is not positive.
const DefaultBuffer = 8

type subscriber[T any] struct {
	ch      chan T
	dropped uint64
}

// TypedBus delivers values of type T to buffered subscriber channels. A
// subscriber whose buffer is full misses the value; the miss is counted.
type TypedBus[T any] struct {
	mu      sync.Mutex
	subs    []*subscriber[T]
	closed  bool
	dropped uint64
}

// NewTyped creates an empty bus.
func NewTyped[T any]() *TypedBus[T] { return &TypedBus[T]{} }

// Publish offers e to every subscriber and returns how many of them missed it.
func (b *TypedBus[T]) Publish(e T) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0
	}
	missed := 0
	for _, s := range b.subs {
		select {
		case s.ch <- e:
		default:
			s.dropped++
			missed++
		}
	}
	b.dropped += uint64(missed)
	return missed
}

// Subscribe registers a subscriber holding up to size undelivered values. On a
// closed bus the returned channel is already closed.
func (b *TypedBus[T]) Subscribe(size int) <-chan T {
	if size <= 0 {
		size = DefaultBuffer
	}
	s := &subscriber[T]{ch: make(chan T, size)}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(s.ch)
		return s.ch
	}
	b.subs = append(b.subs, s)
	return s.ch
}

// Unsubscribe removes sub and closes its channel. It is a no-op for unknown
// channels and after Close.
func (b *TypedBus[T]) Unsubscribe(sub <-chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(s.ch)
			return
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *TypedBus[T]) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Dropped returns the number of values missed by any subscriber so far.
func (b *TypedBus[T]) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close closes every subscriber channel. Later Publish calls are ignored.
func (b *TypedBus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, s := range b.subs {
		close(s.ch)
	}
	b.subs = nil
}
