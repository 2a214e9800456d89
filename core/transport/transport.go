// Package transport defines how the world runtime and the dispatcher exchange
// event batches. Every implementation delivers one batch per Send and buffers
// what it receives in an Inbox drained by the tick loop.
package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/kilianp07/robodelivery/core/events"
)

var (
	// ErrNotConnected is returned by Send while no peer is attached.
	ErrNotConnected = errors.New("transport: not connected")
	// ErrFrameTooLarge is returned when an encoded batch exceeds the frame limit.
	ErrFrameTooLarge = errors.New("transport: frame too large")
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("transport: closed")
)

// Channel is a bidirectional batched event link to the peer process.
type Channel interface {
	// Send delivers b as a single frame.
	Send(ctx context.Context, b events.Batch) error
	// Poll returns every event received since the previous call, in arrival
	// order. It never blocks and returns an empty batch when idle.
	Poll() events.Batch
	Close() error
}

// Inbox is a goroutine safe FIFO filled by transport readers and drained by
// the tick loop.
type Inbox struct {
	mu      sync.Mutex
	pending events.Batch
	notify  chan struct{}
}

// NewInbox returns an empty inbox.
func NewInbox() *Inbox {
	return &Inbox{notify: make(chan struct{}, 1)}
}

// Push appends a received batch.
func (in *Inbox) Push(b events.Batch) {
	if len(b) == 0 {
		return
	}
	in.mu.Lock()
	in.pending = append(in.pending, b...)
	in.mu.Unlock()
	select {
	case in.notify <- struct{}{}:
	default:
	}
}

// Drain removes and returns everything queued so far.
func (in *Inbox) Drain() events.Batch {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := in.pending
	in.pending = nil
	if out == nil {
		return events.Batch{}
	}
	return out
}

// Len returns the number of queued events.
func (in *Inbox) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.pending)
}

// Notify is signalled after a Push. Tests use it to wait for traffic without
// sleeping; the tick loops never block on it.
func (in *Inbox) Notify() <-chan struct{} { return in.notify }
