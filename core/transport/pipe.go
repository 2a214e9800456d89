package transport

import (
	"context"
	"sync"

	"github.com/kilianp07/robodelivery/core/events"
)

// pipeEnd is one side of an in-memory channel pair.
type pipeEnd struct {
	inbox *Inbox
	peer  *pipeEnd

	mu     sync.Mutex
	closed bool
}

// Pipe returns two connected in-memory channels. What one side sends the
// other polls. Batches are copied so neither side can mutate the other's view.
func Pipe() (Channel, Channel) {
	a := &pipeEnd{inbox: NewInbox()}
	b := &pipeEnd{inbox: NewInbox()}
	a.peer, b.peer = b, a
	return a, b
}

func (p *pipeEnd) Send(ctx context.Context, b events.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrClosed
	}
	p.peer.mu.Lock()
	peerClosed := p.peer.closed
	p.peer.mu.Unlock()
	if peerClosed {
		return ErrNotConnected
	}
	cp := make(events.Batch, len(b))
	copy(cp, b)
	p.peer.inbox.Push(cp)
	return nil
}

func (p *pipeEnd) Poll() events.Batch { return p.inbox.Drain() }

func (p *pipeEnd) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}
