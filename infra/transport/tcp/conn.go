// Package tcp carries event batches over a single TCP connection. Each batch
// is one frame: a big-endian uint32 length followed by the JSON array. One
// side listens and serves a single peer at a time; the other dials and keeps
// redialling with a fixed backoff whenever the link drops.
package tcp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/robodelivery/core/events"
	"github.com/kilianp07/robodelivery/core/transport"
	"github.com/kilianp07/robodelivery/infra/logger"
)

// Conn is a transport.Channel backed by TCP.
type Conn struct {
	cfg   Config
	log   logger.Logger
	inbox *transport.Inbox

	mu      sync.Mutex
	conn    net.Conn
	session string
	// changed is closed and replaced on every attach, detach or give-up.
	changed chan struct{}
	gaveUp  error
	closed  bool

	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

var _ transport.Channel = (*Conn)(nil)

func newConn(cfg Config, log logger.Logger) (*Conn, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.New("tcp")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Conn{
		cfg:     cfg,
		log:     log,
		inbox:   transport.NewInbox(),
		changed: make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Listen binds cfg.Addr and serves one peer at a time. When the peer goes
// away the next connection is accepted.
func Listen(cfg Config, log logger.Logger) (*Conn, error) {
	c, err := newConn(cfg, log)
	if err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", c.cfg.Addr)
	if err != nil {
		c.cancel()
		return nil, fmt.Errorf("tcp: listen %s: %w", c.cfg.Addr, err)
	}
	c.listener = ln
	c.log.Infof("listening on %s", ln.Addr())
	c.wg.Add(1)
	go c.acceptLoop()
	return c, nil
}

// Dial connects to cfg.Addr in the background. Refused connections are
// retried every BackoffMS until MaxAttempts consecutive failures; a lost
// connection is dialled again by the same loop.
func Dial(cfg Config, log logger.Logger) (*Conn, error) {
	c, err := newConn(cfg, log)
	if err != nil {
		return nil, err
	}
	c.wg.Add(1)
	go c.connectLoop()
	return c, nil
}

// Addr returns the bound address of a listening Conn, or nil.
func (c *Conn) Addr() net.Addr {
	if c.listener == nil {
		return nil
	}
	return c.listener.Addr()
}

// Connected reports whether a peer is attached.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Session returns the id of the current connection, or "" when detached.
func (c *Conn) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// WaitConnected blocks until a peer is attached, the dialer gave up, the Conn
// is closed or ctx is done.
func (c *Conn) WaitConnected(ctx context.Context) error {
	for {
		c.mu.Lock()
		switch {
		case c.conn != nil:
			c.mu.Unlock()
			return nil
		case c.closed:
			c.mu.Unlock()
			return transport.ErrClosed
		case c.gaveUp != nil:
			err := c.gaveUp
			c.mu.Unlock()
			return err
		}
		ch := c.changed
		c.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// Send writes b as one frame. It fails with ErrNotConnected while no peer is
// attached and with ErrFrameTooLarge when the encoded batch exceeds the limit.
func (c *Conn) Send(ctx context.Context, b events.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := events.EncodeBatch(b)
	if err != nil {
		return fmt.Errorf("tcp: encode batch: %w", err)
	}
	if len(payload) > c.cfg.MaxFrameBytes {
		framesDropped.WithLabelValues("oversize").Inc()
		return fmt.Errorf("%w: %d bytes, limit %d", transport.ErrFrameTooLarge, len(payload), c.cfg.MaxFrameBytes)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return transport.ErrClosed
	}
	if c.conn == nil {
		framesDropped.WithLabelValues("disconnected").Inc()
		return transport.ErrNotConnected
	}
	deadline := time.Now().Add(c.cfg.writeTimeout())
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = c.conn.SetWriteDeadline(deadline)
	if err := writeFrame(c.conn, payload); err != nil {
		framesDropped.WithLabelValues("write").Inc()
		// The reader notices the broken socket and detaches it.
		_ = c.conn.Close()
		return fmt.Errorf("tcp: write frame: %w", err)
	}
	framesSent.Inc()
	return nil
}

// Poll returns every event received since the previous call.
func (c *Conn) Poll() events.Batch { return c.inbox.Drain() }

// Close stops the background loops and closes the socket.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.broadcast()
	c.mu.Unlock()

	c.cancel()
	var err error
	if c.listener != nil {
		err = c.listener.Close()
	}
	c.wg.Wait()
	return err
}

// broadcast wakes WaitConnected callers. c.mu must be held.
func (c *Conn) broadcast() {
	close(c.changed)
	c.changed = make(chan struct{})
}

func (c *Conn) attach(nc net.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		_ = nc.Close()
		return false
	}
	c.conn = nc
	c.session = uuid.NewString()
	c.broadcast()
	c.log.Infof("session %s: connected to %s", c.session, nc.RemoteAddr())
	return true
}

func (c *Conn) detach(nc net.Conn) {
	_ = nc.Close()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nc {
		c.log.Infof("session %s: disconnected", c.session)
		c.conn = nil
		c.session = ""
		if !c.closed {
			c.broadcast()
		}
	}
}

func (c *Conn) giveUp(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gaveUp = err
	if !c.closed {
		c.broadcast()
	}
}

// sleep waits for the backoff delay and reports false when the Conn closed.
func (c *Conn) sleep() bool {
	t := time.NewTimer(c.cfg.backoff())
	defer t.Stop()
	select {
	case <-c.ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Conn) acceptLoop() {
	defer c.wg.Done()
	for {
		nc, err := c.listener.Accept()
		if err != nil {
			if c.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			c.log.Warnf("accept: %v", err)
			if !c.sleep() {
				return
			}
			continue
		}
		if !c.attach(nc) {
			return
		}
		c.serve(nc)
		c.detach(nc)
	}
}

func (c *Conn) connectLoop() {
	defer c.wg.Done()
	var d net.Dialer
	failures := 0
	for {
		nc, err := d.DialContext(c.ctx, "tcp", c.cfg.Addr)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			failures++
			if c.cfg.MaxAttempts > 0 && failures >= c.cfg.MaxAttempts {
				c.log.Errorf("giving up on %s after %d attempts: %v", c.cfg.Addr, failures, err)
				c.giveUp(fmt.Errorf("tcp: dial %s: %d attempts failed: %w", c.cfg.Addr, failures, err))
				return
			}
			c.log.Debugf("dial %s failed (attempt %d): %v", c.cfg.Addr, failures, err)
			if !c.sleep() {
				return
			}
			continue
		}
		failures = 0
		if !c.attach(nc) {
			return
		}
		c.serve(nc)
		c.detach(nc)
		if c.ctx.Err() != nil {
			return
		}
		reconnects.Inc()
		c.log.Warnf("connection to %s lost, redialling", c.cfg.Addr)
	}
}

// serve reads frames from nc into the inbox until the connection fails.
func (c *Conn) serve(nc net.Conn) {
	r := bufio.NewReader(nc)
	for {
		payload, err := readFrame(r, c.cfg.MaxFrameBytes)
		if err != nil {
			switch {
			case errors.Is(err, transport.ErrFrameTooLarge):
				framesDropped.WithLabelValues("oversize").Inc()
				c.log.Errorf("dropping connection: %v", err)
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed), c.ctx.Err() != nil:
			default:
				c.log.Warnf("read: %v", err)
			}
			return
		}
		framesReceived.Inc()
		batch, diags, err := events.DecodeBatch(payload)
		if err != nil {
			decodeErrors.Inc()
			framesDropped.WithLabelValues("decode").Inc()
			c.log.Errorf("dropping frame: %v", err)
			continue
		}
		for _, d := range diags {
			decodeErrors.Inc()
			c.log.Warnf("skipping event: %v", d)
		}
		c.inbox.Push(batch)
	}
}
