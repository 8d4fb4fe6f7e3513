// Package broadcast provides a ring-buffer backed publish/subscribe channel.
//
// A Channel has one publish side and any number of Receivers. Publish never
// blocks: every Receiver keeps its own read cursor into a shared ring of
// fixed capacity. A Receiver that falls more than capacity items behind
// skips to the oldest retained item and reports how many it missed through
// a *LagError. Slow readers lose history, they never slow down the publisher
// or the other readers.
package broadcast

import (
	"context"
	"fmt"
	"roomchat/errors"
	"sync"
)

type Channel[T any] struct {
	mu          sync.Mutex
	buf         []T
	head        uint64 // sequence number of the next published item
	notify      chan struct{}
	subscribers int
	closed      bool
}

// New creates a Channel retaining at most capacity unread items per Receiver.
func New[T any](capacity int) *Channel[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Channel[T]{
		buf:    make([]T, capacity),
		notify: make(chan struct{}),
	}
}

// Publish stores v and wakes up every waiting Receiver.
// It returns the number of Receivers subscribed at publish time.
func (c *Channel[T]) Publish(v T) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, errors.ErrClosed
	}
	c.buf[c.head%uint64(len(c.buf))] = v
	c.head++
	close(c.notify)
	c.notify = make(chan struct{})
	return c.subscribers, nil
}

// Subscribe returns a Receiver that observes every item published after this call.
func (c *Channel[T]) Subscribe() *Receiver[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers++
	return &Receiver[T]{ch: c, next: c.head}
}

func (c *Channel[T]) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribers
}

// Published returns how many items went through the channel so far.
func (c *Channel[T]) Published() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.head
}

func (c *Channel[T]) Capacity() int {
	return len(c.buf)
}

// Close rejects further publishes. Receivers drain what is retained, then get ErrClosed.
func (c *Channel[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.notify)
}

// oldest is the sequence number of the oldest item still in the ring.
func (c *Channel[T]) oldest() uint64 {
	size := uint64(len(c.buf))
	if c.head < size {
		return 0
	}
	return c.head - size
}

// LagError reports items overwritten before the Receiver could read them.
type LagError struct {
	Missed uint64
}

func (e *LagError) Error() string {
	return fmt.Sprintf("receiver lagged behind, %d items missed", e.Missed)
}

// Receiver is the subscribe side of a Channel. It is meant to be read from one goroutine.
type Receiver[T any] struct {
	ch     *Channel[T]
	next   uint64
	closed bool
}

// Recv blocks until an item is available, ctx is done or the Receiver is closed.
// After a *LagError the cursor has already moved to the oldest retained item,
// so the next call returns data again.
func (r *Receiver[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	for {
		c := r.ch
		c.mu.Lock()
		if r.closed {
			c.mu.Unlock()
			return zero, errors.ErrClosed
		}
		if oldest := c.oldest(); r.next < oldest {
			missed := oldest - r.next
			r.next = oldest
			c.mu.Unlock()
			return zero, &LagError{Missed: missed}
		}
		if r.next < c.head {
			v := c.buf[r.next%uint64(len(c.buf))]
			r.next++
			c.mu.Unlock()
			return v, nil
		}
		if c.closed {
			c.mu.Unlock()
			return zero, errors.ErrClosed
		}
		wait := c.notify
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-wait:
		}
	}
}

// Pending returns how many published items this Receiver has not read yet, lost ones included.
func (r *Receiver[T]) Pending() uint64 {
	r.ch.mu.Lock()
	defer r.ch.mu.Unlock()
	return r.ch.head - r.next
}

// Close unsubscribes the Receiver. Calling it more than once is harmless.
// It does not wake a Recv already blocked: cancel its context for that.
func (r *Receiver[T]) Close() {
	c := r.ch
	c.mu.Lock()
	defer c.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	c.subscribers--
}
