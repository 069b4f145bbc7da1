package coop

import (
	"container/list"
	"sync"

	"context"

	"github.com/spaghettifunk/oxygen/engine/containers"
	"github.com/spaghettifunk/oxygen/engine/core"
)

// ErrChannelClosed is returned by Receive once a closed channel has drained
// and by Send on a closed channel.
var ErrChannelClosed = core.NewError(core.KindNotReady, "channel closed")

// Channel is a bounded multi-producer queue. Send suspends when the buffer is
// full, with senders resumed in FIFO order; Receive suspends when it is
// empty. Close drains remaining items to receivers and then reports
// end-of-stream.
type Channel[T any] struct {
	mu     sync.Mutex
	buf    *containers.RingQueue[T]
	sendq  *list.List // of chan struct{}
	recvq  *list.List // of chan struct{}
	closed bool
}

// NewChannel creates a channel with the given buffer capacity. Capacity must
// be at least 1.
func NewChannel[T any](capacity int) *Channel[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Channel[T]{
		buf:   containers.NewRingQueue[T](capacity),
		sendq: list.New(),
		recvq: list.New(),
	}
}

// Send enqueues v, suspending while the buffer is full. Returns
// ErrChannelClosed if the channel is closed, or a cancellation error if ctx
// is done first.
func (c *Channel[T]) Send(ctx context.Context, v T) error {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return ErrChannelClosed
		}
		if !c.buf.IsFull() {
			_ = c.buf.Enqueue(v)
			c.wakeLocked(c.recvq)
			c.mu.Unlock()
			return nil
		}
		wait := make(chan struct{})
		elem := c.sendq.PushBack(wait)
		c.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			c.mu.Lock()
			select {
			case <-wait:
				// A wakeup was already consumed by this waiter; pass it
				// to the next parked sender so it is not dropped.
				c.wakeLocked(c.sendq)
			default:
				c.sendq.Remove(elem)
			}
			c.mu.Unlock()
			return Cancelled(ctx)
		}
	}
}

// TrySend enqueues v without suspending. Reports whether the value was
// accepted; returns ErrChannelClosed on a closed channel.
func (c *Channel[T]) TrySend(v T) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, ErrChannelClosed
	}
	if c.buf.IsFull() {
		return false, nil
	}
	_ = c.buf.Enqueue(v)
	c.wakeLocked(c.recvq)
	return true, nil
}

// Receive dequeues the next value, suspending while the buffer is empty.
// After Close, remaining buffered values are still delivered; once drained,
// Receive returns ErrChannelClosed.
func (c *Channel[T]) Receive(ctx context.Context) (T, error) {
	var zero T
	for {
		c.mu.Lock()
		if !c.buf.IsEmpty() {
			v, _ := c.buf.Dequeue()
			c.wakeLocked(c.sendq)
			c.mu.Unlock()
			return v, nil
		}
		if c.closed {
			c.mu.Unlock()
			return zero, ErrChannelClosed
		}
		wait := make(chan struct{})
		elem := c.recvq.PushBack(wait)
		c.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			c.mu.Lock()
			select {
			case <-wait:
				// Buffered data arrived for this waiter; wake the next
				// parked receiver so the value is still drained.
				c.wakeLocked(c.recvq)
			default:
				c.recvq.Remove(elem)
			}
			c.mu.Unlock()
			return zero, Cancelled(ctx)
		}
	}
}

// TryReceive dequeues without suspending. The bool reports whether a value
// was produced.
func (c *Channel[T]) TryReceive() (T, bool, error) {
	var zero T
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.buf.IsEmpty() {
		v, _ := c.buf.Dequeue()
		c.wakeLocked(c.sendq)
		return v, true, nil
	}
	if c.closed {
		return zero, false, ErrChannelClosed
	}
	return zero, false, nil
}

// Close marks the channel closed. Suspended senders fail with
// ErrChannelClosed; suspended receivers drain the buffer and then observe
// end-of-stream. Closing twice is a no-op.
func (c *Channel[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for e := c.sendq.Front(); e != nil; e = e.Next() {
		close(e.Value.(chan struct{}))
	}
	c.sendq.Init()
	for e := c.recvq.Front(); e != nil; e = e.Next() {
		close(e.Value.(chan struct{}))
	}
	c.recvq.Init()
}

// Len returns the number of buffered values.
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Len()
}

// wakeLocked resumes the oldest waiter in q. Caller holds c.mu.
func (c *Channel[T]) wakeLocked(q *list.List) {
	if e := q.Front(); e != nil {
		q.Remove(e)
		close(e.Value.(chan struct{}))
	}
}
