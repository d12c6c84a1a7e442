// Package channel implements the bounded, non-blocking delivery
// queue between the capture thread and the dispatcher (spec.md §4.1).
package channel

import "sync"

// Payload is one captured TCP payload descriptor.
type Payload struct {
	SrcPort uint16
	DstPort uint16
	Data    []byte
}

// Channel is a FIFO queue safe for one concurrent sender and one
// concurrent receiver (and safe, if slower, for many of each). Sends
// never block: try_send reports false instead of waiting when the
// channel is full or closed.
type Channel struct {
	mu       sync.Mutex
	items    []Payload
	capacity int // 0 = unbounded
	closed   bool

	dropped int64
}

// New constructs a Channel. capacity <= 0 means unbounded (loss-free);
// a positive capacity caps memory use and drops the newest item on
// overrun, incrementing the Dropped counter (spec.md §4.1, §5).
func New(capacity int) *Channel {
	return &Channel{capacity: capacity}
}

// TrySend enqueues v without blocking. It returns false if the
// channel is closed or, for a bounded channel, full — in which case
// the item is dropped and the drop counter is incremented.
func (c *Channel) TrySend(v Payload) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.dropped++
		return false
	}
	if c.capacity > 0 && len(c.items) >= c.capacity {
		c.dropped++
		return false
	}
	c.items = append(c.items, v)
	return true
}

// TryReceive dequeues the oldest item without blocking.
func (c *Channel) TryReceive() (Payload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.items) == 0 {
		return Payload{}, false
	}
	v := c.items[0]
	c.items = c.items[1:]
	return v, true
}

// Clear drops every queued item and returns how many were removed.
func (c *Channel) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.items)
	c.items = nil
	return n
}

// Size returns the number of items currently queued.
func (c *Channel) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Dropped returns the cumulative number of items dropped due to
// overrun or a closed channel.
func (c *Channel) Dropped() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Close marks the channel closed; subsequent TrySend calls fail.
// Returns false if it was already closed.
func (c *Channel) Close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	return true
}
