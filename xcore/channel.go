package xcore

import "sync/atomic"

// DefaultCapacity matches the ring between the sampling and processing cores on the adapter board.
const DefaultCapacity = 4096

// Event is a committed bus write observed by the sampler.
type Event struct {
	Address uint16
	Data    uint8
}

func (e Event) pack() uint32 { return uint32(e.Address)<<8 | uint32(e.Data) }

func unpack(v uint32) Event { return Event{Address: uint16(v >> 8), Data: uint8(v)} }

// Channel is a single-producer single-consumer ring of Events.
// Push never blocks: when the ring is full the oldest unread Event is discarded.
//
// head and tail are free-running counters; the slot index is the counter modulo capacity.
// head-tail is the number of unread events and never exceeds capacity.
type Channel struct {
	slots []atomic.Uint32
	cap   uint64

	head atomic.Uint64
	tail atomic.Uint64

	dropped atomic.Uint64
}

func New(capacity int) *Channel {
	if capacity <= 0 {
		panic("xcore: capacity must be positive")
	}
	return &Channel{
		slots: make([]atomic.Uint32, capacity),
		cap:   uint64(capacity),
	}
}

func (c *Channel) Capacity() int { return int(c.cap) }

// Len is advisory; producer and consumer may move it while it is being read.
func (c *Channel) Len() int {
	t := c.tail.Load()
	h := c.head.Load()
	if h < t {
		return 0
	}
	n := h - t
	if n > c.cap {
		n = c.cap
	}
	return int(n)
}

// Dropped returns how many events were discarded by the drop-oldest policy.
func (c *Channel) Dropped() uint64 { return c.dropped.Load() }

func (c *Channel) push(e Event) {
	h := c.head.Load()
	t := c.tail.Load()
	if h-t >= c.cap {
		// full: retire the oldest slot before reusing it. if the CAS loses, the consumer already took it.
		if c.tail.CompareAndSwap(t, t+1) {
			c.dropped.Add(1)
		}
	}
	c.slots[h%c.cap].Store(e.pack())
	c.head.Store(h + 1)
}

func (c *Channel) pop() (e Event, ok bool) {
	for {
		t := c.tail.Load()
		if t == c.head.Load() {
			return Event{}, false
		}
		v := c.slots[t%c.cap].Load()
		if c.tail.CompareAndSwap(t, t+1) {
			return unpack(v), true
		}
		// the producer retired this slot while we were reading it; retry from the new tail.
	}
}

// reset empties the channel; only safe while no producer is running.
func (c *Channel) reset() {
	c.tail.Store(c.head.Load())
	c.dropped.Store(0)
}

// Sender is the producer half handed to the sampling goroutine.
type Sender struct{ c *Channel }

// Receiver is the consumer half owned by the processing loop.
type Receiver struct{ c *Channel }

func (c *Channel) Sender() Sender     { return Sender{c} }
func (c *Channel) Receiver() Receiver { return Receiver{c} }

func (s Sender) Push(e Event) { s.c.push(e) }

func (r Receiver) Pop() (Event, bool) { return r.c.pop() }
func (r Receiver) Len() int           { return r.c.Len() }
func (r Receiver) Dropped() uint64    { return r.c.Dropped() }

// Drain discards every unread event.
func (r Receiver) Drain() { r.c.reset() }
