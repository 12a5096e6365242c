package bus

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
)

// DefaultBufferWords is the size of each ping-pong buffer, about one video frame of CPU cycles.
const DefaultBufferWords = 4096

// Source is the sampling peripheral's FIFO. ReadWords blocks until at least one word is
// available or ctx is done, in which case it returns ctx's error.
type Source interface {
	ReadWords(ctx context.Context, dst []uint32) (int, error)
}

// buffer ownership:
const (
	bufFree    int32 = iota // DMA may fill it
	bufReady                // filled, waiting for the sampler
	bufReading              // sampler is decoding it
)

// PingPong models two DMA channels chained to each other, each draining the peripheral FIFO into
// its own destination buffer. When one buffer completes the other starts filling and the completed
// buffer is handed to the sampler. A buffer that is not free when the engine wraps back to it is a
// capture overrun: that round of samples is discarded.
type PingPong struct {
	src   Source
	bufs  [2][]uint32
	state [2]atomic.Int32

	// ready carries the index of each completed buffer, in completion order.
	ready chan int

	scratch []uint32

	overruns atomic.Uint64
	filled   atomic.Uint64
}

func NewPingPong(src Source, words int) *PingPong {
	if words <= 0 {
		words = DefaultBufferWords
	}
	return &PingPong{
		src:     src,
		bufs:    [2][]uint32{make([]uint32, words), make([]uint32, words)},
		ready:   make(chan int, 2),
		scratch: make([]uint32, words),
	}
}

func bufferName(i int) string { return string(rune('A' + i)) }

func (p *PingPong) Overruns() uint64 { return p.overruns.Load() }
func (p *PingPong) Filled() uint64   { return p.filled.Load() }

// Ready delivers completed buffer indexes; it is closed when Run returns.
func (p *PingPong) Ready() <-chan int { return p.ready }

// Buffer returns buffer i; only valid between Acquire and Release.
func (p *PingPong) Buffer(i int) []uint32 { return p.bufs[i] }

// Acquire takes software ownership of a completed buffer.
func (p *PingPong) Acquire(i int) bool {
	return p.state[i].CompareAndSwap(bufReady, bufReading)
}

// Release hands buffer i back to the DMA engine.
func (p *PingPong) Release(i int) {
	p.state[i].Store(bufFree)
}

// Run is the DMA engine. It must run in its own goroutine and returns when ctx is done or the
// source fails.
func (p *PingPong) Run(ctx context.Context) (err error) {
	defer close(p.ready)

	for i := 0; ; i ^= 1 {
		if err = ctx.Err(); err != nil {
			return
		}

		if p.state[i].Load() != bufFree {
			// the sampler still owns this buffer: drain the FIFO into the void.
			if n := p.overruns.Add(1); n&(n-1) == 0 {
				log.Printf("bus: capture overrun: buffer %s still in use (%d total)\n", bufferName(i), n)
			}
			if err = p.fill(ctx, p.scratch); err != nil {
				return
			}
			// retry the same buffer on the next round
			i ^= 1
			continue
		}

		if err = p.fill(ctx, p.bufs[i]); err != nil {
			return
		}
		p.state[i].Store(bufReady)
		p.filled.Add(1)

		// at most two buffers are ever ready so this never blocks
		p.ready <- i
	}
}

func (p *PingPong) fill(ctx context.Context, dst []uint32) error {
	o := 0
	for o < len(dst) {
		n, err := p.src.ReadWords(ctx, dst[o:])
		if err != nil {
			return fmt.Errorf("bus: source: %w", err)
		}
		if n <= 0 {
			return fmt.Errorf("bus: source: ReadWords returned %d", n)
		}
		o += n
	}
	return nil
}
