package bus

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"nesra/xcore"
)

// Sampler owns the ping-pong buffers and the stable-write decoder. Its only output path is the
// cross-core channel sender.
type Sampler struct {
	dma *PingPong
	dec Decoder
	out xcore.Sender

	// OnBuffer, if set, observes how long each buffer took to decode.
	OnBuffer func(d time.Duration)

	buffers atomic.Uint64
	events  atomic.Uint64
}

// NewSampler creates a sampler that forwards writes to addresses accepted by watched.
// watched must be safe for concurrent use; a nil watched forwards every write.
func NewSampler(src Source, bufferWords int, watched func(address uint16) bool, out xcore.Sender) *Sampler {
	s := &Sampler{
		dma: NewPingPong(src, bufferWords),
		out: out,
	}
	s.dec.Watched = watched
	s.dec.Emit = func(address uint16, data uint8) {
		s.out.Push(xcore.Event{Address: address, Data: data})
	}
	return s
}

type Stats struct {
	Buffers  uint64
	Events   uint64
	Overruns uint64
}

func (s *Sampler) Stats() Stats {
	return Stats{
		Buffers:  s.buffers.Load(),
		Events:   s.events.Load(),
		Overruns: s.dma.Overruns(),
	}
}

// Run starts the DMA engine and decodes completed buffers in capture order until ctx is done or
// the source fails. started, if non-nil, is closed once the engine is running.
func (s *Sampler) Run(ctx context.Context, started chan<- struct{}) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	dmaErr := make(chan error, 1)
	go func() {
		dmaErr <- s.dma.Run(ctx)
	}()

	if started != nil {
		close(started)
	}

	for i := range s.dma.Ready() {
		if !s.dma.Acquire(i) {
			continue
		}

		t0 := time.Now()
		n := s.dec.Feed(s.dma.Buffer(i))
		s.dma.Release(i)

		s.buffers.Add(1)
		s.events.Add(uint64(n))
		if s.OnBuffer != nil {
			s.OnBuffer(time.Since(t0))
		}
	}

	err := <-dmaErr
	if err != nil && ctx.Err() == nil {
		log.Printf("bus: sampler stopped: %v\n", err)
		return err
	}
	return nil
}
