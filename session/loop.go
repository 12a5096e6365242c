package session

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"nesra/cheevos"
	"nesra/protocol"
	"nesra/registry"
)

// pollInterval bounds how long the loop sleeps when there is nothing to do.
const pollInterval = time.Millisecond

// HandleLine applies one line received from the co-processor.
func (s *Session) HandleLine(line string) {
	cmd, err := protocol.Parse(line)
	if err != nil {
		log.Printf("session: %v\n", err)
		return
	}

	switch c := cmd.(type) {
	case protocol.Response:
		s.resume(c)
	case protocol.Credentials:
		s.user, s.token = c.User, c.Token
		log.Printf("session: credentials for %s\n", c.User)
	case protocol.GameHash:
		s.hash = c.Hash
		log.Printf("session: game hash %s\n", c.Hash)
	case protocol.Reset:
		s.fire(TriggerReset)
	case protocol.ReadCRC:
		s.fire(TriggerReadCRC)
	case protocol.StartWatch:
		if s.user == "" || s.token == "" {
			log.Printf("session: %s ignored: no credentials\n", c)
			return
		}
		if s.hash == "" {
			log.Printf("session: %s ignored: no game hash\n", c)
			return
		}
		s.fire(TriggerStartWatch)
	}
}

func (s *Session) resume(c protocol.Response) {
	k, ok := s.requests.Resolve(c.ID)
	if !ok {
		log.Printf("session: dropped response %02X: no pending request\n", c.ID)
		return
	}
	if s.engine == nil {
		return
	}

	rsp := cheevos.Response{Status: int(c.Status), Body: []byte(c.Body)}
	if c.Status == 0 {
		rsp.Status = cheevos.StatusRetryableClientError
	}
	s.engine.Resume(k, rsp)
}

// Step runs one iteration of the main loop at time now.
func (s *Session) Step(now time.Time) {
	s.requests.Expire(now)

	if s.requests.InFlight() == 0 {
		if id, ok := s.queue.Dequeue(); ok {
			s.announce(id)
		}
	}

	if s.samplerDone != nil {
		select {
		case err := <-s.samplerDone:
			if err != nil {
				log.Printf("session: sampler: %v\n", err)
			}
			s.stopSampler()
			s.stopSampler, s.samplerDone = nil, nil
		default:
		}
	}

	if s.state == Monitoring {
		s.monitor(now)
	}
}

func (s *Session) announce(id uint32) {
	title, badge := "", ""
	if s.engine != nil {
		if a := s.engine.Game().Achievement(id); a != nil {
			title, badge = a.Title, a.BadgeURL()
		}
	}
	if err := s.w.Achievement(id, title, badge); err != nil {
		log.Printf("session: %v\n", err)
	}
}

// monitor drains at most one write event and keeps the engine ticking.
func (s *Session) monitor(now time.Time) {
	if e, ok := s.rx.Pop(); ok {
		if !s.resetDetected && registry.Fold(uint32(e.Address)) < registry.RAMSize {
			// the console's startup code clears low RAM before anything else
			s.resetDetected = true
			if err := s.w.Resetted(); err != nil {
				log.Printf("session: %v\n", err)
			}
			log.Printf("session: console reset detected; watching %s\n", s.reg)
		}

		if e.Address == registry.FrameSentinel {
			s.engine.DoFrame()
			s.lastFrame = now
			s.frames++
			if s.frames%s.cfg.TelemetryFrames == 0 {
				if n := s.rx.Len(); n > 0 {
					log.Printf("session: frame %d: channel %d/%d, dropped %d\n", s.frames, n, s.ch.Capacity(), s.rx.Dropped())
				}
			}
		} else {
			s.reg.Store(uint32(e.Address), e.Data)
		}
	}

	if now.Sub(s.lastFrame) > s.cfg.FrameInterval {
		s.engine.DoFrame()
		s.lastFrame = now
	}
}

// busy reports whether the next Step has work without waiting for input.
func (s *Session) busy() bool {
	if s.state == Monitoring && s.rx.Len() > 0 {
		return true
	}
	return !s.queue.IsEmpty() && s.requests.InFlight() == 0
}

// Run announces the firmware version on rw and runs the main loop until ctx
// is done or rw fails.
func (s *Session) Run(ctx context.Context, rw io.Reader) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.samplerCtx = ctx
	defer s.teardown()

	if err = s.w.Banner(s.cfg.Version); err != nil {
		return
	}

	lines := make(chan string, 16)
	readErr := make(chan error, 1)
	go func() {
		readErr <- protocol.ReadLines(ctx, rw, protocol.NewFramer(s.cfg.MaxLine), lines)
	}()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		s.Step(s.cfg.Now())

		if s.busy() {
			select {
			case line := <-lines:
				s.HandleLine(line)
			case f := <-s.control:
				f(s)
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			continue
		}

		select {
		case line := <-lines:
			s.HandleLine(line)
		case f := <-s.control:
			f(s)
		case err = <-readErr:
			if errors.Is(err, io.EOF) {
				log.Printf("session: link closed\n")
			}
			return err
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Do runs f on the session's goroutine and waits for it to finish.
func (s *Session) Do(ctx context.Context, f func(*Session)) error {
	done := make(chan struct{})
	select {
	case s.control <- func(s *Session) { f(s); close(done) }:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset returns the session to Idle as if the co-processor had sent RESET.
func (s *Session) Reset() {
	s.fire(TriggerReset)
}
