package session

import (
	"nesra/bus"
)

// Status is a point-in-time view of the session for diagnostics.
type Status struct {
	State          State
	InFlight       int
	Pending        []uint8
	Queued         []uint32
	QueueDropped   uint64
	Watched        int
	ChannelLen     int
	ChannelDropped uint64
	Frames         uint64
	ResetDetected  bool
	Fingerprint    string
	Hash           string
	User           string
	GameID         uint32
	GameTitle      string
	Sampler        bus.Stats
	SamplerStarts  uint64
	Evicted        uint64
	Stale          uint64
	Timeouts       uint64
}

// Status must be called on the session's goroutine; use Do from elsewhere.
func (s *Session) Status() Status {
	rs := s.requests.Stats()
	st := Status{
		State:          s.state,
		InFlight:       rs.InFlight,
		Pending:        s.requests.Pending(),
		Queued:         s.queue.Pending(),
		QueueDropped:   s.queue.Dropped(),
		Watched:        s.reg.Len(),
		ChannelLen:     s.rx.Len(),
		ChannelDropped: s.rx.Dropped(),
		Frames:         s.frames,
		ResetDetected:  s.resetDetected,
		Hash:           s.hash,
		User:           s.user,
		SamplerStarts:  s.samplerLaunch,
		Evicted:        rs.Evicted,
		Stale:          rs.Stale,
		Timeouts:       rs.Timeouts,
	}
	if s.hasFingerprint {
		st.Fingerprint = s.fingerprint.String()
	}
	if s.engine != nil {
		if g := s.engine.Game(); g != nil {
			st.GameID, st.GameTitle = g.ID, g.Title
		}
	}
	if s.sampler != nil {
		st.Sampler = s.sampler.Stats()
	}
	return st
}
