// Package session sequences cartridge identification, login, game load and
// live monitoring, and runs the cooperative main loop that owns every piece
// of mutable adapter state.
package session

import (
	"context"
	"io"
	"log"
	"time"

	"nesra/bus"
	"nesra/cartridge"
	"nesra/cheevos"
	"nesra/notify"
	"nesra/protocol"
	"nesra/registry"
	"nesra/xcore"
)

// Session is owned by a single goroutine. Other goroutines reach it only
// through Do.
type Session struct {
	cfg   Config
	state State

	w        *protocol.Writer
	requests *protocol.Requests[cheevos.Continuation]
	queue    notify.Queue

	reg *registry.Registry
	ch  *xcore.Channel
	rx  xcore.Receiver

	engine Engine

	sampler       *bus.Sampler
	stopSampler   context.CancelFunc
	samplerDone   chan error
	samplerCtx    context.Context
	samplerLaunch uint64

	resetDetected  bool
	lastFrame      time.Time
	frames         uint64
	fingerprint    cartridge.Fingerprint
	hasFingerprint bool
	hash           string
	user           string
	token          string

	control chan func(*Session)
}

// New creates a session that writes protocol lines to w.
func New(cfg Config, w io.Writer) *Session {
	cfg.setDefaults()
	ch := xcore.New(cfg.ChannelCapacity)
	return &Session{
		cfg:        cfg,
		state:      Idle,
		w:          protocol.NewWriter(w),
		requests:   protocol.NewRequests[cheevos.Continuation](cfg.RequestSlots, cfg.RequestTimeout),
		reg:        registry.New(),
		ch:         ch,
		rx:         ch.Receiver(),
		samplerCtx: context.Background(),
		control:    make(chan func(*Session)),
	}
}

func (s *Session) State() State { return s.state }

// fire runs one transition and its effects.
func (s *Session) fire(t Trigger) {
	prev := s.state
	next, effects := Next(prev, t)
	if next == prev && effects == nil {
		log.Printf("session: %s ignored in state %s\n", t, prev)
		return
	}
	s.state = next
	log.Printf("session: %s: %s -> %s\n", t, prev, next)
	for _, e := range effects {
		s.apply(e)
	}
}

func (s *Session) apply(e Effect) {
	switch e {
	case EffectReadFingerprint:
		s.readFingerprint()
	case EffectReportFingerprint:
		if err := s.w.Fingerprint(s.fingerprint.Lo, s.fingerprint.Hi); err != nil {
			log.Printf("session: %v\n", err)
		}
	case EffectBeginLogin:
		s.beginLogin()
	case EffectLoadGame:
		s.engine.BeginLoadGame(s.hash)
	case EffectReportGame:
		g := s.engine.Game()
		if err := s.w.GameInfo(g.ID, g.Title, g.ImageURL); err != nil {
			log.Printf("session: %v\n", err)
		}
	case EffectReportGameFailed:
		if err := s.w.GameInfoFailed(); err != nil {
			log.Printf("session: %v\n", err)
		}
	case EffectStartMonitoring:
		s.startMonitoring()
	case EffectTeardown:
		s.teardown()
	}
}

func (s *Session) readFingerprint() {
	if s.cfg.Cartridge == nil {
		log.Printf("session: no cartridge to fingerprint\n")
		s.fire(TriggerFingerprintFailed)
		return
	}
	f, err := cartridge.ReadFingerprint(s.cfg.Cartridge)
	if err != nil {
		log.Printf("session: fingerprint: %v\n", err)
		s.fire(TriggerFingerprintFailed)
		return
	}
	s.fingerprint, s.hasFingerprint = f, true
	log.Printf("session: fingerprint %s\n", f)
	s.fire(TriggerFingerprintRead)
}

func (s *Session) beginLogin() {
	if s.engine != nil {
		s.engine.Close()
	}
	s.reg.Clear()
	s.engine = s.cfg.NewEngine(dispatcher{s}, s.handleEvent)
	s.engine.SetReader(registry.DiscoveryReader{R: s.reg})
	s.engine.BeginLogin(s.user, s.token)
}

func (s *Session) startMonitoring() {
	s.engine.Discover()
	ws := s.reg.Finalize()
	log.Printf("session: watching %d addresses\n", ws.Len())
	s.engine.SetReader(registry.LiveReader{R: s.reg})

	s.rx.Drain()
	s.resetDetected = false
	s.frames = 0
	s.lastFrame = s.cfg.Now()
	s.startSampler(ws)
}

func (s *Session) startSampler(ws registry.WatchSet) {
	if s.cfg.Source == nil {
		log.Printf("session: no bus source; frames advance on the fallback timer only\n")
		return
	}

	ctx, cancel := context.WithCancel(s.samplerCtx)
	s.sampler = bus.NewSampler(s.cfg.Source, s.cfg.BufferWords, ws.Contains, s.ch.Sender())
	s.stopSampler = cancel
	s.samplerDone = make(chan error, 1)
	s.samplerLaunch++

	started := make(chan struct{})
	go func(sm *bus.Sampler, done chan<- error) {
		done <- sm.Run(ctx, started)
	}(s.sampler, s.samplerDone)
	<-started
	log.Printf("session: sampler started\n")
}

func (s *Session) stopSampling() {
	if s.stopSampler == nil {
		return
	}
	s.stopSampler()
	if err := <-s.samplerDone; err != nil {
		log.Printf("session: sampler: %v\n", err)
	}
	s.stopSampler = nil
	s.samplerDone = nil
}

// teardown clears all per-session state and releases the bus.
func (s *Session) teardown() {
	s.stopSampling()
	s.sampler = nil
	s.rx.Drain()

	if s.engine != nil {
		s.engine.Close()
		s.engine = nil
	}
	s.requests.Reset()
	s.queue.Reset()
	s.reg.Clear()

	s.resetDetected = false
	s.frames = 0
	s.fingerprint, s.hasFingerprint = cartridge.Fingerprint{}, false
	s.hash = ""
}

func (s *Session) handleEvent(ev cheevos.Event) {
	switch ev.Type {
	case cheevos.EventLoggedIn:
		s.fire(TriggerLoggedIn)
	case cheevos.EventLoginFailed:
		log.Printf("session: login failed: %v\n", ev.Err)
		s.fire(TriggerLoginFailed)
	case cheevos.EventGameLoaded:
		s.fire(TriggerGameLoaded)
	case cheevos.EventGameLoadFailed:
		log.Printf("session: game not loaded: %v\n", ev.Err)
		s.fire(TriggerGameLoadFailed)
	case cheevos.EventAchievementTriggered:
		a := ev.Achievement
		if !s.queue.Enqueue(a.ID) {
			log.Printf("session: notification queue full; dropped achievement %d (%d total)\n", a.ID, s.queue.Dropped())
			return
		}
		log.Printf("session: achievement %d %q unlocked\n", a.ID, a.Title)
	case cheevos.EventServerError:
		log.Printf("session: server: %v\n", ev.Err)
	}
}

// dispatcher hands engine requests to the protocol engine.
type dispatcher struct {
	s *Session
}

func (d dispatcher) Dispatch(req cheevos.Request, k cheevos.Continuation) {
	s := d.s
	id := s.requests.Begin(k, s.cfg.Now())
	err := s.w.Request(id, protocol.Request{Method: req.Method, URL: req.URL, Body: req.Body})
	if err != nil {
		log.Printf("session: request %02X %s: %v\n", id, k, err)
	}
}
