package session

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"nesra/cartridge"
	"nesra/cheevos"
	"nesra/protocol"
	"nesra/registry"
	"nesra/util"
	"nesra/xcore"
)

var epoch = time.Date(2022, 12, 19, 0, 0, 0, 0, time.UTC)

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

// fakeEngine completes login and game load synchronously and reads the
// addresses in watch during discovery.
type fakeEngine struct {
	d      cheevos.Dispatcher
	h      cheevos.Handler
	reader cheevos.MemoryReader
	game   *cheevos.Game
	watch  []uint32

	frames int
	closed bool
	loaded []string
}

func (e *fakeEngine) SetReader(r cheevos.MemoryReader) { e.reader = r }
func (e *fakeEngine) BeginLogin(user, token string) {
	e.h(cheevos.Event{Type: cheevos.EventLoggedIn})
}
func (e *fakeEngine) BeginLoadGame(hash string) {
	e.loaded = append(e.loaded, hash)
	e.h(cheevos.Event{Type: cheevos.EventGameLoaded, Game: e.game})
}
func (e *fakeEngine) Resume(k cheevos.Continuation, rsp cheevos.Response) {}
func (e *fakeEngine) Discover() {
	var b [1]byte
	for _, a := range e.watch {
		e.reader.ReadMemory(a, b[:])
	}
}
func (e *fakeEngine) DoFrame()             { e.frames++ }
func (e *fakeEngine) Game() *cheevos.Game  { return e.game }
func (e *fakeEngine) Close()               { e.closed = true }

type fixture struct {
	s   *Session
	out *bytes.Buffer
	clk *clock
	eng *fakeEngine
}

func newFixture(t *testing.T) *fixture {
	util.RedirectLog(t)

	prg := make([]byte, 0x8000)
	for i := range prg {
		prg[i] = byte(i)
	}
	rom, err := cartridge.NewROM(prg)
	if err != nil {
		t.Fatal(err)
	}

	f := &fixture{
		out: &bytes.Buffer{},
		clk: &clock{t: epoch},
	}
	f.eng = &fakeEngine{
		game: &cheevos.Game{
			ID:       1446,
			Title:    "Super Mario Bros.",
			ImageURL: "https://media/Images/000001.png",
			Achievements: []*cheevos.Achievement{
				{ID: 7, Title: "First Blood", BadgeName: "00007"},
			},
		},
		watch: []uint32{0x0300, 0x0044, 0x07FE, 0x0844},
	}

	cfg := DefaultConfig()
	cfg.Cartridge = rom
	cfg.Now = f.clk.now
	cfg.NewEngine = func(d cheevos.Dispatcher, h cheevos.Handler) Engine {
		f.eng.d, f.eng.h = d, h
		return f.eng
	}
	f.s = New(cfg, f.out)
	return f
}

// lines returns and clears everything written to the link.
func (f *fixture) lines() []string {
	s := f.out.String()
	f.out.Reset()
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\r\n"), "\r\n")
}

func (f *fixture) send(lines ...string) {
	for _, l := range lines {
		f.s.HandleLine(l)
	}
}

func (f *fixture) monitor(t *testing.T) {
	t.Helper()
	f.send("TOKEN_AND_USER=alice,tok", "CRC_FOUND_MD5=811b027eaf99c2def7b933c5208636de", "START_WATCH")
	if actual, expected := f.s.State(), Monitoring; actual != expected {
		t.Fatalf("state, actual = %v, expected = %v", actual, expected)
	}
}

func TestSession_Fingerprint(t *testing.T) {
	f := newFixture(t)

	f.send("READ_CRC")
	if actual, expected := f.s.State(), Identified; actual != expected {
		t.Fatalf("state, actual = %v, expected = %v", actual, expected)
	}

	fp, err := cartridge.ReadFingerprint(f.s.cfg.Cartridge)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{lineFingerprint(fp)}, f.lines()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func lineFingerprint(fp cartridge.Fingerprint) string {
	b := &bytes.Buffer{}
	s := New(Config{}, b)
	_ = s.w.Fingerprint(fp.Lo, fp.Hi)
	return strings.TrimSuffix(b.String(), "\r\n")
}

func TestSession_FingerprintWithoutCartridge(t *testing.T) {
	f := newFixture(t)
	f.s.cfg.Cartridge = nil

	f.send("READ_CRC")
	if actual, expected := f.s.State(), Idle; actual != expected {
		t.Errorf("state, actual = %v, expected = %v", actual, expected)
	}
	if lines := f.lines(); len(lines) != 0 {
		t.Errorf("unexpected output %q", lines)
	}
}

func TestSession_StartWatchNeedsCredentialsAndHash(t *testing.T) {
	f := newFixture(t)

	f.send("START_WATCH")
	if actual, expected := f.s.State(), Idle; actual != expected {
		t.Fatalf("state, actual = %v, expected = %v", actual, expected)
	}
	f.send("TOKEN_AND_USER=alice,tok", "START_WATCH")
	if actual, expected := f.s.State(), Idle; actual != expected {
		t.Fatalf("state, actual = %v, expected = %v", actual, expected)
	}
	f.send("CRC_FOUND_MD5=811b027eaf99c2def7b933c5208636de", "START_WATCH")
	if actual, expected := f.s.State(), Monitoring; actual != expected {
		t.Fatalf("state, actual = %v, expected = %v", actual, expected)
	}
	if diff := cmp.Diff([]string{"811b027eaf99c2def7b933c5208636de"}, f.eng.loaded); diff != "" {
		t.Errorf("loaded mismatch (-want +got):\n%s", diff)
	}
}

func TestSession_StartMonitoring(t *testing.T) {
	f := newFixture(t)
	f.monitor(t)

	if diff := cmp.Diff([]string{"GAME_INFO=1446;Super Mario Bros.;https://media/Images/000001.png"}, f.lines()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	// discovery folded $0844 onto $0044 and added the frame sentinel:
	if diff := cmp.Diff([]uint16{0x0044, 0x0300, 0x07FE, registry.FrameSentinel}, f.s.reg.Addresses()); diff != "" {
		t.Errorf("watched mismatch (-want +got):\n%s", diff)
	}
	if _, ok := f.eng.reader.(registry.LiveReader); !ok {
		t.Errorf("engine reader is %T, expected registry.LiveReader", f.eng.reader)
	}
}

func TestSession_Monitor(t *testing.T) {
	f := newFixture(t)
	f.monitor(t)
	f.lines()
	tx := f.s.ch.Sender()

	// a write to unwatched high memory does not look like a reset:
	tx.Push(xcore.Event{Address: 0x6000, Data: 1})
	f.s.Step(f.clk.now())
	if lines := f.lines(); len(lines) != 0 {
		t.Fatalf("unexpected output %q", lines)
	}

	// a mirrored RAM write is reported once and lands in the snapshot:
	tx.Push(xcore.Event{Address: 0x0844, Data: 0x5A})
	tx.Push(xcore.Event{Address: 0x0300, Data: 0x11})
	f.s.Step(f.clk.now())
	f.s.Step(f.clk.now())
	if diff := cmp.Diff([]string{"NES_RESETED"}, f.lines()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	buf := make([]byte, 1)
	for addr, want := range map[uint32]byte{0x0044: 0x5A, 0x0300: 0x11} {
		f.eng.reader.ReadMemory(addr, buf)
		if buf[0] != want {
			t.Errorf("snapshot[$%04X], actual = %#x, expected = %#x", addr, buf[0], want)
		}
	}
	if f.eng.frames != 0 {
		t.Fatalf("frames, actual = %v, expected = 0", f.eng.frames)
	}

	// the sentinel ticks the engine:
	tx.Push(xcore.Event{Address: registry.FrameSentinel})
	f.clk.advance(10 * time.Millisecond)
	f.s.Step(f.clk.now())
	if actual, expected := f.eng.frames, 1; actual != expected {
		t.Fatalf("frames, actual = %v, expected = %v", actual, expected)
	}

	// one event per step:
	tx.Push(xcore.Event{Address: 0x0300, Data: 1})
	tx.Push(xcore.Event{Address: 0x0300, Data: 2})
	f.s.Step(f.clk.now())
	if actual, expected := f.s.rx.Len(), 1; actual != expected {
		t.Errorf("channel len, actual = %v, expected = %v", actual, expected)
	}
	f.s.Step(f.clk.now())

	// no sentinel for longer than the fallback interval:
	f.clk.advance(18 * time.Millisecond)
	f.s.Step(f.clk.now())
	if actual, expected := f.eng.frames, 1; actual != expected {
		t.Fatalf("frames at exactly 18ms, actual = %v, expected = %v", actual, expected)
	}
	f.clk.advance(time.Millisecond)
	f.s.Step(f.clk.now())
	if actual, expected := f.eng.frames, 2; actual != expected {
		t.Fatalf("frames, actual = %v, expected = %v", actual, expected)
	}

	if lines := f.lines(); len(lines) != 0 {
		t.Errorf("reset reported twice: %q", lines)
	}
}

func TestSession_Notifications(t *testing.T) {
	f := newFixture(t)
	f.monitor(t)
	f.lines()

	a := f.eng.game.Achievements[0]
	for i := 0; i < 6; i++ {
		f.eng.h(cheevos.Event{Type: cheevos.EventAchievementTriggered, Achievement: a})
	}
	if actual, expected := f.s.queue.Len(), 5; actual != expected {
		t.Fatalf("queue, actual = %v, expected = %v", actual, expected)
	}

	// a request in flight holds notifications back:
	f.eng.d.Dispatch(cheevos.Request{Method: "POST", URL: "u", Body: "b"}, nil)
	f.s.Step(f.clk.now())
	if diff := cmp.Diff([]string{"REQ=00;M:POST;U:u;D:b"}, f.lines()); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}

	// until it times out:
	f.clk.advance(30*time.Second + time.Millisecond)
	f.s.Step(f.clk.now())
	want := "A=7;First Blood;" + a.BadgeURL()
	if diff := cmp.Diff([]string{want}, f.lines()); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
	if actual, expected := f.s.requests.InFlight(), 0; actual != expected {
		t.Errorf("InFlight(), actual = %v, expected = %v", actual, expected)
	}

	// one per step:
	f.s.Step(f.clk.now())
	f.s.Step(f.clk.now())
	if actual, expected := len(f.lines()), 2; actual != expected {
		t.Errorf("lines, actual = %v, expected = %v", actual, expected)
	}
	if actual, expected := f.s.queue.Len(), 2; actual != expected {
		t.Errorf("queue, actual = %v, expected = %v", actual, expected)
	}

	// the late response is dropped:
	f.send("RESP=00;0C8;{}")
	if actual, expected := f.s.Status().Stale, uint64(1); actual != expected {
		t.Errorf("stale, actual = %v, expected = %v", actual, expected)
	}
}

func TestSession_Reset(t *testing.T) {
	f := newFixture(t)
	f.send("READ_CRC")
	f.monitor(t)
	f.eng.h(cheevos.Event{Type: cheevos.EventAchievementTriggered, Achievement: f.eng.game.Achievements[0]})
	f.s.ch.Sender().Push(xcore.Event{Address: 0x0300, Data: 1})
	f.lines()

	f.send("RESET")

	if actual, expected := f.s.State(), Idle; actual != expected {
		t.Errorf("state, actual = %v, expected = %v", actual, expected)
	}
	if !f.eng.closed {
		t.Error("engine not closed")
	}
	st := f.s.Status()
	if diff := cmp.Diff(Status{State: Idle, Pending: []uint8{}, Queued: []uint32{}, User: "alice", SamplerStarts: 0}, st); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
	if lines := f.lines(); len(lines) != 0 {
		t.Errorf("unexpected output %q", lines)
	}

	// credentials survive a reset but the game hash does not:
	f.send("START_WATCH")
	if actual, expected := f.s.State(), Idle; actual != expected {
		t.Errorf("state, actual = %v, expected = %v", actual, expected)
	}
}

// TestSession_OversizedLineTail feeds a response body longer than the line
// limit that ends in a command; the tail must not reach HandleLine.
func TestSession_OversizedLineTail(t *testing.T) {
	f := newFixture(t)
	f.monitor(t)
	f.lines()

	fr := protocol.NewFramer(protocol.MaxLine)
	in := "RESP=07;0C8;" + strings.Repeat("x", protocol.MaxLine-12) + "RESET\r\n"
	overflows := 0
	for i := 0; i < len(in); i++ {
		line, ok, err := fr.Feed(in[i])
		if err != nil {
			overflows++
		}
		if ok {
			f.s.HandleLine(line)
		}
	}

	if actual, expected := overflows, 1; actual != expected {
		t.Errorf("overflows, actual = %d, expected = %d", actual, expected)
	}
	if actual, expected := f.s.State(), Monitoring; actual != expected {
		t.Errorf("state, actual = %v, expected = %v", actual, expected)
	}
}

// stalledSource never produces a word until it is cancelled.
type stalledSource struct {
	reading chan struct{}
}

func (s *stalledSource) ReadWords(ctx context.Context, dst []uint32) (int, error) {
	select {
	case s.reading <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestSession_ResetWithStalledSource(t *testing.T) {
	f := newFixture(t)
	src := &stalledSource{reading: make(chan struct{}, 1)}
	f.s.cfg.Source = src
	f.monitor(t)
	<-src.reading

	done := make(chan struct{})
	go func() {
		f.send("RESET")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("RESET blocked on the bus source")
	}

	if actual, expected := f.s.State(), Idle; actual != expected {
		t.Errorf("state, actual = %v, expected = %v", actual, expected)
	}
}
