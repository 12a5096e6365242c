package cheevos

import (
	"log"
)

const maxAwardAttempts = 3

// Engine evaluates achievement conditions against console memory once per
// frame and talks to the achievement server through a Dispatcher.
// Engine is not safe for concurrent use.
type Engine struct {
	d       Dispatcher
	handler Handler
	rt      *runtime

	hardcore bool
	user     string
	token    string
	loggedIn bool

	game  *Game
	frame uint64
}

func New(d Dispatcher, handler Handler) *Engine {
	if handler == nil {
		handler = func(Event) {}
	}
	return &Engine{
		d:       d,
		handler: handler,
		rt:      newRuntime(),
	}
}

func (e *Engine) SetReader(r MemoryReader) { e.rt.reader = r }

func (e *Engine) SetHardcore(hardcore bool) { e.hardcore = hardcore }

func (e *Engine) Game() *Game { return e.game }

func (e *Engine) LoggedIn() bool { return e.loggedIn }

func (e *Engine) User() string { return e.user }

func (e *Engine) Close() {
	e.rt.close()
}

// BeginLogin starts a token login. Completion is reported as EventLoggedIn or EventLoginFailed.
func (e *Engine) BeginLogin(user, token string) {
	e.user, e.token = user, token
	e.loggedIn = false
	e.d.Dispatch(e.loginRequest(), loginK{})
}

// BeginLoadGame resolves hash to a game and loads its achievement set.
// Completion is reported as EventGameLoaded or EventGameLoadFailed.
func (e *Engine) BeginLoadGame(hash string) {
	if !e.loggedIn {
		e.handler(Event{Type: EventGameLoadFailed, Err: ErrNotLoggedIn})
		return
	}
	e.game = nil
	e.d.Dispatch(e.gameIDRequest(hash), gameIDK{hash: hash})
}

// Resume continues the operation k with the server's response.
func (e *Engine) Resume(k Continuation, rsp Response) {
	switch k := k.(type) {
	case loginK:
		e.resumeLogin(rsp)
	case gameIDK:
		e.resumeGameID(k, rsp)
	case patchK:
		e.resumePatch(k, rsp)
	case startSessionK:
		e.resumeStartSession(k, rsp)
	case awardK:
		e.resumeAward(k, rsp)
	default:
		log.Printf("cheevos: response for unknown operation %v\n", k)
	}
}

func (e *Engine) resumeLogin(rsp Response) {
	var r loginResponse
	if err := decode(rsp, &r); err != nil {
		e.handler(Event{Type: EventLoginFailed, Err: err})
		return
	}
	if r.Token != "" {
		e.token = r.Token
	}
	if r.User != "" {
		e.user = r.User
	}
	e.loggedIn = true
	log.Printf("cheevos: logged in as %s (score %d)\n", e.user, r.Score)
	e.handler(Event{Type: EventLoggedIn})
}

func (e *Engine) resumeGameID(k gameIDK, rsp Response) {
	var r gameIDResponse
	if err := decode(rsp, &r); err != nil {
		e.handler(Event{Type: EventGameLoadFailed, Err: err})
		return
	}
	if r.GameID == 0 {
		e.handler(Event{Type: EventGameLoadFailed, Err: errUnknownGame(k.hash)})
		return
	}
	e.d.Dispatch(e.patchRequest(r.GameID), patchK{hash: k.hash, gameID: r.GameID})
}

func (e *Engine) resumePatch(k patchK, rsp Response) {
	var r patchResponse
	if err := decode(rsp, &r); err != nil {
		e.handler(Event{Type: EventGameLoadFailed, Err: err})
		return
	}

	p := &r.PatchData
	g := &Game{
		ID:    p.ID,
		Hash:  k.hash,
		Title: p.Title,
	}
	if g.ID == 0 {
		g.ID = k.gameID
	}
	if p.ImageIcon != "" {
		g.ImageURL = MediaHost + p.ImageIcon
	}

	for _, ra := range p.Achievements {
		if ra.Flags != flagCore {
			continue
		}
		a := &Achievement{
			ID:          ra.ID,
			Title:       ra.Title,
			Description: ra.Description,
			Points:      ra.Points,
			BadgeName:   ra.BadgeName,
			MemAddr:     ra.MemAddr,
		}
		c, err := e.rt.compile(a.Title, a.MemAddr)
		if err != nil {
			log.Printf("cheevos: achievement %d %q disabled: %v\n", a.ID, a.Title, err)
			continue
		}
		a.cond = c
		g.Achievements = append(g.Achievements, a)
	}

	e.d.Dispatch(e.startSessionRequest(g), startSessionK{game: g})
}

func (e *Engine) resumeStartSession(k startSessionK, rsp Response) {
	var r startSessionResponse
	if err := decode(rsp, &r); err != nil {
		e.handler(Event{Type: EventGameLoadFailed, Err: err})
		return
	}

	unlocks := r.Unlocks
	if e.hardcore {
		unlocks = r.HardcoreUnlocks
	}
	for _, u := range unlocks {
		if a := k.game.Achievement(u.ID); a != nil {
			a.Unlocked = true
		}
	}

	e.game = k.game
	e.frame = 0
	log.Printf("cheevos: loaded game %d %q with %d achievements (%d unlocked)\n", e.game.ID, e.game.Title, len(e.game.Achievements), len(unlocks))
	e.handler(Event{Type: EventGameLoaded, Game: e.game})
}

func (e *Engine) resumeAward(k awardK, rsp Response) {
	var r awardResponse
	err := decode(rsp, &r)
	if err == nil {
		return
	}
	if rsp.Retryable() && k.attempt+1 < maxAwardAttempts {
		log.Printf("cheevos: award %d: %v; retrying\n", k.achievementID, err)
		e.d.Dispatch(e.awardRequest(k.achievementID), awardK{achievementID: k.achievementID, attempt: k.attempt + 1})
		return
	}
	e.handler(Event{Type: EventServerError, Achievement: e.game.Achievement(k.achievementID), Err: err})
}

// Discover runs one evaluation pass over every condition without changing
// any achievement state, so the reader sees every address the set depends on.
func (e *Engine) Discover() {
	if e.game == nil {
		return
	}
	for _, a := range e.game.Achievements {
		if _, err := e.rt.eval(a.cond); err != nil {
			log.Printf("cheevos: achievement %d: %v\n", a.ID, err)
		}
	}
	e.rt.discard()
}

// DoFrame evaluates every locked achievement. An achievement triggers when its
// condition holds after having been observed false at least once.
func (e *Engine) DoFrame() {
	if e.game == nil {
		return
	}
	e.frame++

	for _, a := range e.game.Achievements {
		if a.Unlocked {
			continue
		}
		ok, err := e.rt.eval(a.cond)
		if err != nil {
			log.Printf("cheevos: achievement %d: %v\n", a.ID, err)
			continue
		}
		if !ok {
			a.primed = true
			continue
		}
		if !a.primed {
			continue
		}

		a.Unlocked = true
		e.handler(Event{Type: EventAchievementTriggered, Game: e.game, Achievement: a})
		e.d.Dispatch(e.awardRequest(a.ID), awardK{achievementID: a.ID})
	}
	e.rt.endFrame()
}

// Frames returns the number of evaluation passes since the game loaded.
func (e *Engine) Frames() uint64 { return e.frame }
