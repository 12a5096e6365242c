package cheevos

import (
	"errors"
	"fmt"
)

var ErrNotLoggedIn = errors.New("cheevos: not logged in")

// MemoryReader copies len(buf) bytes of console memory starting at address
// and returns the number of bytes read.
type MemoryReader interface {
	ReadMemory(address uint32, buf []byte) uint32
}

type Request struct {
	Method string
	URL    string
	Body   string
}

// StatusRetryableClientError marks a request the transport could not complete.
const StatusRetryableClientError = -1

type Response struct {
	Status int
	Body   []byte
}

func (r Response) Retryable() bool { return r.Status == StatusRetryableClientError }

// Continuation identifies the pending operation a request belongs to.
type Continuation interface {
	fmt.Stringer
	continuation()
}

// Dispatcher sends a request and later hands its response back through Engine.Resume.
type Dispatcher interface {
	Dispatch(req Request, k Continuation)
}

type loginK struct{}

type gameIDK struct {
	hash string
}

type patchK struct {
	hash   string
	gameID uint32
}

type startSessionK struct {
	game *Game
}

type awardK struct {
	achievementID uint32
	attempt       int
}

func (loginK) continuation()        {}
func (gameIDK) continuation()       {}
func (patchK) continuation()        {}
func (startSessionK) continuation() {}
func (awardK) continuation()        {}

func (loginK) String() string          { return "login" }
func (k gameIDK) String() string       { return "gameid " + k.hash }
func (k patchK) String() string        { return fmt.Sprintf("patch %d", k.gameID) }
func (k startSessionK) String() string { return fmt.Sprintf("startsession %d", k.game.ID) }
func (k awardK) String() string        { return fmt.Sprintf("award %d", k.achievementID) }

type EventType int

const (
	EventLoggedIn EventType = iota
	EventLoginFailed
	EventGameLoaded
	EventGameLoadFailed
	EventAchievementTriggered
	EventServerError
)

func (t EventType) String() string {
	switch t {
	case EventLoggedIn:
		return "logged-in"
	case EventLoginFailed:
		return "login-failed"
	case EventGameLoaded:
		return "game-loaded"
	case EventGameLoadFailed:
		return "game-load-failed"
	case EventAchievementTriggered:
		return "achievement-triggered"
	case EventServerError:
		return "server-error"
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

type Event struct {
	Type        EventType
	Game        *Game
	Achievement *Achievement
	Err         error
}

type Handler func(Event)

type Game struct {
	ID           uint32
	Hash         string
	Title        string
	ImageURL     string
	Achievements []*Achievement
}

// Achievement returns the achievement with the given id, or nil.
func (g *Game) Achievement(id uint32) *Achievement {
	if g == nil {
		return nil
	}
	for _, a := range g.Achievements {
		if a.ID == id {
			return a
		}
	}
	return nil
}

type Achievement struct {
	ID          uint32
	Title       string
	Description string
	Points      int
	BadgeName   string
	MemAddr     string
	Unlocked    bool

	primed bool
	cond   *condition
}

func (a *Achievement) BadgeURL() string {
	return fmt.Sprintf("%s/Badge/%s.png", MediaHost, a.BadgeName)
}

type errUnknownGame string

func (h errUnknownGame) Error() string { return "cheevos: unknown game hash " + string(h) }
