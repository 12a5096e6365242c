package session

import "fmt"

type State int

const (
	Idle State = iota
	CalculatingFingerprint
	Identified
	LoggingIn
	LoadingGame
	Monitoring
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case CalculatingFingerprint:
		return "calculating-fingerprint"
	case Identified:
		return "identified"
	case LoggingIn:
		return "logging-in"
	case LoadingGame:
		return "loading-game"
	case Monitoring:
		return "monitoring"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Trigger is an input to the state machine.
type Trigger int

const (
	TriggerReadCRC Trigger = iota
	TriggerFingerprintRead
	TriggerFingerprintFailed
	TriggerStartWatch
	TriggerLoggedIn
	TriggerLoginFailed
	TriggerGameLoaded
	TriggerGameLoadFailed
	TriggerReset
)

func (t Trigger) String() string {
	switch t {
	case TriggerReadCRC:
		return "read-crc"
	case TriggerFingerprintRead:
		return "fingerprint-read"
	case TriggerFingerprintFailed:
		return "fingerprint-failed"
	case TriggerStartWatch:
		return "start-watch"
	case TriggerLoggedIn:
		return "logged-in"
	case TriggerLoginFailed:
		return "login-failed"
	case TriggerGameLoaded:
		return "game-loaded"
	case TriggerGameLoadFailed:
		return "game-load-failed"
	case TriggerReset:
		return "reset"
	}
	return fmt.Sprintf("Trigger(%d)", int(t))
}

// Effect is a side effect the session performs after a transition.
type Effect int

const (
	EffectReadFingerprint Effect = iota
	EffectReportFingerprint
	EffectBeginLogin
	EffectLoadGame
	EffectReportGame
	EffectReportGameFailed
	EffectStartMonitoring
	EffectTeardown
)

func (e Effect) String() string {
	switch e {
	case EffectReadFingerprint:
		return "read-fingerprint"
	case EffectReportFingerprint:
		return "report-fingerprint"
	case EffectBeginLogin:
		return "begin-login"
	case EffectLoadGame:
		return "load-game"
	case EffectReportGame:
		return "report-game"
	case EffectReportGameFailed:
		return "report-game-failed"
	case EffectStartMonitoring:
		return "start-monitoring"
	case EffectTeardown:
		return "teardown"
	}
	return fmt.Sprintf("Effect(%d)", int(e))
}

// Next returns the state following s on trigger t and the effects to perform, in order.
// Triggers that do not apply to s leave it unchanged with no effects.
func Next(s State, t Trigger) (State, []Effect) {
	if t == TriggerReset {
		return Idle, []Effect{EffectTeardown}
	}

	switch s {
	case Idle, Identified:
		switch t {
		case TriggerReadCRC:
			return CalculatingFingerprint, []Effect{EffectReadFingerprint}
		case TriggerStartWatch:
			return LoggingIn, []Effect{EffectBeginLogin}
		}
	case CalculatingFingerprint:
		switch t {
		case TriggerFingerprintRead:
			return Identified, []Effect{EffectReportFingerprint}
		case TriggerFingerprintFailed:
			return Idle, nil
		}
	case LoggingIn:
		switch t {
		case TriggerLoggedIn:
			return LoadingGame, []Effect{EffectLoadGame}
		case TriggerLoginFailed:
			return Identified, nil
		}
	case LoadingGame:
		switch t {
		case TriggerGameLoaded:
			return Monitoring, []Effect{EffectReportGame, EffectStartMonitoring}
		case TriggerGameLoadFailed:
			return Identified, []Effect{EffectReportGameFailed}
		}
	}
	return s, nil
}
