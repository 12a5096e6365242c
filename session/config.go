package session

import (
	"time"

	"nesra/bus"
	"nesra/cartridge"
	"nesra/cheevos"
	"nesra/protocol"
	"nesra/xcore"
)

// Engine is the achievement engine the session drives.
type Engine interface {
	SetReader(r cheevos.MemoryReader)
	BeginLogin(user, token string)
	BeginLoadGame(hash string)
	Resume(k cheevos.Continuation, rsp cheevos.Response)
	Discover()
	DoFrame()
	Game() *cheevos.Game
	Close()
}

type EngineFactory func(d cheevos.Dispatcher, h cheevos.Handler) Engine

type Config struct {
	ChannelCapacity int
	BufferWords     int
	RequestSlots    int
	RequestTimeout  time.Duration
	// FrameInterval is the longest the engine goes without a frame tick while monitoring.
	FrameInterval time.Duration
	MaxLine       int
	// TelemetryFrames is how many sentinel frames pass between channel telemetry lines.
	TelemetryFrames uint64

	Version  string
	Hardcore bool

	// Source supplies captured bus words once monitoring starts.
	Source bus.Source
	// Cartridge is read to compute the fingerprint.
	Cartridge cartridge.PRGReader

	NewEngine EngineFactory
	Now       func() time.Time
}

func DefaultConfig() Config {
	return Config{
		ChannelCapacity: xcore.DefaultCapacity,
		BufferWords:     bus.DefaultBufferWords,
		RequestSlots:    protocol.DefaultSlots,
		RequestTimeout:  protocol.DefaultTimeout,
		FrameInterval:   18 * time.Millisecond,
		MaxLine:         protocol.MaxLine,
		TelemetryFrames: 1800,
		Version:         "dev",
	}
}

func (c *Config) setDefaults() {
	def := DefaultConfig()
	if c.ChannelCapacity <= 0 {
		c.ChannelCapacity = def.ChannelCapacity
	}
	if c.BufferWords <= 0 {
		c.BufferWords = def.BufferWords
	}
	if c.RequestSlots <= 0 {
		c.RequestSlots = def.RequestSlots
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.FrameInterval <= 0 {
		c.FrameInterval = def.FrameInterval
	}
	if c.MaxLine <= 0 {
		c.MaxLine = def.MaxLine
	}
	if c.TelemetryFrames == 0 {
		c.TelemetryFrames = def.TelemetryFrames
	}
	if c.Version == "" {
		c.Version = def.Version
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.NewEngine == nil {
		hardcore := c.Hardcore
		c.NewEngine = func(d cheevos.Dispatcher, h cheevos.Handler) Engine {
			e := cheevos.New(d, h)
			e.SetHardcore(hardcore)
			return e
		}
	}
}
