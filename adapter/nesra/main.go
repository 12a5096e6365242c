package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"time"

	"nesra/cartridge"
	"nesra/diag"
	"nesra/link"
	"nesra/session"
	"nesra/sim"
	"nesra/util"
	"nesra/util/env"
)

// include these link drivers:
import (
	_ "nesra/link/serial"
	_ "nesra/link/udp"
	_ "nesra/link/ws"
)

var version = "dev"

// ntscHz is the 2A03 clock the simulated console is paced to.
const ntscHz = 1789773

func main() {
	defer func() {
		if err := recover(); err != nil {
			util.LogPanic(err)
			os.Exit(2)
		}
	}()

	if _, err := util.SetupLog(env.GetOrDefault("NESRA_LOG_DIR", ""), "nesra"); err != nil {
		log.Printf("%v\n", err)
	}
	defer util.FlushLogger()

	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("nesra: %v\n", err)
		_ = util.FlushLogger()
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rom := sim.DemoROM()
	if path := env.GetOrDefault("NESRA_ROM", ""); path != "" {
		var err error
		if rom, err = cartridge.Load(path); err != nil {
			return err
		}
		log.Printf("nesra: loaded %s: %d PRG banks, mapper %d\n", path, rom.Header.PRGBanks, rom.Header.Mapper)
	}
	console, err := sim.New(rom)
	if err != nil {
		return err
	}

	driver := env.GetOrDefault("NESRA_LINK_DRIVER", "serial")
	conn, err := link.Open(driver, env.GetOrDefault("NESRA_LINK_PORT", ""))
	if err != nil {
		log.Printf("nesra: drivers available: %v\n", link.Drivers())
		return err
	}
	defer conn.Close()

	cfg := session.DefaultConfig()
	cfg.Version = version
	cfg.Hardcore = util.IsTruthy(env.GetOrDefault("NESRA_HARDCORE", "0"))
	cfg.RequestTimeout = env.DurationOrDefault("NESRA_REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.Source = &paced{c: console}
	cfg.Cartridge = rom
	s := session.New(cfg, conn)

	if addr := env.GetOrDefault("NESRA_DIAG_LISTEN", diag.DefaultListen); addr != "-" {
		srv, err := diag.Listen(addr, diag.SessionTarget(s))
		if err != nil {
			log.Printf("nesra: diagnostics disabled: %v\n", err)
		} else {
			go func() {
				if err := srv.Serve(); err != nil {
					log.Printf("nesra: diag: %v\n", err)
				}
			}()
			defer srv.Stop()
		}
	}

	if util.IsTruthy(env.GetOrDefault("NESRA_STATSVIEW", "0")) {
		if diag.StatsviewAvailable() {
			diag.LaunchStatsview(log.Writer())
		} else {
			log.Printf("nesra: statsview not compiled in; rebuild with -tags statsview\n")
		}
	}

	log.Printf("nesra: %s running on %s link\n", version, driver)
	return s.Run(ctx, conn)
}

// paced holds the simulated console to roughly real NTSC speed, measured
// from the first read.
type paced struct {
	c     *sim.Console
	start time.Time
	base  uint64
}

func (p *paced) ReadWords(ctx context.Context, dst []uint32) (int, error) {
	if p.start.IsZero() {
		p.start, p.base = time.Now(), p.c.Cycles()
	}
	n, err := p.c.ReadWords(ctx, dst)
	elapsed := float64(p.c.Cycles()-p.base) / ntscHz
	due := p.start.Add(time.Duration(elapsed * float64(time.Second)))
	switch d := time.Until(due); {
	case d > 0:
		t := time.NewTimer(d)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return n, ctx.Err()
		}
	case d < -time.Second:
		// idle between sessions; do not race to catch up
		p.start, p.base = time.Now(), p.c.Cycles()
	}
	return n, err
}
