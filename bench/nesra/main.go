package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aybabtme/uniplot/histogram"
	"golang.org/x/term"

	"nesra/bus"
	"nesra/cartridge"
	"nesra/registry"
	"nesra/sim"
	"nesra/util/env"
	"nesra/xcore"
)

const redrawEvery = 64

func main() {
	initConsole()

	buffers := env.IntOrDefault("NESRA_BENCH_BUFFERS", 2048)
	words := env.IntOrDefault("NESRA_BENCH_WORDS", bus.DefaultBufferWords)

	rom := sim.DemoROM()
	if path := env.GetOrDefault("NESRA_ROM", ""); path != "" {
		var err error
		if rom, err = cartridge.Load(path); err != nil {
			log.Fatal(err)
		}
	}
	console, err := sim.New(rom)
	if err != nil {
		log.Fatal(err)
	}

	// the demo program's stores plus the frame sentinel:
	reg := registry.New()
	for _, a := range []uint32{0x0010, 0x0300, 0x4014} {
		reg.Record(a, 1)
	}
	ws := reg.Finalize()

	ch := xcore.New(xcore.DefaultCapacity)
	rx := ch.Receiver()
	s := bus.NewSampler(console, words, ws.Contains, ch.Sender())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	if interactive {
		fmt.Printf("\u001B[2J")
	}

	samples := make([]float64, 0, buffers)
	s.OnBuffer = func(d time.Duration) {
		samples = append(samples, float64(d.Microseconds()))
		if interactive && len(samples)%redrawEvery == 0 {
			fmt.Printf("\033[H\033[0m")
			draw(samples, s.Stats(), rx)
		}
		if len(samples) >= buffers {
			cancel()
		}
	}

	go func() {
		for ctx.Err() == nil {
			if _, ok := rx.Pop(); !ok {
				time.Sleep(time.Millisecond)
			}
		}
	}()

	t0 := time.Now()
	if err = s.Run(ctx, nil); err != nil {
		log.Printf("bench: %v\n", err)
	}
	elapsed := time.Since(t0)

	if interactive {
		fmt.Printf("\033[H\033[2J")
	}
	draw(samples, s.Stats(), rx)
	fmt.Printf("%d cpu cycles in %v\n", console.Cycles(), elapsed)
}

func draw(samples []float64, st bus.Stats, rx xcore.Receiver) {
	fmt.Printf("buffers %8d  events %10d  overruns %6d  dropped %6d\n", st.Buffers, st.Events, st.Overruns, rx.Dropped())
	fmt.Printf("decode time per buffer (us):\n")
	if len(samples) == 0 {
		return
	}
	h := histogram.Hist(12, samples)
	if err := histogram.Fprint(os.Stdout, h, histogram.Linear(50)); err != nil {
		log.Println(err)
	}
}
