package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/skratchdot/open-golang/open"

	"nesra/diag"
	"nesra/util"
	"nesra/util/env"
)

const pollInterval = 2 * time.Second

var (
	client *diag.Client
	logDir string
)

func main() {
	logDir = env.GetOrDefault("NESRA_LOG_DIR", os.TempDir())
	if _, err := util.SetupLog(logDir, "nesra-tray"); err != nil {
		log.Printf("%v\n", err)
	}

	var err error
	client, err = diag.Dial(env.GetOrDefault("NESRA_DIAG_LISTEN", diag.DefaultListen))
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	createSystray()
}

// poll reports the adapter status line to update until ctx is done.
func poll(ctx context.Context, update func(status string)) {
	t := time.NewTicker(pollInterval)
	defer t.Stop()

	last := ""
	for {
		status := "adapter not running"
		rctx, cancel := context.WithTimeout(ctx, pollInterval)
		s, err := client.Status(rctx)
		cancel()
		if err == nil {
			status = diag.Summary(s)
		}
		if status != last {
			log.Printf("tray: %s\n", status)
			update(status)
			last = status
		}

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func resetSession() {
	ctx, cancel := context.WithTimeout(context.Background(), pollInterval)
	defer cancel()
	if err := client.Reset(ctx); err != nil {
		log.Println(err)
	}
}

func openLogs() {
	if err := open.Start(logDir); err != nil {
		log.Println(err)
	}
}
