package main

import (
	"context"
	"os"
	"os/signal"
)

func createSystray() {
	// no tray here; show the logs and keep polling until interrupted:
	openLogs()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	poll(ctx, func(string) {})
}
