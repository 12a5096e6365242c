//go:build !linux
// +build !linux

package main

import (
	"context"
	"fmt"

	"github.com/getlantern/systray"
)

func createSystray() {
	systray.Run(trayStart, trayExit)
}

func trayExit() {
	fmt.Println("Finished quitting")
}

func trayStart() {
	systray.SetTitle("NESRA")
	systray.SetTooltip("NESRA - NES achievements adapter")
	mStatus := systray.AddMenuItem("adapter not running", "Adapter status")
	mStatus.Disable()
	systray.AddSeparator()
	mReset := systray.AddMenuItem("Reset session", "Return the adapter to idle")
	mLogs := systray.AddMenuItem("Open logs", "Opens the log folder")
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit")

	ctx, cancel := context.WithCancel(context.Background())
	go poll(ctx, func(status string) {
		mStatus.SetTitle(status)
		systray.SetTooltip("NESRA - " + status)
	})

	go func() {
		for {
			select {
			case <-mReset.ClickedCh:
				resetSession()
			case <-mLogs.ClickedCh:
				openLogs()
			case <-mQuit.ClickedCh:
				fmt.Println("Requesting quit")
				cancel()
				systray.Quit()
				return
			}
		}
	}()
}
