package main

import (
	"log/slog"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
)

const (
	statsviewAddr = "localhost:12600"
	statsviewPath = "/debug/statsview"
)

// launchStatsview starts the runtime stats viewer (heap, goroutines, GC) in
// its own goroutine. It runs until the process exits.
func launchStatsview(logger *slog.Logger) {
	go func() {
		viewer.SetConfiguration(viewer.WithAddr(statsviewAddr))
		mgr := statsview.New()
		mgr.Start()
	}()

	logger.Info("statsview available", "url", "http://"+statsviewAddr+statsviewPath)
}
