package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ght123247/UIproj"
)

// Raises an alarm when the tool wear crosses a threshold, next to the
// regular dashboard.
func main() {
	cfg, err := motordash.LoadConfig("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	sink, samples, closeSamples := motordash.NewChannelSink("wear-alarm", 32)
	defer closeSamples()

	go wearWorker(80, samples)

	rt, err := motordash.NewRuntime(cfg, motordash.WithSink(sink))
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rt.Run(ctx); err != nil {
		log.Fatalf("runtime error: %v", err)
	}
}

func wearWorker(threshold float64, samples <-chan motordash.Sample) {
	alarmed := false
	for s := range samples {
		if !s.HasVibration {
			continue
		}
		switch {
		case s.ToolWear >= threshold && !alarmed:
			alarmed = true
			fmt.Printf("[%s] tool wear %.0f%% reached threshold %.0f%%\n", s.ReceivedAt.Format(time.RFC3339), s.ToolWear, threshold)
		case s.ToolWear < threshold && alarmed:
			alarmed = false
			fmt.Printf("[%s] tool wear back to %.0f%%\n", s.ReceivedAt.Format(time.RFC3339), s.ToolWear)
		}
	}
}
