package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ght123247/UIproj/pkg/motordash"
)

func main() {
	cfg, err := motordash.LoadConfig("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	callback := func(s motordash.Sample) error {
		log.Printf("%s rpm=%.0f torque=%.0fmN·m health=%.0f",
			s.ReceivedAt.Format(time.RFC3339Nano),
			s.RPM,
			s.TorqueDisplay(),
			s.HealthIndex,
		)
		return nil
	}

	rt, err := motordash.NewRuntime(cfg, motordash.WithSink(motordash.NewCallbackSink("stdout", callback)))
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rt.Run(ctx); err != nil {
		log.Fatalf("runtime error: %v", err)
	}
}
