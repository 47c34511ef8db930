package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dd0wney/cluso-twinsec/pkg/config"
	"github.com/dd0wney/cluso-twinsec/pkg/logging"
	"github.com/dd0wney/cluso-twinsec/pkg/sim"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (defaults apply if empty)")
	ticks := flag.Int("ticks", 0, "Run this many ticks and exit (0 = run until interrupted)")
	entities := flag.Int("entities", 0, "Override entity count")
	seed := flag.Int64("seed", 0, "Override random seed")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *entities > 0 {
		cfg.Simulation.EntityCount = *entities
	}
	if *seed != 0 {
		cfg.Simulation.Seed = *seed
	}

	logger := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(cfg.Logging.Level))

	engine, err := sim.NewEngine(cfg, logger)
	if err != nil {
		logger.Error("engine init failed", logging.Error(err))
		os.Exit(1)
	}

	if err := engine.Start(); err != nil {
		logger.Error("engine start failed", logging.Error(err))
		os.Exit(1)
	}

	logger.Info("simulation starting",
		logging.Int("entities", cfg.Simulation.EntityCount),
		logging.Int("ticks", *ticks),
	)

	if *ticks > 0 {
		// Fixed-length runs step synchronously instead of waiting on
		// the tick interval
		for i := 0; i < *ticks; i++ {
			if err := engine.Step(); err != nil {
				logger.Error("tick failed", logging.Error(err))
				os.Exit(1)
			}
		}
		engine.Stop()
	} else {
		ctx, cancel := context.WithCancel(context.Background())

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigChan
			logger.Info("shutting down")
			cancel()
		}()

		if err := engine.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("simulation aborted", logging.Error(err))
			os.Exit(1)
		}
	}

	fmt.Println(engine.Report().String())
}
