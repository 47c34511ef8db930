package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dd0wney/cluso-twinsec/pkg/api"
	"github.com/dd0wney/cluso-twinsec/pkg/config"
	"github.com/dd0wney/cluso-twinsec/pkg/logging"
	"github.com/dd0wney/cluso-twinsec/pkg/sim"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (defaults apply if empty)")
	listenAddr := flag.String("listen", "", "Override API listen address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}
	if envPort := os.Getenv("PORT"); envPort != "" && *listenAddr == "" {
		cfg.Server.ListenAddr = ":" + envPort
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

	server := api.NewServer(engine, cfg.Server, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := engine.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("simulation aborted", logging.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("shutting down")
		cancel()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", logging.Error(err))
		}
	}()

	logger.Info("server starting",
		logging.String("addr", cfg.Server.ListenAddr),
		logging.Int("entities", cfg.Simulation.EntityCount),
	)
	if err := server.Start(); err != nil {
		logger.Error("server error", logging.Error(err))
		os.Exit(1)
	}

	engine.Stop()
	fmt.Println(engine.Report().String())
}
