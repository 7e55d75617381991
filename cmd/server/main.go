package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/ServiceHub/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/infrastructure/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags override the environment
	flag.StringVar(&cfg.Server.Port, "port", cfg.Server.Port, "Server port")
	flag.StringVar(&cfg.Store.Path, "db", cfg.Store.Path, "Service store path")
	flag.StringVar(&cfg.Store.SeedDir, "seed", cfg.Store.SeedDir, "Directory of service definitions to seed an empty registry")
	dev := flag.Bool("dev", cfg.Logging.Development, "Development mode (console logs, debug level)")
	flag.Parse()

	if *dev && !cfg.Logging.Development {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}
	if os.Getenv("THIS_PORT") == "" {
		cfg.Server.AdvertisePort = cfg.Server.Port
	}

	logger := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
