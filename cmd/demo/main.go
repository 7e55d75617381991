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

	flag.StringVar(&cfg.Demo.Port, "port", cfg.Demo.Port, "Demo server port")
	flag.StringVar(&cfg.Demo.ModelsDir, "models", cfg.Demo.ModelsDir, "Directory of model artifacts")
	flag.Parse()

	logger := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)
	demo := server.NewDemoServer(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := demo.Run(ctx); err != nil {
		logger.Error("Demo server stopped with error", zap.Error(err))
		os.Exit(1)
	}
}
