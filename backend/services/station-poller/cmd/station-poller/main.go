package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"chargewatch/backend/libs/logging"
	"chargewatch/backend/services/station-poller/internal/app"
	"chargewatch/backend/services/station-poller/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := os.MkdirAll(cfg.Storage.OutputDir, 0o755); err != nil {
		logger.Fatal("failed to create output dir", zap.Error(err))
	}

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to init station poller", zap.Error(err))
	}
	defer application.Close()

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("station poller stopped with error", zap.Error(err))
		os.Exit(1)
	}
}
