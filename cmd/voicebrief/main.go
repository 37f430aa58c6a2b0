package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"VoiceBrief/internal/app"
	"VoiceBrief/internal/config"
	"VoiceBrief/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application := app.New(cfg, logger)

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}
