package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"prompt-form/internal/app"
	"prompt-form/internal/config"
)

func main() {
	configFile := flag.String("config", "", "optional YAML config file (overrides CONFIG_FILE)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger := app.NewLogger(os.Stdout, cfg)
	slog.SetDefault(logger)

	srv, err := app.NewServer(ctx, cfg, app.DefaultAWSConfig, logger)
	if err != nil {
		logger.Error("failed to create server", "err", err)
		os.Exit(1)
	}

	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}
