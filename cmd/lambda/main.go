package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"prompt-form/handler"
	"prompt-form/internal/app"
	"prompt-form/internal/config"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load("")
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger := app.NewLogger(os.Stdout, cfg)
	slog.SetDefault(logger)

	// ---- Server ----
	srv, err := app.NewServer(ctx, cfg, app.DefaultAWSConfig, logger)
	if err != nil {
		logger.Error("failed to create server", "err", err)
		os.Exit(1)
	}
	defer srv.Close()

	// ---- Handler ----
	h, err := handler.NewHandler(srv.Handler())
	if err != nil {
		logger.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
