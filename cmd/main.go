package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"faq-agent/handler"
	"faq-agent/internal/app"
	"faq-agent/internal/config"
	"faq-agent/internal/observability"
	"faq-agent/internal/web"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(observability.New(cfg.LogLevel))

	// ---- Clients + use case ----
	askService, err := app.NewAskService(ctx, cfg)
	if err != nil {
		slog.Error("failed to create ask service", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := handler.NewHandler(askService, web.PageData{Title: cfg.UI.Title, Subtitle: cfg.UI.Subtitle})
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
