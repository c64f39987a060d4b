package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"clarity-agent/handler"
	"clarity-agent/internal/app"
	"clarity-agent/internal/config"
	"clarity-agent/internal/logger"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		fatal(zap.NewExample(), "failed to load configuration", err)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fatal(zap.NewExample(), "failed to create logger", err)
	}
	defer func() { _ = log.Sync() }()

	// ---- Pipeline ----
	// Nothing scrapes a Lambda, so counters are only wired in the dev server.
	answerer, closeFn, err := app.NewAnswerer(ctx, cfg, app.Deps{Logger: log})
	if err != nil {
		fatal(log, "failed to build answer pipeline", err)
	}
	defer closeFn()

	// ---- Handler ----
	h, err := handler.NewHandler(answerer, handler.WithLogger(log))
	if err != nil {
		fatal(log, "failed to create handler", err)
	}

	lambda.Start(h.Handle)
}

func fatal(log *zap.Logger, msg string, err error) {
	log.Error(msg, zap.Error(err))
	_ = log.Sync()
	os.Exit(1)
}
