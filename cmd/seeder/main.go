package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lucasmartins-br/fitgate/internal/app/seeder"
	"github.com/lucasmartins-br/fitgate/internal/config"
)

func main() {
	entriesPath := flag.String("entries", "./seed/exercises.json", "path to the catalog entries JSON file")
	flag.Parse()

	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logger.Info("starting seeder", slog.String("env", cfg.Env), slog.String("entries", *entriesPath))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := seeder.New(ctx, cfg, *entriesPath, logger)
	if err != nil {
		logger.Error("failed to initialize app", slog.Any("err", err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("seeding failed", slog.Any("err", err))
		os.Exit(1)
	}

	logger.Info("seeder finished")
}
