package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"example.com/sketch-mvp/internal/app"
	"example.com/sketch-mvp/internal/config"
	"example.com/sketch-mvp/internal/logging"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logging.NewLogger(cfg.Log.Debug, cfg.Log.Format)
	defer func() { _ = log.Sync() }()
	ctx = logging.WithLogger(ctx, log)

	if len(args) > 0 && args[0] == "migrate" {
		return runMigrations(ctx, cfg)
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}
