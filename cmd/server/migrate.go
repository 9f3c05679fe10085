package main

import (
	"context"
	"errors"

	"example.com/sketch-mvp/internal/config"
	"example.com/sketch-mvp/internal/logging"
	"example.com/sketch-mvp/internal/migrate"
)

// runMigrations applies the embedded migrations and exits.
func runMigrations(ctx context.Context, cfg config.Config) error {
	if cfg.Postgres.URL == "" {
		return errors.New("migrate: POSTGRES_URL is empty")
	}
	log := logging.FromContext(ctx)
	log.Infow("running database migrations")
	if err := migrate.Up(ctx, cfg.Postgres.URL, log); err != nil {
		return err
	}
	log.Infow("database migrations applied")
	return nil
}
