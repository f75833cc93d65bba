package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/V4T54L/classroll/internal/adapter/repository/postgres"
	"github.com/V4T54L/classroll/internal/pkg/config"
	"github.com/V4T54L/classroll/internal/pkg/logger"
)

func main() {
	down := flag.Int("down", 0, "roll back this many migrations instead of migrating up")
	flag.Parse()

	cfg, err := config.LoadMigration()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)

	if *down > 0 {
		log.Info("rolling back migrations", "steps", *down)
		err = postgres.MigrateDown(cfg.PostgresURL, *down, log)
	} else {
		log.Info("applying migrations")
		err = postgres.Migrate(cfg.PostgresURL, log)
	}
	if err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
}
