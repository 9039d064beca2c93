// migrate runs DB migrations from embedded SQL; use with go run ./cmd/migrate -direction up|down.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"user-directory/internal/config"
	"user-directory/internal/db/migrate"
	"user-directory/internal/logger"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.StoreDriver != config.DriverPostgres {
		log.Fatal("migrations apply to the postgres store only", zap.String("store_driver", cfg.StoreDriver))
	}
	dir, err := migrate.ParseDirection(*direction)
	if err != nil {
		log.Fatal("invalid direction", zap.Error(err))
	}

	res, err := migrate.Run(cfg.DatabaseURL, dir)
	if err != nil {
		log.Fatal("migrate failed", zap.Error(err))
	}
	log.Info("migrate done",
		zap.String("direction", string(dir)),
		zap.Uint("version", res.Version),
		zap.Bool("dirty", res.Dirty),
		zap.Bool("changed", res.Changed))
}
