package main

import (
	"context"
	stdlog "log"
	"time"

	"go.uber.org/zap"

	"projectflow/internal/config"
	"projectflow/internal/migrate"
	"projectflow/pkg/db"
	"projectflow/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("failed to load config: %v", err)
	}

	log := logger.NewLoggerWithConfig(cfg.Log)
	defer log.Sync()

	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	applied, err := migrate.Up(ctx, dbConn, log)
	if err != nil {
		log.Fatal("Migration failed", zap.Error(err))
	}
	log.Info("Migrations complete", zap.Int("applied", applied))
}
