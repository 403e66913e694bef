package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"projectflow/internal/config"
	"projectflow/internal/httpserver"
	"projectflow/internal/model"
	"projectflow/internal/mqhandler"
	"projectflow/internal/realtime"
	"projectflow/internal/repository"
	"projectflow/pkg/db"
	"projectflow/pkg/logger"
	"projectflow/pkg/mq"
	redisclient "projectflow/pkg/redis"
	"projectflow/pkg/util"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("failed to load config: %v", err)
	}

	log := logger.NewLoggerWithConfig(cfg.Log)
	defer log.Sync()

	log.Info("Starting projectflow notifier...",
		zap.String("db_host", cfg.DB.Host),
		zap.String("mq_url", cfg.MQ.URL),
		zap.String("queue", cfg.Notifier.Queue),
	)

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	// Redis
	rdb := redisclient.NewRedisClient(cfg.Redis, log)
	defer rdb.Close()

	userRepo := repository.NewUserRepository(dbConn, log)
	deduper := util.NewDeduperWithLogger(rdb, cfg.Notifier.DedupTTL(), log)
	senders := map[string]mqhandler.Sender{
		model.ChannelWhatsApp: mqhandler.NewWhatsAppSender(log),
		model.ChannelEmail:    mqhandler.NewEmailSender(log),
	}
	notificationCreatedHandler := mqhandler.NewNotificationCreatedHandler(userRepo, deduper, senders, realtime.NewHub(rdb, log), log)

	// MQ Consumer for notification.created
	log.Info("Initializing MQ consumer for notification.created...",
		zap.String("queue", cfg.Notifier.Queue),
		zap.String("routing_key", mq.RoutingNotificationCreated),
	)
	consumer, err := mq.NewConsumer(cfg.MQ.URL, cfg.Notifier.Queue, mq.RoutingNotificationCreated, "notifier", log)
	if err != nil {
		log.Fatal("Failed to init consumer", zap.Error(err))
	}
	defer consumer.Close()

	consumer.SetHandler(notificationCreatedHandler.Handle)

	go func() {
		log.Info("Starting notification.created consumer...")
		if err := consumer.StartConsuming(); err != nil {
			log.Fatal("Notification consumer failed", zap.Error(err))
		}
	}()

	// HTTP Server (for health checks)
	srv := &http.Server{
		Addr:              cfg.Notifier.HealthPort,
		Handler:           httpserver.NewHealthRouter(log, dbConn, consumer),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Notifier.HealthPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("projectflow notifier is fully initialized and running")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down notifier gracefully...")

	consumer.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	log.Info("projectflow notifier shutdown complete")
}
