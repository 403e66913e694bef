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

	"projectflow/internal/ai"
	"projectflow/internal/config"
	"projectflow/internal/handler"
	"projectflow/internal/httpserver"
	"projectflow/internal/realtime"
	"projectflow/internal/repository"
	"projectflow/internal/service"
	"projectflow/pkg/db"
	"projectflow/pkg/logger"
	"projectflow/pkg/mq"
	"projectflow/pkg/outbox"
	redisclient "projectflow/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("failed to load config: %v", err)
	}

	log := logger.NewLoggerWithConfig(cfg.Log)
	defer log.Sync()

	log.Info("Starting projectflow api...",
		zap.String("port", cfg.Server.Port),
		zap.String("db_host", cfg.DB.Host),
		zap.String("mq_url", cfg.MQ.URL),
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

	// MQ Publisher
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Repositories
	userRepo := repository.NewUserRepository(dbConn, log)
	projectRepo := repository.NewProjectRepository(dbConn, log)
	taskRepo := repository.NewTaskRepository(dbConn, log)
	notificationRepo := repository.NewNotificationRepository(dbConn, log)
	outboxRepo := outbox.NewRepository(dbConn)

	// AI
	aiClient := ai.NewClient(cfg.AI, log)
	analyzer := ai.NewAnalyzer(aiClient, ai.NewRedisCache(rdb), time.Duration(cfg.AI.CacheTTLSeconds)*time.Second, log)

	// Services
	notificationService := service.NewNotificationService(notificationRepo, log)
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.TTL(), log)
	projectService := service.NewProjectService(projectRepo, taskRepo, userRepo, notificationService, log)
	taskService := service.NewTaskService(projectRepo, taskRepo, userRepo, notificationService, log)
	alertService := service.NewAlertService(projectRepo, taskRepo, log)
	aiService := service.NewAIService(projectRepo, taskRepo, analyzer, log)
	csvService := service.NewCSVService(projectRepo, taskRepo, userRepo, log)
	replayService := outbox.NewReplayService(outboxRepo, log)

	// Handlers
	handlers := httpserver.Handlers{
		Auth:         handler.NewAuthHandler(authService, cfg.JWT.SecureCookie, log),
		Project:      handler.NewProjectHandler(projectService, log),
		Task:         handler.NewTaskHandler(taskService, log),
		Alert:        handler.NewAlertHandler(alertService, log),
		AI:           handler.NewAIHandler(aiService, log),
		CSV:          handler.NewCSVHandler(csvService, log),
		Notification: handler.NewNotificationHandler(notificationService, realtime.NewHub(rdb, log), log),
		Admin:        handler.NewAdminHandler(replayService, log),
	}
	authCfg := httpserver.AuthConfig{
		Secret:       cfg.JWT.Secret,
		SecureCookie: cfg.JWT.SecureCookie,
		Refresher:    authService,
	}
	router := httpserver.NewRouter(handlers, authCfg, log, dbConn, publisher)

	// Outbox Dispatcher
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dispatcher := outbox.NewDispatcher(outboxRepo, publisher, log).
		WithMaxRetries(cfg.Outbox.MaxRetries).
		WithInterval(cfg.Outbox.Interval())
	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		dispatcher.Start(ctx)
	}()

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down projectflow api gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	cancel()
	<-dispatcherDone

	log.Info("projectflow api shutdown complete")
}
