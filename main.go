package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/SAP-F-2025/quiz-service/internal/ai"
	"github.com/SAP-F-2025/quiz-service/internal/cache"
	"github.com/SAP-F-2025/quiz-service/internal/config"
	"github.com/SAP-F-2025/quiz-service/internal/events"
	"github.com/SAP-F-2025/quiz-service/internal/handlers"
	"github.com/SAP-F-2025/quiz-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/quiz-service/internal/services"
	"github.com/SAP-F-2025/quiz-service/internal/utils"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
	"github.com/SAP-F-2025/quiz-service/pkg"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	slogLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	logger := utils.NewSlogLogger(slogLogger)

	// Initialize database
	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize Redis (if configured)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = pkg.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Redis unavailable, running without cache", "error", err)
			redisClient = nil
		}
	}

	// Initialize repositories
	repoManager := postgres.NewRepositoryManager(postgres.RepositoryConfig{
		DB:             db,
		RedisClient:    redisClient,
		CasdoorConfig:  cfg.Casdoor,
		LeaderboardTTL: cfg.LeaderboardTTL,
	})
	if err := repoManager.Initialize(); err != nil {
		log.Fatalf("Failed to initialize repositories: %v", err)
	}
	repo := repoManager.GetRepository()

	cacheManager := cache.NewCacheManager(redisClient)
	if cfg.LeaderboardTTL > 0 {
		cacheManager.LeaderboardTTL = cfg.LeaderboardTTL
	}

	// Event bus: Kafka when brokers are configured, in-process otherwise
	wmPublisher, wmSubscriber, err := events.NewPubSub(cfg.Kafka, slogLogger)
	if err != nil {
		log.Fatalf("Failed to initialize event bus: %v", err)
	}
	publisher := events.NewWatermillPublisher(wmPublisher, slogLogger)

	recommender, err := ai.NewRecommender(cfg.AI, slogLogger)
	if err != nil {
		log.Fatalf("Failed to initialize recommender: %v", err)
	}
	if !cfg.AI.Enabled() {
		logger.Info("AI recommendations disabled")
	}

	// Initialize services
	serviceManager := services.CreateProductionServiceManager(services.Dependencies{
		DB:          db,
		Repo:        repo,
		Cache:       cacheManager,
		Publisher:   publisher,
		Recommender: recommender,
		Logger:      slogLogger,
		Validator:   validator.New(),
	}, cfg.LeaderboardTTL, cfg.SubmissionGrace)
	if err := serviceManager.Initialize(context.Background()); err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	consumer, err := events.NewConsumer(wmSubscriber, slogLogger)
	if err != nil {
		log.Fatalf("Failed to initialize event consumer: %v", err)
	}
	if cfg.AI.Enabled() && cfg.AI.AutoGenerate {
		consumer.Handle("recommendations", events.TopicResultCompleted, serviceManager.Recommendation().HandleResultCompleted)
	}

	// subscribe before serving requests, the in-process bus does not replay
	runCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	if consumer.HasHandlers() {
		go func() {
			if err := consumer.Run(runCtx); err != nil {
				logger.Error("Event consumer stopped", "error", err)
			}
		}()
		<-consumer.Running()
	}

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handlers.SetupMiddleware(router, logger)

	authMiddleware := handlers.NewCasdoorAuthMiddleware(cfg.Casdoor, repo.User(), serviceManager.Profile(), logger)
	handlers.NewHandlerManager(serviceManager, authMiddleware, logger).SetupRoutes(router)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	stopConsumer()
	if err := consumer.Close(); err != nil {
		logger.Error("Failed to close event consumer", "error", err)
	}

	if err := serviceManager.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown services", "error", err)
	}
	// closes postgres and redis
	if err := repoManager.Shutdown(ctx); err != nil {
		logger.Error("Failed to close repositories", "error", err)
	}

	logger.Info("Server exited")
}
