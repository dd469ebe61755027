package main

import (
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-service/internal/cache"
	"github.com/SAP-F-2025/quiz-service/internal/config"
	"github.com/SAP-F-2025/quiz-service/internal/events"
	"github.com/SAP-F-2025/quiz-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/quiz-service/internal/services"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
	"github.com/SAP-F-2025/quiz-service/pkg"
)

// backend is the subset of the service stack the commands need.
type backend struct {
	db          *gorm.DB
	leaderboard services.LeaderboardService
	groups      services.GroupService
	close       func()
}

// openBackend is swapped out in tests.
var openBackend = func(log *slog.Logger) (*backend, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	// migrate is an explicit command here
	cfg.AutoMigrate = false

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		return nil, err
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = pkg.NewRedisClient(cfg)
		if err != nil {
			log.Warn("Redis unavailable, leaderboards are computed without cache", "error", err)
			redisClient = nil
		}
	}

	b := newBackend(db, redisClient, postgres.RepositoryConfig{
		DB:             db,
		RedisClient:    redisClient,
		CasdoorConfig:  cfg.Casdoor,
		LeaderboardTTL: cfg.LeaderboardTTL,
	}, log)
	return b, nil
}

func newBackend(db *gorm.DB, redisClient *redis.Client, repoCfg postgres.RepositoryConfig, log *slog.Logger) *backend {
	repo := postgres.NewPostgreSQLRepository(repoCfg)
	cm := cache.NewCacheManager(redisClient)
	if repoCfg.LeaderboardTTL > 0 {
		cm.LeaderboardTTL = repoCfg.LeaderboardTTL
	}

	// plans are never persisted, so nothing is published
	publisher := events.NewMockEventPublisher(log)
	competency := services.NewCompetencyService(repo, cm, log)

	return &backend{
		db:          db,
		leaderboard: services.NewLeaderboardService(repo, cm, log),
		groups:      services.NewGroupService(repo, competency, publisher, log, validator.New()),
		close: func() {
			if err := repo.Close(); err != nil {
				log.Debug("Failed to close repository", "error", err)
			}
		},
	}
}
