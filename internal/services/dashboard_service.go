package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/quiz-service/internal/cache"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/scoring"
)

const dashboardCategoryLimit = 10

type dashboardService struct {
	repo   repositories.Repository
	cache  *cache.CacheManager
	logger *slog.Logger
}

func NewDashboardService(repo repositories.Repository, cm *cache.CacheManager, logger *slog.Logger) DashboardService {
	return &dashboardService{
		repo:   repo,
		cache:  cm,
		logger: logger,
	}
}

// Overview summarises authoring and taking activity. Admins see every test,
// teachers only the tests they created.
func (s *dashboardService) Overview(ctx context.Context, userID string) (*DashboardResponse, error) {
	role, err := requireStaff(ctx, s.repo, userID, "dashboard", "view")
	if err != nil {
		return nil, err
	}

	var createdBy *string
	key := "overview:all"
	if role != models.RoleAdmin {
		createdBy = &userID
		key = "overview:" + userID
	}

	s.logger.Info("Getting dashboard overview", "user_id", userID, "scoped", createdBy != nil)

	var resp DashboardResponse
	err = s.cache.Stats.CacheOrExecute(ctx, key, &resp, cache.StatsCacheConfig.TTL, func() (interface{}, error) {
		return s.build(ctx, createdBy)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *dashboardService) build(ctx context.Context, createdBy *string) (*DashboardResponse, error) {
	overview, err := s.repo.Dashboard().GetOverview(ctx, nil, createdBy)
	if err != nil {
		return nil, fmt.Errorf("failed to get overview: %w", err)
	}

	distribution, err := s.repo.Dashboard().GetQuestionDistribution(ctx, nil, createdBy)
	if err != nil {
		return nil, fmt.Errorf("failed to get question distribution: %w", err)
	}

	performance, err := s.repo.Dashboard().GetPerformanceByCategory(ctx, nil, createdBy, dashboardCategoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get performance by category: %w", err)
	}

	resp := &DashboardResponse{
		Overview:              *overview,
		QuestionDistribution:  distribution,
		PerformanceByCategory: performance,
		GeneratedAt:           time.Now().UTC(),
	}
	if overview.TotalAttempts > 0 {
		resp.CompletionRate = scoring.Percentage(float64(overview.FinishedAttempts), float64(overview.TotalAttempts))
	}
	if overview.FinishedAttempts > 0 {
		resp.PassRate = scoring.Percentage(float64(overview.PassedAttempts), float64(overview.FinishedAttempts))
	}
	return resp, nil
}
