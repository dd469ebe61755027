package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"github.com/SAP-F-2025/quiz-service/internal/cache"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/scoring"
)

const uncategorizedName = "Uncategorized"

type competencyService struct {
	repo   repositories.Repository
	cache  *cache.CacheManager
	logger *slog.Logger
}

func NewCompetencyService(repo repositories.Repository, cm *cache.CacheManager, logger *slog.Logger) CompetencyService {
	return &competencyService{repo: repo, cache: cm, logger: logger}
}

// Competencies returns one profile per user in userIDs, in that order. An empty
// userIDs covers every user with finished results, ordered by user id.
func (s *competencyService) Competencies(ctx context.Context, userIDs []string, categoryID *uint) ([]models.UserCompetency, error) {
	rows, err := s.repo.Result().CompetencyScores(ctx, nil, userIDs, categoryID)
	if err != nil {
		return nil, err
	}

	if len(userIDs) == 0 {
		userIDs = lo.Uniq(lo.Map(rows, func(r repositories.CompetencyRow, _ int) string { return r.UserID }))
	}
	if len(userIDs) == 0 {
		return []models.UserCompetency{}, nil
	}

	categoryNames, err := s.categoryNames(ctx)
	if err != nil {
		return nil, err
	}
	profiles, err := s.repo.Profile().GetByIDs(ctx, nil, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	names := lo.SliceToMap(profiles, func(p *models.Profile) (string, string) { return p.ID, p.FullName })

	byUser := lo.GroupBy(rows, func(r repositories.CompetencyRow) string { return r.UserID })

	out := make([]models.UserCompetency, 0, len(userIDs))
	for _, userID := range userIDs {
		out = append(out, buildCompetency(userID, lo.ValueOr(names, userID, userID), byUser[userID], categoryNames))
	}
	return out, nil
}

func (s *competencyService) ForUser(ctx context.Context, userID string, categoryID *uint) (*models.UserCompetency, error) {
	var result models.UserCompetency
	err := s.cache.Competency.CacheOrExecute(ctx, cache.CompetencyKey(userID, categoryID), &result, cache.CompetencyCacheConfig.TTL,
		func() (interface{}, error) {
			list, err := s.Competencies(ctx, []string{userID}, categoryID)
			if err != nil {
				return nil, err
			}
			return list[0], nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to get competencies: %w", err)
	}
	return &result, nil
}

func (s *competencyService) View(ctx context.Context, targetID string, categoryID *uint, viewerID string) (*models.UserCompetency, error) {
	role, err := getUserRole(ctx, s.repo, viewerID)
	if err != nil {
		return nil, err
	}
	if targetID != viewerID && !role.IsStaff() {
		return nil, NewPermissionError(viewerID, 0, "competencies", "read", "students may only view their own competencies")
	}
	if err := checkCategory(ctx, s.repo, categoryID); err != nil {
		return nil, err
	}
	return s.ForUser(ctx, targetID, categoryID)
}

func (s *competencyService) categoryNames(ctx context.Context) (map[uint]string, error) {
	categories, err := s.repo.Category().List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	names := lo.SliceToMap(categories, func(c *models.Category) (uint, string) { return c.ID, c.Name })
	names[0] = uncategorizedName
	return names, nil
}

// buildCompetency turns summed points into percentages. Overall is the plain mean
// over categories, so a small category weighs as much as a large one.
func buildCompetency(userID, fullName string, rows []repositories.CompetencyRow, categoryNames map[uint]string) models.UserCompetency {
	uc := models.UserCompetency{
		UserID:       userID,
		FullName:     fullName,
		Competencies: make([]models.CompetencyScore, 0, len(rows)),
	}
	for _, r := range rows {
		uc.Competencies = append(uc.Competencies, models.CompetencyScore{
			CategoryID:   r.CategoryID,
			CategoryName: lo.ValueOr(categoryNames, r.CategoryID, fmt.Sprintf("Category %d", r.CategoryID)),
			PointsEarned: scoring.Round2(r.PointsEarned),
			PointsTotal:  scoring.Round2(r.PointsTotal),
			Percentage:   scoring.Percentage(r.PointsEarned, r.PointsTotal),
		})
	}
	if len(uc.Competencies) > 0 {
		uc.Overall = scoring.Round2(lo.Mean(lo.Map(uc.Competencies, func(c models.CompetencyScore, _ int) float64 {
			return c.Percentage
		})))
	}
	return uc
}

// competencyMap keys a user's percentages by category for the grouping engine.
func competencyMap(uc models.UserCompetency) map[uint]float64 {
	return lo.SliceToMap(uc.Competencies, func(c models.CompetencyScore) (uint, float64) {
		return c.CategoryID, c.Percentage
	})
}
