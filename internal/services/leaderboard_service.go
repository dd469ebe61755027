package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/SAP-F-2025/quiz-service/internal/cache"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/scoring"
)

const defaultLeaderboardSize = 10

type leaderboardService struct {
	repo   repositories.Repository
	cache  *cache.CacheManager
	logger *slog.Logger
}

func NewLeaderboardService(repo repositories.Repository, cm *cache.CacheManager, logger *slog.Logger) LeaderboardService {
	return &leaderboardService{repo: repo, cache: cm, logger: logger}
}

// TestLeaderboard ranks each user's best finished attempt on the test.
func (s *leaderboardService) TestLeaderboard(ctx context.Context, testID uint, limit int) (*models.Leaderboard, error) {
	limit = leaderboardLimit(limit)
	if _, err := loadTest(ctx, s.repo, testID, false); err != nil {
		return nil, err
	}

	var board models.Leaderboard
	err := s.cache.Leaderboard.CacheOrExecute(ctx, cache.TestLeaderboardKey(testID, limit), &board, s.cache.LeaderboardTTL,
		func() (interface{}, error) {
			entries, err := s.rankTest(ctx, testID)
			if err != nil {
				return nil, err
			}
			return &models.Leaderboard{
				TestID:    &testID,
				Entries:   lo.Subset(entries, 0, uint(limit)),
				Total:     len(entries),
				UpdatedAt: time.Now().UTC(),
			}, nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to build leaderboard: %w", err)
	}
	return &board, nil
}

// GlobalLeaderboard ranks users by the mean of their best percentage per test.
func (s *leaderboardService) GlobalLeaderboard(ctx context.Context, categoryID *uint, limit int) (*models.Leaderboard, error) {
	limit = leaderboardLimit(limit)
	if err := checkCategory(ctx, s.repo, categoryID); err != nil {
		return nil, err
	}

	var board models.Leaderboard
	err := s.cache.Leaderboard.CacheOrExecute(ctx, cache.GlobalLeaderboardKey(categoryID, limit), &board, s.cache.LeaderboardTTL,
		func() (interface{}, error) {
			entries, err := s.rankGlobal(ctx, categoryID)
			if err != nil {
				return nil, err
			}
			return &models.Leaderboard{
				CategoryID: categoryID,
				Entries:    lo.Subset(entries, 0, uint(limit)),
				Total:      len(entries),
				UpdatedAt:  time.Now().UTC(),
			}, nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to build global leaderboard: %w", err)
	}
	return &board, nil
}

func (s *leaderboardService) UserRank(ctx context.Context, testID uint, userID string) (*models.LeaderboardEntry, error) {
	if _, err := loadTest(ctx, s.repo, testID, false); err != nil {
		return nil, err
	}
	entries, err := s.rankTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	entry, ok := lo.Find(entries, func(e models.LeaderboardEntry) bool { return e.UserID == userID })
	if !ok {
		return nil, ErrResultNotFound
	}
	return &entry, nil
}

func (s *leaderboardService) ExportLeaderboard(ctx context.Context, testID uint, w io.Writer) error {
	test, err := loadTest(ctx, s.repo, testID, false)
	if err != nil {
		return err
	}
	entries, err := s.rankTest(ctx, testID)
	if err != nil {
		return err
	}

	s.logger.Info("Exporting leaderboard", "test_id", testID, "entries", len(entries))

	rows := lo.Map(entries, func(e models.LeaderboardEntry, _ int) []interface{} {
		completed := ""
		if e.CompletedAt != nil {
			completed = e.CompletedAt.UTC().Format(time.RFC3339)
		}
		return []interface{}{e.Rank, e.FullName, e.UserID, e.Score, e.MaxScore, e.Percentage, e.TimeSpent, completed}
	})
	return writeWorkbook(w, sheet{
		Name:    truncate(sheetName(test.Title), 31),
		Headers: []string{"Rank", "Name", "User ID", "Score", "Max Score", "Percentage", "Time Spent (s)", "Completed At"},
		Rows:    rows,
	})
}

// ===== RANKING =====

func (s *leaderboardService) rankTest(ctx context.Context, testID uint) ([]models.LeaderboardEntry, error) {
	best, err := s.repo.Result().BestResultsByTest(ctx, nil, testID)
	if err != nil {
		return nil, err
	}

	entries := lo.Map(best, func(b repositories.BestResult, _ int) models.LeaderboardEntry {
		return models.LeaderboardEntry{
			UserID:      b.UserID,
			FullName:    lo.Ternary(b.FullName != "", b.FullName, b.UserID),
			ResultID:    b.ResultID,
			Score:       b.Score,
			MaxScore:    b.MaxScore,
			Percentage:  b.Percentage,
			TimeSpent:   b.TimeSpent,
			CompletedAt: b.CompletedAt,
		}
	})
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Percentage != b.Percentage {
			return a.Percentage > b.Percentage
		}
		if a.TimeSpent != b.TimeSpent {
			return a.TimeSpent < b.TimeSpent
		}
		if ac, bc := completedAt(a), completedAt(b); !ac.Equal(bc) {
			return ac.Before(bc)
		}
		return a.UserID < b.UserID
	})
	assignRanks(entries, func(a, b models.LeaderboardEntry) bool {
		return a.Percentage == b.Percentage && a.TimeSpent == b.TimeSpent
	})
	return entries, nil
}

func (s *leaderboardService) rankGlobal(ctx context.Context, categoryID *uint) ([]models.LeaderboardEntry, error) {
	bests, err := s.repo.Result().BestPercentagesByUser(ctx, nil, categoryID)
	if err != nil {
		return nil, err
	}

	byUser := lo.GroupBy(bests, func(b repositories.UserTestBest) string { return b.UserID })
	userIDs := lo.Keys(byUser)

	names, err := s.profileNames(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	entries := make([]models.LeaderboardEntry, 0, len(byUser))
	for userID, rows := range byUser {
		percentages := lo.Map(rows, func(r repositories.UserTestBest, _ int) float64 { return r.BestPercentage })
		entries = append(entries, models.LeaderboardEntry{
			UserID:         userID,
			FullName:       lo.ValueOr(names, userID, userID),
			Score:          scoring.Round2(lo.SumBy(rows, func(r repositories.UserTestBest) float64 { return r.BestScore })),
			Percentage:     scoring.Round2(lo.Mean(percentages)),
			TestsCompleted: len(rows),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Percentage != b.Percentage {
			return a.Percentage > b.Percentage
		}
		if a.TestsCompleted != b.TestsCompleted {
			return a.TestsCompleted > b.TestsCompleted
		}
		return a.UserID < b.UserID
	})
	assignRanks(entries, func(a, b models.LeaderboardEntry) bool {
		return a.Percentage == b.Percentage && a.TestsCompleted == b.TestsCompleted
	})
	return entries, nil
}

func (s *leaderboardService) profileNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	if len(userIDs) == 0 {
		return map[string]string{}, nil
	}
	profiles, err := s.repo.Profile().GetByIDs(ctx, nil, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	return lo.SliceToMap(profiles, func(p *models.Profile) (string, string) { return p.ID, p.FullName }), nil
}

// notCompleted sorts entries without a completion time last.
var notCompleted = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

func completedAt(e models.LeaderboardEntry) time.Time {
	return lo.FromPtrOr(e.CompletedAt, notCompleted)
}

// assignRanks applies competition ranking (1, 2, 2, 4) to sorted entries.
func assignRanks(entries []models.LeaderboardEntry, tied func(a, b models.LeaderboardEntry) bool) {
	for i := range entries {
		if i > 0 && tied(entries[i-1], entries[i]) {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
}

func leaderboardLimit(limit int) int {
	if limit <= 0 {
		return defaultLeaderboardSize
	}
	return min(limit, maxPageSize)
}

// sheetName drops characters xlsx does not allow in worksheet names.
func sheetName(title string) string {
	name := lo.Filter([]rune(title), func(r rune, _ int) bool {
		return !lo.Contains([]rune(`[]:*?/\`), r)
	})
	if len(name) == 0 {
		return "Leaderboard"
	}
	return string(name)
}
