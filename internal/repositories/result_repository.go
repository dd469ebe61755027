package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

// ResultRepository interface for attempts, answers and the aggregates built on them
type ResultRepository interface {
	Create(ctx context.Context, tx *gorm.DB, result *models.TestResult) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.TestResult, error)
	GetByIDWithAnswers(ctx context.Context, tx *gorm.DB, id uint) (*models.TestResult, error)
	Update(ctx context.Context, tx *gorm.DB, result *models.TestResult) error
	// Complete writes the grading columns only while the result is in progress.
	Complete(ctx context.Context, tx *gorm.DB, result *models.TestResult) error

	ListByUser(ctx context.Context, tx *gorm.DB, userID string, filters ResultFilters) ([]*models.TestResult, int64, error)
	ListByTest(ctx context.Context, tx *gorm.DB, testID uint, filters ResultFilters) ([]*models.TestResult, int64, error)
	CountAttempts(ctx context.Context, tx *gorm.DB, testID uint, userID string) (int64, error)
	GetInProgress(ctx context.Context, tx *gorm.DB, testID uint, userID string) (*models.TestResult, error)

	// SaveAnswer inserts or replaces the answer for (result, question).
	SaveAnswer(ctx context.Context, tx *gorm.DB, answer *models.UserAnswer) error
	GetAnswers(ctx context.Context, tx *gorm.DB, resultID uint) ([]models.UserAnswer, error)

	// Aggregates over finished results
	BestResultsByTest(ctx context.Context, tx *gorm.DB, testID uint) ([]BestResult, error)
	BestPercentagesByUser(ctx context.Context, tx *gorm.DB, categoryID *uint) ([]UserTestBest, error)
	CompetencyScores(ctx context.Context, tx *gorm.DB, userIDs []string, categoryID *uint) ([]CompetencyRow, error)
	FinishedUserIDs(ctx context.Context, tx *gorm.DB, testID, categoryID *uint) ([]string, error)
}
