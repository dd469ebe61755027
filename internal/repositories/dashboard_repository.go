package repositories

import (
	"context"

	"gorm.io/gorm"
)

// DashboardRepository interface for dashboard analytics operations.
// A non-nil createdBy scopes every figure to tests authored by that user.
type DashboardRepository interface {
	GetOverview(ctx context.Context, tx *gorm.DB, createdBy *string) (*OverviewData, error)
	GetQuestionDistribution(ctx context.Context, tx *gorm.DB, createdBy *string) ([]QuestionDistributionData, error)
	GetPerformanceByCategory(ctx context.Context, tx *gorm.DB, createdBy *string, limit int) ([]CategoryPerformanceData, error)
}

type OverviewData struct {
	TotalTests        int64   `json:"total_tests"`
	PublishedTests    int64   `json:"published_tests"`
	TotalQuestions    int64   `json:"total_questions"`
	TotalAttempts     int64   `json:"total_attempts"`
	FinishedAttempts  int64   `json:"finished_attempts"`
	PassedAttempts    int64   `json:"passed_attempts"`
	AveragePercentage float64 `json:"average_percentage"`
	TotalGroups       int64   `json:"total_groups"`
	Recommendations   int64   `json:"recommendations"`
}

type QuestionDistributionData struct {
	Type       string  `json:"type"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

type CategoryPerformanceData struct {
	CategoryID    *uint   `json:"category_id"`
	CategoryName  string  `json:"category_name"`
	AverageScore  float64 `json:"average_score"`
	TotalAttempts int64   `json:"total_attempts"`
}
