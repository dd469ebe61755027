package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

type dashboardRepository struct {
	db *gorm.DB
}

func NewDashboardRepository(db *gorm.DB) repositories.DashboardRepository {
	return &dashboardRepository{db: db}
}

func (r *dashboardRepository) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// scopedTests returns the test ids visible to the dashboard owner as a subquery.
func (r *dashboardRepository) scopedTests(db *gorm.DB, createdBy *string) *gorm.DB {
	q := db.Model(&models.Test{}).Select("id")
	if createdBy != nil {
		q = q.Where("created_by = ?", *createdBy)
	}
	return q
}

// ===== OVERVIEW =====

func (r *dashboardRepository) GetOverview(ctx context.Context, tx *gorm.DB, createdBy *string) (*repositories.OverviewData, error) {
	db := r.getDB(tx).WithContext(ctx)
	out := &repositories.OverviewData{}

	tests := db.Model(&models.Test{})
	if createdBy != nil {
		tests = tests.Where("created_by = ?", *createdBy)
	}
	if err := tests.Count(&out.TotalTests).Error; err != nil {
		return nil, fmt.Errorf("failed to get total tests: %w", err)
	}

	published := db.Model(&models.Test{}).Where("status = ?", models.TestPublished)
	if createdBy != nil {
		published = published.Where("created_by = ?", *createdBy)
	}
	if err := published.Count(&out.PublishedTests).Error; err != nil {
		return nil, fmt.Errorf("failed to get published tests: %w", err)
	}

	if err := db.Model(&models.Question{}).
		Where("test_id IN (?)", r.scopedTests(db, createdBy)).
		Count(&out.TotalQuestions).Error; err != nil {
		return nil, fmt.Errorf("failed to get total questions: %w", err)
	}

	if err := db.Model(&models.TestResult{}).
		Where("test_id IN (?)", r.scopedTests(db, createdBy)).
		Count(&out.TotalAttempts).Error; err != nil {
		return nil, fmt.Errorf("failed to get total attempts: %w", err)
	}

	var finished struct {
		Finished int64
		Passed   int64
		AvgPct   *float64
	}
	if err := db.Model(&models.TestResult{}).
		Select("COUNT(*) AS finished, "+
			"COALESCE(SUM(CASE WHEN passed THEN 1 ELSE 0 END), 0) AS passed, "+
			"AVG(percentage) AS avg_pct").
		Where("status IN ? AND test_id IN (?)", finishedStatuses, r.scopedTests(db, createdBy)).
		Scan(&finished).Error; err != nil {
		return nil, fmt.Errorf("failed to get attempt metrics: %w", err)
	}
	out.FinishedAttempts = finished.Finished
	out.PassedAttempts = finished.Passed
	if finished.AvgPct != nil {
		out.AveragePercentage = *finished.AvgPct
	}

	groups := db.Model(&models.Group{})
	if createdBy != nil {
		groups = groups.Where("created_by = ?", *createdBy)
	}
	if err := groups.Count(&out.TotalGroups).Error; err != nil {
		return nil, fmt.Errorf("failed to get total groups: %w", err)
	}

	if err := db.Model(&models.AIRecommendation{}).
		Where("status = ? AND test_id IN (?)", models.RecommendationReady, r.scopedTests(db, createdBy)).
		Count(&out.Recommendations).Error; err != nil {
		return nil, fmt.Errorf("failed to get recommendations: %w", err)
	}

	return out, nil
}

// ===== QUESTION DISTRIBUTION =====

func (r *dashboardRepository) GetQuestionDistribution(ctx context.Context, tx *gorm.DB, createdBy *string) ([]repositories.QuestionDistributionData, error) {
	db := r.getDB(tx).WithContext(ctx)

	var rows []struct {
		Type  string
		Count int64
	}
	if err := db.Model(&models.Question{}).
		Select("type, COUNT(*) AS count").
		Where("test_id IN (?)", r.scopedTests(db, createdBy)).
		Group("type").
		Order("count DESC, type ASC").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get question distribution: %w", err)
	}

	var total int64
	for _, row := range rows {
		total += row.Count
	}

	out := make([]repositories.QuestionDistributionData, 0, len(rows))
	for _, row := range rows {
		pct := 0.0
		if total > 0 {
			pct = float64(row.Count) / float64(total) * 100
		}
		out = append(out, repositories.QuestionDistributionData{
			Type:       row.Type,
			Count:      row.Count,
			Percentage: pct,
		})
	}
	return out, nil
}

// ===== PERFORMANCE BY CATEGORY =====

func (r *dashboardRepository) GetPerformanceByCategory(ctx context.Context, tx *gorm.DB, createdBy *string, limit int) ([]repositories.CategoryPerformanceData, error) {
	db := r.getDB(tx).WithContext(ctx)

	query := db.Table("test_results AS r").
		Select("t.category_id AS category_id, COALESCE(MAX(c.name), 'Uncategorized') AS category_name, " +
			"AVG(r.percentage) AS average_score, COUNT(r.id) AS total_attempts").
		Joins("JOIN tests t ON t.id = r.test_id AND t.deleted_at IS NULL").
		Joins("LEFT JOIN categories c ON c.id = t.category_id").
		Where("r.status IN ?", finishedStatuses)
	if createdBy != nil {
		query = query.Where("t.created_by = ?", *createdBy)
	}

	var out []repositories.CategoryPerformanceData
	query = query.Group("t.category_id").Order("total_attempts DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to get performance by category: %w", err)
	}
	return out, nil
}
