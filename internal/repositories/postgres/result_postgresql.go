package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/quiz-service/internal/cache"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

type ResultPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewResultPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.ResultRepository {
	return &ResultPostgreSQL{
		db:           db,
		cacheManager: cacheManager,
	}
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (r *ResultPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// ===== BASIC CRUD OPERATIONS =====

func (r *ResultPostgreSQL) Create(ctx context.Context, tx *gorm.DB, result *models.TestResult) error {
	if err := r.getDB(tx).WithContext(ctx).Omit("Test").Create(result).Error; err != nil {
		if repositories.IsDuplicateError(err) {
			return fmt.Errorf("result for test %d: %w", result.TestID, repositories.ErrDuplicate)
		}
		return fmt.Errorf("failed to create result: %w", err)
	}
	return nil
}

func (r *ResultPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.TestResult, error) {
	var result models.TestResult
	if err := r.getDB(tx).WithContext(ctx).First(&result, id).Error; err != nil {
		return nil, notFound(err, "result", id)
	}
	return &result, nil
}

// GetByIDWithAnswers loads the result, its answers and each answered question with options
func (r *ResultPostgreSQL) GetByIDWithAnswers(ctx context.Context, tx *gorm.DB, id uint) (*models.TestResult, error) {
	var result models.TestResult
	if err := r.getDB(tx).WithContext(ctx).
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("question_id ASC")
		}).
		Preload("Answers.Question").
		Preload("Answers.Question.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order(orderColumn("", false)).Order("id ASC")
		}).
		First(&result, id).Error; err != nil {
		return nil, notFound(err, "result", id)
	}
	return &result, nil
}

// Update saves the grading columns of a result
func (r *ResultPostgreSQL) Update(ctx context.Context, tx *gorm.DB, result *models.TestResult) error {
	if err := r.getDB(tx).WithContext(ctx).Model(&models.TestResult{}).Where("id = ?", result.ID).Updates(gradingColumns(result)).Error; err != nil {
		return fmt.Errorf("failed to update result: %w", err)
	}

	r.invalidateFinished(ctx, result)
	return nil
}

// Complete is Update restricted to a result that is still in progress. It returns
// ErrConflict when the row was already closed by someone else.
func (r *ResultPostgreSQL) Complete(ctx context.Context, tx *gorm.DB, result *models.TestResult) error {
	res := r.getDB(tx).WithContext(ctx).Model(&models.TestResult{}).
		Where("id = ? AND status = ?", result.ID, models.ResultInProgress).
		Updates(gradingColumns(result))
	if res.Error != nil {
		return fmt.Errorf("failed to complete result: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("result %d: %w", result.ID, repositories.ErrConflict)
	}

	r.invalidateFinished(ctx, result)
	return nil
}

func gradingColumns(result *models.TestResult) map[string]interface{} {
	return map[string]interface{}{
		"status":       result.Status,
		"score":        result.Score,
		"max_score":    result.MaxScore,
		"percentage":   result.Percentage,
		"passed":       result.Passed,
		"scale_label":  result.ScaleLabel,
		"completed_at": result.CompletedAt,
		"time_spent":   result.TimeSpent,
	}
}

func (r *ResultPostgreSQL) invalidateFinished(ctx context.Context, result *models.TestResult) {
	if result.Status.IsFinished() {
		r.cacheManager.InvalidateLeaderboards(ctx, result.TestID)
		r.cacheManager.InvalidateCompetency(ctx, result.UserID)
	}
}

// ===== QUERY OPERATIONS =====

func (r *ResultPostgreSQL) ListByUser(ctx context.Context, tx *gorm.DB, userID string, filters repositories.ResultFilters) ([]*models.TestResult, int64, error) {
	filters.UserID = &userID
	return r.list(ctx, tx, filters)
}

func (r *ResultPostgreSQL) ListByTest(ctx context.Context, tx *gorm.DB, testID uint, filters repositories.ResultFilters) ([]*models.TestResult, int64, error) {
	filters.TestID = &testID
	return r.list(ctx, tx, filters)
}

func (r *ResultPostgreSQL) list(ctx context.Context, tx *gorm.DB, filters repositories.ResultFilters) ([]*models.TestResult, int64, error) {
	query := r.getDB(tx).WithContext(ctx).Model(&models.TestResult{})

	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.TestID != nil {
		query = query.Where("test_id = ?", *filters.TestID)
	}
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.DateFrom != nil {
		query = query.Where("started_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("started_at <= ?", *filters.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count results: %w", err)
	}

	var results []*models.TestResult
	query = applyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset,
		"started_at", "completed_at", "percentage", "score")
	if err := query.Preload("Test").Find(&results).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list results: %w", err)
	}
	return results, total, nil
}

func (r *ResultPostgreSQL) CountAttempts(ctx context.Context, tx *gorm.DB, testID uint, userID string) (int64, error) {
	var count int64
	if err := r.getDB(tx).WithContext(ctx).
		Model(&models.TestResult{}).
		Where("test_id = ? AND user_id = ?", testID, userID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	return count, nil
}

// GetInProgress returns the user's open attempt on the test, or ErrNotFound
func (r *ResultPostgreSQL) GetInProgress(ctx context.Context, tx *gorm.DB, testID uint, userID string) (*models.TestResult, error) {
	var result models.TestResult
	if err := r.getDB(tx).WithContext(ctx).
		Where("test_id = ? AND user_id = ? AND status = ?", testID, userID, models.ResultInProgress).
		Order("started_at DESC").
		First(&result).Error; err != nil {
		return nil, notFound(err, "in-progress result for test", testID)
	}
	return &result, nil
}

// ===== ANSWERS =====

func (r *ResultPostgreSQL) SaveAnswer(ctx context.Context, tx *gorm.DB, answer *models.UserAnswer) error {
	if answer.AnsweredAt.IsZero() {
		answer.AnsweredAt = time.Now()
	}
	if err := r.getDB(tx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "result_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"selected_option_ids", "text_answer", "is_correct", "points_earned", "answered_at",
		}),
	}).Omit("Question").Create(answer).Error; err != nil {
		return fmt.Errorf("failed to save answer: %w", err)
	}
	return nil
}

func (r *ResultPostgreSQL) GetAnswers(ctx context.Context, tx *gorm.DB, resultID uint) ([]models.UserAnswer, error) {
	var answers []models.UserAnswer
	if err := r.getDB(tx).WithContext(ctx).
		Where("result_id = ?", resultID).
		Order("question_id ASC").
		Find(&answers).Error; err != nil {
		return nil, fmt.Errorf("failed to get answers: %w", err)
	}
	return answers, nil
}

// ===== AGGREGATES =====

type bestResultRow struct {
	ID          uint
	TestID      uint
	UserID      string
	FullName    *string
	Score       float64
	MaxScore    float64
	Percentage  float64
	TimeSpent   int
	CompletedAt *time.Time
}

// BestResultsByTest returns one row per user: the highest percentage, then the
// fastest, then the earliest finished attempt. Rows come back in that ranking order.
func (r *ResultPostgreSQL) BestResultsByTest(ctx context.Context, tx *gorm.DB, testID uint) ([]repositories.BestResult, error) {
	var rows []bestResultRow
	if err := r.getDB(tx).WithContext(ctx).
		Table("test_results AS r").
		Select("r.id, r.test_id, r.user_id, p.full_name, r.score, r.max_score, r.percentage, r.time_spent, r.completed_at").
		Joins("LEFT JOIN profiles p ON p.id = r.user_id").
		Where("r.test_id = ? AND r.status IN ?", testID, finishedStatuses).
		Order("r.percentage DESC, r.time_spent ASC, r.completed_at ASC, r.id ASC").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get best results: %w", err)
	}

	seen := make(map[string]bool, len(rows))
	best := make([]repositories.BestResult, 0, len(rows))
	for _, row := range rows {
		if seen[row.UserID] {
			continue
		}
		seen[row.UserID] = true
		name := ""
		if row.FullName != nil {
			name = *row.FullName
		}
		best = append(best, repositories.BestResult{
			ResultID:    row.ID,
			TestID:      row.TestID,
			UserID:      row.UserID,
			FullName:    name,
			Score:       row.Score,
			MaxScore:    row.MaxScore,
			Percentage:  row.Percentage,
			TimeSpent:   row.TimeSpent,
			CompletedAt: row.CompletedAt,
		})
	}
	return best, nil
}

// BestPercentagesByUser returns each user's best percentage per test, optionally within a category.
func (r *ResultPostgreSQL) BestPercentagesByUser(ctx context.Context, tx *gorm.DB, categoryID *uint) ([]repositories.UserTestBest, error) {
	query := r.getDB(tx).WithContext(ctx).
		Table("test_results AS r").
		Select("r.user_id, r.test_id, MAX(r.percentage) AS best_percentage, MAX(r.score) AS best_score").
		Joins("JOIN tests t ON t.id = r.test_id AND t.deleted_at IS NULL").
		Where("r.status IN ?", finishedStatuses)
	if categoryID != nil {
		query = query.Where("t.category_id = ?", *categoryID)
	}

	var rows []repositories.UserTestBest
	if err := query.Group("r.user_id, r.test_id").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get best percentages: %w", err)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].UserID != rows[j].UserID {
			return rows[i].UserID < rows[j].UserID
		}
		return rows[i].TestID < rows[j].TestID
	})
	return rows, nil
}

// CompetencyScores sums earned and possible points per user and category over
// finished results. A question's category falls back to its test's category.
func (r *ResultPostgreSQL) CompetencyScores(ctx context.Context, tx *gorm.DB, userIDs []string, categoryID *uint) ([]repositories.CompetencyRow, error) {
	const categoryExpr = "COALESCE(q.category_id, t.category_id, 0)"

	query := r.getDB(tx).WithContext(ctx).
		Table("user_answers AS a").
		Select("res.user_id AS user_id, " + categoryExpr + " AS category_id, " +
			"SUM(a.points_earned) AS points_earned, SUM(q.points) AS points_total").
		Joins("JOIN test_results res ON res.id = a.result_id").
		Joins("JOIN questions q ON q.id = a.question_id").
		Joins("JOIN tests t ON t.id = res.test_id AND t.deleted_at IS NULL").
		Where("res.status IN ?", finishedStatuses)
	if len(userIDs) > 0 {
		query = query.Where("res.user_id IN ?", userIDs)
	}
	if categoryID != nil {
		query = query.Where(categoryExpr+" = ?", *categoryID)
	}

	var rows []repositories.CompetencyRow
	if err := query.Group("res.user_id, " + categoryExpr).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get competency scores: %w", err)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].UserID != rows[j].UserID {
			return rows[i].UserID < rows[j].UserID
		}
		return rows[i].CategoryID < rows[j].CategoryID
	})
	return rows, nil
}

// FinishedUserIDs lists users with at least one finished result, optionally on one
// test or within one category.
func (r *ResultPostgreSQL) FinishedUserIDs(ctx context.Context, tx *gorm.DB, testID, categoryID *uint) ([]string, error) {
	query := r.getDB(tx).WithContext(ctx).
		Table("test_results AS r").
		Joins("JOIN tests t ON t.id = r.test_id AND t.deleted_at IS NULL").
		Where("r.status IN ?", finishedStatuses)
	if testID != nil {
		query = query.Where("r.test_id = ?", *testID)
	}
	if categoryID != nil {
		query = query.Where("t.category_id = ?", *categoryID)
	}

	var ids []string
	if err := query.Distinct("r.user_id").Order("r.user_id ASC").Pluck("r.user_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list users with results: %w", err)
	}
	return ids, nil
}
