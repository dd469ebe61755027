package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-service/internal/cache"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

type TestPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewTestPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.TestRepository {
	return &TestPostgreSQL{
		db:           db,
		cacheManager: cacheManager,
	}
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (t *TestPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return t.db
}

// Create creates a test together with any questions and options attached to it
func (t *TestPostgreSQL) Create(ctx context.Context, tx *gorm.DB, test *models.Test) error {
	db := t.getDB(tx)
	if err := db.WithContext(ctx).Omit("Category", "Scales").Create(test).Error; err != nil {
		return fmt.Errorf("failed to create test: %w", err)
	}
	cache.SafeInvalidatePattern(ctx, t.cacheManager.Stats, "*")
	return nil
}

// GetByID retrieves a test by ID with caching
func (t *TestPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Test, error) {
	db := t.getDB(tx)
	var test models.Test

	err := t.cacheManager.Test.CacheOrExecute(ctx, cache.TestKey(id), &test, cache.TestCacheConfig.TTL, func() (interface{}, error) {
		var dbTest models.Test
		if err := db.WithContext(ctx).Preload("Category").First(&dbTest, id).Error; err != nil {
			return nil, notFound(err, "test", id)
		}
		return &dbTest, nil
	})
	if err != nil {
		return nil, err
	}

	return &test, nil
}

// GetByIDWithDetails retrieves a test with ordered questions, options and scales
func (t *TestPostgreSQL) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Test, error) {
	db := t.getDB(tx)
	var test models.Test

	err := t.cacheManager.Test.CacheOrExecute(ctx, cache.TestDetailsKey(id), &test, cache.TestCacheConfig.TTL, func() (interface{}, error) {
		var dbTest models.Test
		err := db.WithContext(ctx).
			Preload("Category").
			Preload("Questions", func(db *gorm.DB) *gorm.DB {
				return db.Order(orderColumn("", false)).Order("id ASC")
			}).
			Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
				return db.Order(orderColumn("", false)).Order("id ASC")
			}).
			Preload("Scales", func(db *gorm.DB) *gorm.DB {
				return db.Order("min_percentage DESC")
			}).
			First(&dbTest, id).Error
		if err != nil {
			return nil, notFound(err, "test", id)
		}

		calculateComputedFields(&dbTest)
		return &dbTest, nil
	})
	if err != nil {
		return nil, err
	}

	return &test, nil
}

// Update updates the test's own columns and invalidates cache
func (t *TestPostgreSQL) Update(ctx context.Context, tx *gorm.DB, test *models.Test) error {
	db := t.getDB(tx)
	if err := db.WithContext(ctx).Model(&models.Test{}).Where("id = ?", test.ID).Updates(map[string]interface{}{
		"title":                test.Title,
		"description":          test.Description,
		"category_id":          test.CategoryID,
		"status":               test.Status,
		"time_limit":           test.TimeLimit,
		"passing_score":        test.PassingScore,
		"max_attempts":         test.MaxAttempts,
		"shuffle_questions":    test.ShuffleQuestions,
		"show_correct_answers": test.ShowCorrectAnswers,
		"is_public":            test.IsPublic,
	}).Error; err != nil {
		return fmt.Errorf("failed to update test: %w", err)
	}

	t.cacheManager.InvalidateTest(ctx, test.ID)
	return nil
}

// Delete soft deletes a test
func (t *TestPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := t.getDB(tx)
	res := db.WithContext(ctx).Delete(&models.Test{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete test: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("test %d: %w", id, repositories.ErrNotFound)
	}

	t.cacheManager.InvalidateTest(ctx, id)
	t.cacheManager.InvalidateLeaderboards(ctx, id)
	return nil
}

// List retrieves tests with filters and pagination
func (t *TestPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	query := t.getDB(tx).WithContext(ctx).Model(&models.Test{})

	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	if filters.CategoryID != nil {
		query = query.Where("category_id = ?", *filters.CategoryID)
	}
	if filters.VisibleTo != nil {
		query = query.Where("(status = ? OR created_by = ?)", models.TestPublished, *filters.VisibleTo)
	}
	if filters.Query != "" {
		query = query.Where(`LOWER(title) LIKE ? ESCAPE '\'`, likePattern(filters.Query))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count tests: %w", err)
	}

	var tests []*models.Test
	query = applyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset, "title", "status")
	if err := query.Preload("Category").Find(&tests).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list tests: %w", err)
	}

	if err := t.loadQuestionCounts(ctx, tx, tests); err != nil {
		return nil, 0, err
	}

	return tests, total, nil
}

// UpdateStatus changes only the status column
func (t *TestPostgreSQL) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.TestStatus) error {
	db := t.getDB(tx)
	res := db.WithContext(ctx).Model(&models.Test{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("failed to update test status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("test %d: %w", id, repositories.ErrNotFound)
	}

	t.cacheManager.InvalidateTest(ctx, id)
	return nil
}

func (t *TestPostgreSQL) CountQuestions(ctx context.Context, tx *gorm.DB, id uint) (int64, error) {
	var count int64
	if err := t.getDB(tx).WithContext(ctx).
		Model(&models.Question{}).
		Where("test_id = ?", id).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	return count, nil
}

func (t *TestPostgreSQL) HasResults(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	var count int64
	if err := t.getDB(tx).WithContext(ctx).
		Model(&models.TestResult{}).
		Where("test_id = ?", id).
		Limit(1).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check results: %w", err)
	}
	return count > 0, nil
}

// ===== HELPERS =====

type questionCountRow struct {
	TestID      uint
	Count       int
	TotalPoints int
}

func (t *TestPostgreSQL) loadQuestionCounts(ctx context.Context, tx *gorm.DB, tests []*models.Test) error {
	if len(tests) == 0 {
		return nil
	}
	ids := make([]uint, len(tests))
	for i, test := range tests {
		ids[i] = test.ID
	}

	var rows []questionCountRow
	if err := t.getDB(tx).WithContext(ctx).
		Model(&models.Question{}).
		Select("test_id, COUNT(*) AS count, COALESCE(SUM(points), 0) AS total_points").
		Where("test_id IN ?", ids).
		Group("test_id").
		Scan(&rows).Error; err != nil {
		return fmt.Errorf("failed to count questions: %w", err)
	}

	byTest := make(map[uint]questionCountRow, len(rows))
	for _, r := range rows {
		byTest[r.TestID] = r
	}
	for _, test := range tests {
		test.QuestionCount = byTest[test.ID].Count
		test.TotalPoints = byTest[test.ID].TotalPoints
	}
	return nil
}

func calculateComputedFields(test *models.Test) {
	test.QuestionCount = len(test.Questions)
	test.TotalPoints = 0
	for _, q := range test.Questions {
		test.TotalPoints += q.Points
	}
}
