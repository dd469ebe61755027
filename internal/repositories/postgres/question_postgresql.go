package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-service/internal/cache"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

type QuestionPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewQuestionPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.QuestionRepository {
	return &QuestionPostgreSQL{
		db:           db,
		cacheManager: cacheManager,
	}
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (q *QuestionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return q.db
}

// ===== BASIC CRUD OPERATIONS =====

// Create creates a question with its options and invalidates the owning test
func (q *QuestionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	db := q.getDB(tx)
	if err := db.WithContext(ctx).Create(question).Error; err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}

	q.cacheManager.InvalidateTest(ctx, question.TestID)
	return nil
}

// CreateBatch creates several questions in one statement per table
func (q *QuestionPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error {
	if len(questions) == 0 {
		return nil
	}
	db := q.getDB(tx)
	if err := db.WithContext(ctx).CreateInBatches(questions, 100).Error; err != nil {
		return fmt.Errorf("failed to create questions: %w", err)
	}

	tests := map[uint]struct{}{}
	for _, question := range questions {
		tests[question.TestID] = struct{}{}
	}
	for testID := range tests {
		q.cacheManager.InvalidateTest(ctx, testID)
	}
	return nil
}

// GetByID retrieves a question with its ordered options
func (q *QuestionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	db := q.getDB(tx)
	var question models.Question
	if err := db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order(orderColumn("", false)).Order("id ASC")
		}).
		First(&question, id).Error; err != nil {
		return nil, notFound(err, "question", id)
	}
	return &question, nil
}

// Update saves the question's own columns and, when Options is non-nil, replaces the options
func (q *QuestionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	err := q.getDB(tx).WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if err := db.Model(&models.Question{}).Where("id = ?", question.ID).Updates(map[string]interface{}{
			"text":        question.Text,
			"type":        question.Type,
			"points":      question.Points,
			"order":       question.Order,
			"explanation": question.Explanation,
			"category_id": question.CategoryID,
			"fuzzy_match": question.FuzzyMatch,
		}).Error; err != nil {
			return fmt.Errorf("failed to update question: %w", err)
		}

		if question.Options == nil {
			return nil
		}

		if err := db.Where("question_id = ?", question.ID).Delete(&models.AnswerOption{}).Error; err != nil {
			return fmt.Errorf("failed to clear options: %w", err)
		}
		for i := range question.Options {
			question.Options[i].ID = 0
			question.Options[i].QuestionID = question.ID
		}
		if len(question.Options) > 0 {
			if err := db.Create(&question.Options).Error; err != nil {
				return fmt.Errorf("failed to create options: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	q.cacheManager.InvalidateTest(ctx, question.TestID)
	return nil
}

// Delete removes a question and its options
func (q *QuestionPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := q.getDB(tx)

	var question models.Question
	if err := db.WithContext(ctx).Select("id, test_id").First(&question, id).Error; err != nil {
		return notFound(err, "question", id)
	}

	err := db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if err := db.Where("question_id = ?", id).Delete(&models.AnswerOption{}).Error; err != nil {
			return fmt.Errorf("failed to delete options: %w", err)
		}
		if err := db.Delete(&models.Question{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete question: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	q.cacheManager.InvalidateTest(ctx, question.TestID)
	return nil
}

// ===== QUERY OPERATIONS =====

func (q *QuestionPostgreSQL) ListByTest(ctx context.Context, tx *gorm.DB, testID uint) ([]*models.Question, error) {
	var questions []*models.Question
	if err := q.getDB(tx).WithContext(ctx).
		Where("test_id = ?", testID).
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order(orderColumn("", false)).Order("id ASC")
		}).
		Order(orderColumn("", false)).
		Order("id ASC").
		Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	return questions, nil
}

// Reorder sets the order of each listed question. Questions outside testID are not touched.
func (q *QuestionPostgreSQL) Reorder(ctx context.Context, tx *gorm.DB, testID uint, orders []repositories.QuestionOrder) error {
	err := q.getDB(tx).WithContext(ctx).Transaction(func(db *gorm.DB) error {
		for _, o := range orders {
			res := db.Model(&models.Question{}).
				Where("id = ? AND test_id = ?", o.QuestionID, testID).
				Update("order", o.Order)
			if res.Error != nil {
				return fmt.Errorf("failed to reorder question %d: %w", o.QuestionID, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("question %d in test %d: %w", o.QuestionID, testID, repositories.ErrNotFound)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	q.cacheManager.InvalidateTest(ctx, testID)
	return nil
}

// MaxOrder returns the highest order in the test, or 0 when it has no questions
func (q *QuestionPostgreSQL) MaxOrder(ctx context.Context, tx *gorm.DB, testID uint) (int, error) {
	var maxOrder int
	if err := q.getDB(tx).WithContext(ctx).
		Model(&models.Question{}).
		Where("test_id = ?", testID).
		Select(`COALESCE(MAX("order"), 0)`).
		Scan(&maxOrder).Error; err != nil {
		return 0, fmt.Errorf("failed to get max order: %w", err)
	}
	return maxOrder, nil
}
