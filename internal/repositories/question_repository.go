package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

// TestRepository interface for test authoring
type TestRepository interface {
	Create(ctx context.Context, tx *gorm.DB, test *models.Test) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Test, error)
	GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Test, error) // questions, options, scales
	Update(ctx context.Context, tx *gorm.DB, test *models.Test) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	List(ctx context.Context, tx *gorm.DB, filters TestFilters) ([]*models.Test, int64, error)

	UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.TestStatus) error
	CountQuestions(ctx context.Context, tx *gorm.DB, id uint) (int64, error)
	HasResults(ctx context.Context, tx *gorm.DB, id uint) (bool, error)
}

// QuestionRepository interface for questions and their options
type QuestionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, question *models.Question) error
	CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error)
	// Update replaces the option set when question.Options is non-nil.
	Update(ctx context.Context, tx *gorm.DB, question *models.Question) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	ListByTest(ctx context.Context, tx *gorm.DB, testID uint) ([]*models.Question, error)
	Reorder(ctx context.Context, tx *gorm.DB, testID uint, orders []QuestionOrder) error
	MaxOrder(ctx context.Context, tx *gorm.DB, testID uint) (int, error)
}

type CategoryRepository interface {
	Create(ctx context.Context, tx *gorm.DB, category *models.Category) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Category, error)
	Update(ctx context.Context, tx *gorm.DB, category *models.Category) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	List(ctx context.Context, tx *gorm.DB) ([]*models.Category, error)

	ExistsByName(ctx context.Context, tx *gorm.DB, name string, excludeID *uint) (bool, error)
	HasTests(ctx context.Context, tx *gorm.DB, id uint) (bool, error)
}

type ScaleRepository interface {
	Create(ctx context.Context, tx *gorm.DB, scale *models.AssessmentScale) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.AssessmentScale, error)
	Update(ctx context.Context, tx *gorm.DB, scale *models.AssessmentScale) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	ListGlobal(ctx context.Context, tx *gorm.DB) ([]models.AssessmentScale, error)
	ListByTest(ctx context.Context, tx *gorm.DB, testID uint) ([]models.AssessmentScale, error)
}
