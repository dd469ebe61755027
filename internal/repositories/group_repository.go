package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

type GroupRepository interface {
	// Create stores the group together with its members.
	Create(ctx context.Context, tx *gorm.DB, group *models.Group) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Group, error)
	List(ctx context.Context, tx *gorm.DB, filters GroupFilters) ([]*models.Group, int64, error)
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	DeleteByTest(ctx context.Context, tx *gorm.DB, testID uint) error

	AddMember(ctx context.Context, tx *gorm.DB, member *models.GroupMember) error
	RemoveMember(ctx context.Context, tx *gorm.DB, groupID uint, userID string) error
	UpdateStats(ctx context.Context, tx *gorm.DB, group *models.Group) error
}

type RecommendationRepository interface {
	Create(ctx context.Context, tx *gorm.DB, rec *models.AIRecommendation) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.AIRecommendation, error)
	GetByResult(ctx context.Context, tx *gorm.DB, resultID uint) (*models.AIRecommendation, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID string) ([]*models.AIRecommendation, error)
	Update(ctx context.Context, tx *gorm.DB, rec *models.AIRecommendation) error
}
