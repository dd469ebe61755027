package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-service/internal/cache"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

type ScalePostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewScalePostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.ScaleRepository {
	return &ScalePostgreSQL{db: db, cacheManager: cacheManager}
}

func (s *ScalePostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

func (s *ScalePostgreSQL) Create(ctx context.Context, tx *gorm.DB, scale *models.AssessmentScale) error {
	if err := s.getDB(tx).WithContext(ctx).Create(scale).Error; err != nil {
		return fmt.Errorf("failed to create scale: %w", err)
	}
	s.invalidate(ctx, scale.TestID)
	return nil
}

func (s *ScalePostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.AssessmentScale, error) {
	var scale models.AssessmentScale
	if err := s.getDB(tx).WithContext(ctx).First(&scale, id).Error; err != nil {
		return nil, notFound(err, "scale", id)
	}
	return &scale, nil
}

func (s *ScalePostgreSQL) Update(ctx context.Context, tx *gorm.DB, scale *models.AssessmentScale) error {
	if err := s.getDB(tx).WithContext(ctx).Model(&models.AssessmentScale{}).Where("id = ?", scale.ID).Updates(map[string]interface{}{
		"name":           scale.Name,
		"label":          scale.Label,
		"min_percentage": scale.MinPercentage,
		"max_percentage": scale.MaxPercentage,
		"description":    scale.Description,
		"color":          scale.Color,
	}).Error; err != nil {
		return fmt.Errorf("failed to update scale: %w", err)
	}
	s.invalidate(ctx, scale.TestID)
	return nil
}

func (s *ScalePostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	scale, err := s.GetByID(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := s.getDB(tx).WithContext(ctx).Delete(&models.AssessmentScale{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete scale: %w", err)
	}
	s.invalidate(ctx, scale.TestID)
	return nil
}

func (s *ScalePostgreSQL) ListGlobal(ctx context.Context, tx *gorm.DB) ([]models.AssessmentScale, error) {
	var scales []models.AssessmentScale
	if err := s.getDB(tx).WithContext(ctx).
		Where("test_id IS NULL").
		Order("min_percentage DESC").
		Find(&scales).Error; err != nil {
		return nil, fmt.Errorf("failed to list global scales: %w", err)
	}
	return scales, nil
}

func (s *ScalePostgreSQL) ListByTest(ctx context.Context, tx *gorm.DB, testID uint) ([]models.AssessmentScale, error) {
	var scales []models.AssessmentScale
	if err := s.getDB(tx).WithContext(ctx).
		Where("test_id = ?", testID).
		Order("min_percentage DESC").
		Find(&scales).Error; err != nil {
		return nil, fmt.Errorf("failed to list test scales: %w", err)
	}
	return scales, nil
}

func (s *ScalePostgreSQL) invalidate(ctx context.Context, testID *uint) {
	if testID != nil {
		s.cacheManager.InvalidateTest(ctx, *testID)
	}
}
