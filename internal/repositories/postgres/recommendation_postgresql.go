package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

type RecommendationPostgreSQL struct {
	db *gorm.DB
}

func NewRecommendationPostgreSQL(db *gorm.DB) repositories.RecommendationRepository {
	return &RecommendationPostgreSQL{db: db}
}

func (r *RecommendationPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *RecommendationPostgreSQL) Create(ctx context.Context, tx *gorm.DB, rec *models.AIRecommendation) error {
	if err := r.getDB(tx).WithContext(ctx).Create(rec).Error; err != nil {
		if repositories.IsDuplicateError(err) {
			return fmt.Errorf("recommendation for result %d: %w", rec.ResultID, repositories.ErrDuplicate)
		}
		return fmt.Errorf("failed to create recommendation: %w", err)
	}
	return nil
}

func (r *RecommendationPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.AIRecommendation, error) {
	var rec models.AIRecommendation
	if err := r.getDB(tx).WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, notFound(err, "recommendation", id)
	}
	return &rec, nil
}

func (r *RecommendationPostgreSQL) GetByResult(ctx context.Context, tx *gorm.DB, resultID uint) (*models.AIRecommendation, error) {
	var rec models.AIRecommendation
	if err := r.getDB(tx).WithContext(ctx).Where("result_id = ?", resultID).First(&rec).Error; err != nil {
		return nil, notFound(err, "recommendation for result", resultID)
	}
	return &rec, nil
}

func (r *RecommendationPostgreSQL) ListByUser(ctx context.Context, tx *gorm.DB, userID string) ([]*models.AIRecommendation, error) {
	var recs []*models.AIRecommendation
	if err := r.getDB(tx).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list recommendations: %w", err)
	}
	return recs, nil
}

func (r *RecommendationPostgreSQL) Update(ctx context.Context, tx *gorm.DB, rec *models.AIRecommendation) error {
	if err := r.getDB(tx).WithContext(ctx).Model(&models.AIRecommendation{}).Where("id = ?", rec.ID).Updates(map[string]interface{}{
		"content":        rec.Content,
		"model":          rec.Model,
		"status":         rec.Status,
		"error":          rec.Error,
		"prompt_context": rec.PromptContext,
	}).Error; err != nil {
		return fmt.Errorf("failed to update recommendation: %w", err)
	}
	return nil
}
