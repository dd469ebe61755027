package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-service/internal/cache"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

type CategoryPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewCategoryPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.CategoryRepository {
	return &CategoryPostgreSQL{db: db, cacheManager: cacheManager}
}

func (c *CategoryPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return c.db
}

func (c *CategoryPostgreSQL) Create(ctx context.Context, tx *gorm.DB, category *models.Category) error {
	if err := c.getDB(tx).WithContext(ctx).Create(category).Error; err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

func (c *CategoryPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Category, error) {
	var category models.Category
	if err := c.getDB(tx).WithContext(ctx).First(&category, id).Error; err != nil {
		return nil, notFound(err, "category", id)
	}
	return &category, nil
}

func (c *CategoryPostgreSQL) Update(ctx context.Context, tx *gorm.DB, category *models.Category) error {
	if err := c.getDB(tx).WithContext(ctx).Model(&models.Category{}).Where("id = ?", category.ID).Updates(map[string]interface{}{
		"name":        category.Name,
		"description": category.Description,
		"color":       category.Color,
	}).Error; err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}

	// category names are embedded in cached leaderboards and competency views
	cache.SafeInvalidatePattern(ctx, c.cacheManager.Competency, "*")
	cache.SafeInvalidatePattern(ctx, c.cacheManager.Leaderboard, "global:*")
	return nil
}

func (c *CategoryPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	res := c.getDB(tx).WithContext(ctx).Delete(&models.Category{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete category: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("category %d: %w", id, repositories.ErrNotFound)
	}
	return nil
}

func (c *CategoryPostgreSQL) List(ctx context.Context, tx *gorm.DB) ([]*models.Category, error) {
	var categories []*models.Category
	if err := c.getDB(tx).WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// ExistsByName compares names case-insensitively
func (c *CategoryPostgreSQL) ExistsByName(ctx context.Context, tx *gorm.DB, name string, excludeID *uint) (bool, error) {
	query := c.getDB(tx).WithContext(ctx).Model(&models.Category{}).Where("LOWER(name) = LOWER(?)", name)
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check category name: %w", err)
	}
	return count > 0, nil
}

// HasTests reports whether any test or question still points at the category
func (c *CategoryPostgreSQL) HasTests(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	db := c.getDB(tx).WithContext(ctx)

	var count int64
	if err := db.Model(&models.Test{}).Where("category_id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check category usage: %w", err)
	}
	if count > 0 {
		return true, nil
	}
	if err := db.Model(&models.Question{}).Where("category_id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check category usage: %w", err)
	}
	return count > 0, nil
}
