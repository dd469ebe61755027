package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

type GroupPostgreSQL struct {
	db *gorm.DB
}

func NewGroupPostgreSQL(db *gorm.DB) repositories.GroupRepository {
	return &GroupPostgreSQL{db: db}
}

func (g *GroupPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return g.db
}

func (g *GroupPostgreSQL) Create(ctx context.Context, tx *gorm.DB, group *models.Group) error {
	if err := g.getDB(tx).WithContext(ctx).Create(group).Error; err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}
	return nil
}

func (g *GroupPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Group, error) {
	var group models.Group
	if err := g.getDB(tx).WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB {
			return db.Order("is_leader DESC, score DESC, user_id ASC")
		}).
		Preload("Members.Profile").
		First(&group, id).Error; err != nil {
		return nil, notFound(err, "group", id)
	}
	return &group, nil
}

func (g *GroupPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.GroupFilters) ([]*models.Group, int64, error) {
	query := g.getDB(tx).WithContext(ctx).Model(&models.Group{})
	if filters.TestID != nil {
		query = query.Where("test_id = ?", *filters.TestID)
	}
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	if filters.MemberID != nil {
		query = query.Where("id IN (?)", g.getDB(tx).Model(&models.GroupMember{}).Select("group_id").Where("user_id = ?", *filters.MemberID))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count groups: %w", err)
	}

	var groups []*models.Group
	query = applyPaginationAndSort(query, "created_at", "desc", filters.Limit, filters.Offset)
	if err := query.
		Preload("Members", func(db *gorm.DB) *gorm.DB {
			return db.Order("is_leader DESC, score DESC, user_id ASC")
		}).
		Preload("Members.Profile").
		Find(&groups).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list groups: %w", err)
	}
	return groups, total, nil
}

func (g *GroupPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	return g.getDB(tx).WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if err := db.Where("group_id = ?", id).Delete(&models.GroupMember{}).Error; err != nil {
			return fmt.Errorf("failed to delete group members: %w", err)
		}
		res := db.Delete(&models.Group{}, id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete group: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("group %d: %w", id, repositories.ErrNotFound)
		}
		return nil
	})
}

// DeleteByTest removes every group generated for a test
func (g *GroupPostgreSQL) DeleteByTest(ctx context.Context, tx *gorm.DB, testID uint) error {
	return g.getDB(tx).WithContext(ctx).Transaction(func(db *gorm.DB) error {
		sub := db.Model(&models.Group{}).Select("id").Where("test_id = ?", testID)
		if err := db.Where("group_id IN (?)", sub).Delete(&models.GroupMember{}).Error; err != nil {
			return fmt.Errorf("failed to delete group members: %w", err)
		}
		if err := db.Where("test_id = ?", testID).Delete(&models.Group{}).Error; err != nil {
			return fmt.Errorf("failed to delete groups: %w", err)
		}
		return nil
	})
}

func (g *GroupPostgreSQL) AddMember(ctx context.Context, tx *gorm.DB, member *models.GroupMember) error {
	if err := g.getDB(tx).WithContext(ctx).Omit("Profile").Create(member).Error; err != nil {
		return fmt.Errorf("failed to add group member: %w", err)
	}
	return nil
}

func (g *GroupPostgreSQL) RemoveMember(ctx context.Context, tx *gorm.DB, groupID uint, userID string) error {
	res := g.getDB(tx).WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&models.GroupMember{})
	if res.Error != nil {
		return fmt.Errorf("failed to remove group member: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("member %s of group %d: %w", userID, groupID, repositories.ErrNotFound)
	}
	return nil
}

// UpdateStats stores the group's score statistics and leader flags
func (g *GroupPostgreSQL) UpdateStats(ctx context.Context, tx *gorm.DB, group *models.Group) error {
	return g.getDB(tx).WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if err := db.Model(&models.Group{}).Where("id = ?", group.ID).Updates(map[string]interface{}{
			"average_score":  group.AverageScore,
			"score_variance": group.ScoreVariance,
			"balance_score":  group.BalanceScore,
		}).Error; err != nil {
			return fmt.Errorf("failed to update group stats: %w", err)
		}
		for _, m := range group.Members {
			if err := db.Model(&models.GroupMember{}).
				Where("group_id = ? AND user_id = ?", group.ID, m.UserID).
				Update("is_leader", m.IsLeader).Error; err != nil {
				return fmt.Errorf("failed to update group leader: %w", err)
			}
		}
		return nil
	})
}
