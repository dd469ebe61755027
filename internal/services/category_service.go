package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

type categoryService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewCategoryService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) CategoryService {
	return &categoryService{repo: repo, logger: logger, validator: validator}
}

func (s *categoryService) Create(ctx context.Context, req *models.CategoryRequest, userID string) (*models.Category, error) {
	s.logger.Info("Creating category", "name", req.Name, "user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if _, err := requireStaff(ctx, s.repo, userID, "category", "create"); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	exists, err := s.repo.Category().ExistsByName(ctx, nil, name, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to check category name: %w", err)
	}
	if exists {
		return nil, ErrDuplicateCategory
	}

	category := &models.Category{
		Name:        name,
		Description: req.Description,
		Color:       req.Color,
		CreatedBy:   userID,
	}
	if err := s.repo.Category().Create(ctx, nil, category); err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	s.logger.Info("Category created successfully", "category_id", category.ID)
	return category, nil
}

func (s *categoryService) Get(ctx context.Context, id uint) (*models.Category, error) {
	category, err := s.repo.Category().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return category, nil
}

func (s *categoryService) Update(ctx context.Context, id uint, req *models.CategoryRequest, userID string) (*models.Category, error) {
	s.logger.Info("Updating category", "category_id", id, "user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	category, err := s.loadManaged(ctx, id, userID, "update")
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	exists, err := s.repo.Category().ExistsByName(ctx, nil, name, &id)
	if err != nil {
		return nil, fmt.Errorf("failed to check category name: %w", err)
	}
	if exists {
		return nil, ErrDuplicateCategory
	}

	category.Name = name
	category.Description = req.Description
	category.Color = req.Color
	if err := s.repo.Category().Update(ctx, nil, category); err != nil {
		return nil, fmt.Errorf("failed to update category: %w", err)
	}
	return category, nil
}

// Delete refuses while a test or question still references the category.
func (s *categoryService) Delete(ctx context.Context, id uint, userID string) error {
	s.logger.Info("Deleting category", "category_id", id, "user_id", userID)

	if _, err := s.loadManaged(ctx, id, userID, "delete"); err != nil {
		return err
	}

	inUse, err := s.repo.Category().HasTests(ctx, nil, id)
	if err != nil {
		return fmt.Errorf("failed to check category usage: %w", err)
	}
	if inUse {
		return ErrCategoryInUse
	}

	if err := s.repo.Category().Delete(ctx, nil, id); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrCategoryNotFound
		}
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return nil
}

func (s *categoryService) List(ctx context.Context) ([]*models.Category, error) {
	categories, err := s.repo.Category().List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// loadManaged returns the category when userID is an admin or the teacher who created it.
func (s *categoryService) loadManaged(ctx context.Context, id uint, userID, action string) (*models.Category, error) {
	role, err := requireStaff(ctx, s.repo, userID, "category", action)
	if err != nil {
		return nil, err
	}
	category, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if role != models.RoleAdmin && category.CreatedBy != userID {
		return nil, NewPermissionError(userID, id, "category", action, "not owner or insufficient permissions")
	}
	return category, nil
}

// ===== SCALES =====

type scaleService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewScaleService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) ScaleService {
	return &scaleService{repo: repo, logger: logger, validator: validator}
}

func (s *scaleService) Create(ctx context.Context, req *models.ScaleRequest, userID string) (*models.AssessmentScale, error) {
	s.logger.Info("Creating scale", "label", req.Label, "test_id", req.TestID, "user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := s.checkScope(ctx, req.TestID, userID, "create"); err != nil {
		return nil, err
	}
	if err := s.checkOverlap(ctx, req, 0); err != nil {
		return nil, err
	}

	scale := &models.AssessmentScale{
		TestID:        req.TestID,
		Name:          req.Name,
		Label:         req.Label,
		MinPercentage: req.MinPercentage,
		MaxPercentage: req.MaxPercentage,
		Description:   req.Description,
		Color:         req.Color,
	}
	if err := s.repo.Scale().Create(ctx, nil, scale); err != nil {
		return nil, fmt.Errorf("failed to create scale: %w", err)
	}

	s.logger.Info("Scale created successfully", "scale_id", scale.ID)
	return scale, nil
}

func (s *scaleService) Get(ctx context.Context, id uint) (*models.AssessmentScale, error) {
	scale, err := s.repo.Scale().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrScaleNotFound
		}
		return nil, fmt.Errorf("failed to get scale: %w", err)
	}
	return scale, nil
}

// Update keeps the scale in its original scope; req.TestID is ignored.
func (s *scaleService) Update(ctx context.Context, id uint, req *models.ScaleRequest, userID string) (*models.AssessmentScale, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	scale, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkScope(ctx, scale.TestID, userID, "update"); err != nil {
		return nil, err
	}

	req.TestID = scale.TestID
	if err := s.checkOverlap(ctx, req, id); err != nil {
		return nil, err
	}

	scale.Name = req.Name
	scale.Label = req.Label
	scale.MinPercentage = req.MinPercentage
	scale.MaxPercentage = req.MaxPercentage
	scale.Description = req.Description
	scale.Color = req.Color
	if err := s.repo.Scale().Update(ctx, nil, scale); err != nil {
		return nil, fmt.Errorf("failed to update scale: %w", err)
	}
	return scale, nil
}

func (s *scaleService) Delete(ctx context.Context, id uint, userID string) error {
	scale, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.checkScope(ctx, scale.TestID, userID, "delete"); err != nil {
		return err
	}
	if err := s.repo.Scale().Delete(ctx, nil, id); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrScaleNotFound
		}
		return fmt.Errorf("failed to delete scale: %w", err)
	}
	return nil
}

func (s *scaleService) List(ctx context.Context, testID *uint) ([]models.AssessmentScale, error) {
	var (
		scales []models.AssessmentScale
		err    error
	)
	if testID == nil {
		scales, err = s.repo.Scale().ListGlobal(ctx, nil)
	} else {
		scales, err = s.repo.Scale().ListByTest(ctx, nil, *testID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list scales: %w", err)
	}
	return scales, nil
}

// checkScope: global scales are admin-only, test scales follow test ownership.
func (s *scaleService) checkScope(ctx context.Context, testID *uint, userID, action string) error {
	role, err := requireStaff(ctx, s.repo, userID, "scale", action)
	if err != nil {
		return err
	}
	if testID == nil {
		if role != models.RoleAdmin {
			return NewPermissionError(userID, 0, "global scale", action, "admin role required")
		}
		return nil
	}

	test, err := loadTest(ctx, s.repo, *testID, false)
	if err != nil {
		return err
	}
	if !canManageTest(test, userID, role) {
		return NewPermissionError(userID, *testID, "test", action+" scales of", "not owner or insufficient permissions")
	}
	return nil
}

func (s *scaleService) checkOverlap(ctx context.Context, req *models.ScaleRequest, excludeID uint) error {
	existing, err := s.List(ctx, req.TestID)
	if err != nil {
		return err
	}
	return s.validator.Business.ValidateScaleRange(req.MinPercentage, req.MaxPercentage, existing, excludeID).OrNil()
}
