package services

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// getUserRole resolves the caller's role from the local profile, falling back to the
// identity directory for users that never went through profile sync.
func getUserRole(ctx context.Context, repo repositories.Repository, userID string) (models.UserRole, error) {
	if userID == "" {
		return "", ErrUnauthorized
	}

	profile, err := repo.Profile().GetByID(ctx, nil, userID)
	if err == nil {
		return profile.Role, nil
	}
	if !repositories.IsNotFoundError(err) {
		return "", fmt.Errorf("failed to get profile: %w", err)
	}

	user, err := repo.User().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	return user.Role, nil
}

func requireStaff(ctx context.Context, repo repositories.Repository, userID, resource, action string) (models.UserRole, error) {
	role, err := getUserRole(ctx, repo, userID)
	if err != nil {
		return "", err
	}
	if !role.IsStaff() {
		return "", NewPermissionError(userID, 0, resource, action, "teacher or admin role required")
	}
	return role, nil
}

// canManageTest reports whether role/userID may edit test.
func canManageTest(test *models.Test, userID string, role models.UserRole) bool {
	if role == models.RoleAdmin {
		return true
	}
	return role == models.RoleTeacher && test.IsOwnedBy(userID)
}

// canViewTest: published tests are public, drafts and archived tests only to managers.
func canViewTest(test *models.Test, userID string, role models.UserRole) bool {
	if test.Status == models.TestPublished {
		return true
	}
	return canManageTest(test, userID, role)
}

func loadTest(ctx context.Context, repo repositories.Repository, id uint, details bool) (*models.Test, error) {
	var (
		test *models.Test
		err  error
	)
	if details {
		test, err = repo.Test().GetByIDWithDetails(ctx, nil, id)
	} else {
		test, err = repo.Test().GetByID(ctx, nil, id)
	}
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get test: %w", err)
	}
	return test, nil
}

// normalizePage clamps limit/offset and returns the 1-based page they describe.
func normalizePage(limit, offset int) (int, int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset, offset/limit + 1
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func checkCategory(ctx context.Context, repo repositories.Repository, categoryID *uint) error {
	if categoryID == nil {
		return nil
	}
	if _, err := repo.Category().GetByID(ctx, nil, *categoryID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrCategoryNotFound
		}
		return fmt.Errorf("failed to get category: %w", err)
	}
	return nil
}
