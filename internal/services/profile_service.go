package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

type profileService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewProfileService(repo repositories.Repository, logger *slog.Logger) ProfileService {
	return &profileService{repo: repo, logger: logger}
}

// Sync stores the authenticated identity locally so results and groups can show names.
func (s *profileService) Sync(ctx context.Context, user *models.User) (*models.Profile, error) {
	if user == nil || user.ID == "" {
		return nil, ErrUnauthorized
	}

	profile := models.ProfileFromUser(user)
	if profile.Role == "" {
		profile.Role = models.RoleStudent
	}
	if profile.FullName == "" {
		profile.FullName = strings.Split(profile.Email, "@")[0]
	}
	if profile.Email == "" {
		profile.Email = profile.ID
	}

	if err := s.repo.Profile().Upsert(ctx, nil, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *profileService) Me(ctx context.Context, userID string) (*models.Profile, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	return s.lookup(ctx, userID)
}

// Get lets staff see anyone; students only themselves.
func (s *profileService) Get(ctx context.Context, id string, viewerID string) (*models.Profile, error) {
	if id != viewerID {
		if _, err := requireStaff(ctx, s.repo, viewerID, "profile", "read"); err != nil {
			return nil, err
		}
	}
	return s.lookup(ctx, id)
}

func (s *profileService) List(ctx context.Context, filters repositories.ProfileFilters, viewerID string) (*ProfileListResponse, error) {
	if _, err := requireStaff(ctx, s.repo, viewerID, "profile", "list"); err != nil {
		return nil, err
	}

	var page int
	filters.Limit, filters.Offset, page = normalizePage(filters.Limit, filters.Offset)

	profiles, total, err := s.repo.Profile().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return &ProfileListResponse{Profiles: profiles, Total: total, Page: page, Size: filters.Limit}, nil
}

// SearchDirectory queries the identity provider, including users that never signed in here.
func (s *profileService) SearchDirectory(ctx context.Context, query string, filters repositories.UserFilters, viewerID string) (*DirectoryResponse, error) {
	if _, err := requireStaff(ctx, s.repo, viewerID, "directory", "search"); err != nil {
		return nil, err
	}

	filters.Limit, filters.Offset, _ = normalizePage(filters.Limit, filters.Offset)

	var (
		users []*models.User
		total int64
		err   error
	)
	if query = strings.TrimSpace(query); query == "" {
		users, total, err = s.repo.User().List(ctx, filters)
	} else {
		users, total, err = s.repo.User().Search(ctx, query, filters)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to search directory: %w", err)
	}
	return &DirectoryResponse{Users: users, Total: total}, nil
}

// lookup falls back to the directory for users without a local profile.
func (s *profileService) lookup(ctx context.Context, id string) (*models.Profile, error) {
	profile, err := s.repo.Profile().GetByID(ctx, nil, id)
	if err == nil {
		return profile, nil
	}
	if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	user, err := s.repo.User().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	s.logger.Debug("Profile not synced yet, using directory entry", "user_id", id)
	return models.ProfileFromUser(user), nil
}
