package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-service/internal/cache"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

type testService struct {
	repo      repositories.Repository
	db        *gorm.DB
	cache     *cache.CacheManager
	logger    *slog.Logger
	validator *validator.Validator
}

func NewTestService(repo repositories.Repository, db *gorm.DB, cm *cache.CacheManager, logger *slog.Logger, validator *validator.Validator) TestService {
	if cm == nil {
		cm = cache.NewCacheManager(nil)
	}
	return &testService{
		repo:      repo,
		db:        db,
		cache:     cm,
		logger:    logger,
		validator: validator,
	}
}

// ===== CORE CRUD OPERATIONS =====

func (s *testService) Create(ctx context.Context, req *models.TestCreateRequest, userID string) (*TestResponse, error) {
	s.logger.Info("Creating test", "creator_id", userID, "title", req.Title)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	role, err := requireStaff(ctx, s.repo, userID, "test", "create")
	if err != nil {
		return nil, err
	}

	var errs ValidationErrors
	for i, q := range req.Questions {
		for _, e := range s.validator.Business.ValidateQuestion(q.Type, q.Options, q.FuzzyMatch) {
			e.Field = fmt.Sprintf("questions[%d].%s", i, e.Field)
			errs = append(errs, e)
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	if err := checkCategory(ctx, s.repo, req.CategoryID); err != nil {
		return nil, err
	}

	test := &models.Test{
		Title:              req.Title,
		Description:        req.Description,
		CategoryID:         req.CategoryID,
		Status:             models.TestDraft,
		TimeLimit:          req.TimeLimit,
		PassingScore:       req.PassingScore,
		MaxAttempts:        req.MaxAttempts,
		ShuffleQuestions:   req.ShuffleQuestions,
		ShowCorrectAnswers: lo.FromPtrOr(req.ShowCorrectAnswers, true),
		IsPublic:           lo.FromPtrOr(req.IsPublic, true),
		CreatedBy:          userID,
	}
	for i := range req.Questions {
		test.Questions = append(test.Questions, *buildQuestion(&req.Questions[i], 0, i+1))
	}

	if err := s.repo.Test().Create(ctx, nil, test); err != nil {
		return nil, fmt.Errorf("failed to create test: %w", err)
	}

	s.logger.Info("Test created successfully", "test_id", test.ID, "questions", len(test.Questions))
	s.cache.InvalidateTest(ctx, test.ID)

	created, err := loadTest(ctx, s.repo, test.ID, true)
	if err != nil {
		return nil, err
	}
	return s.buildTestResponse(created, userID, role), nil
}

func (s *testService) Get(ctx context.Context, id uint, userID string) (*TestResponse, error) {
	role, err := getUserRole(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}

	test, err := loadTest(ctx, s.repo, id, true)
	if err != nil {
		return nil, err
	}

	if !canViewTest(test, userID, role) {
		return nil, NewPermissionError(userID, id, "test", "read", "test is not published")
	}

	return s.buildTestResponse(test, userID, role), nil
}

func (s *testService) Update(ctx context.Context, id uint, req *models.TestUpdateRequest, userID string) (*TestResponse, error) {
	s.logger.Info("Updating test", "test_id", id, "user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	test, role, err := s.loadManaged(ctx, id, userID, "update")
	if err != nil {
		return nil, err
	}
	if test.Status == models.TestArchived {
		return nil, ErrTestArchived
	}

	if req.CategoryID != nil {
		if err := checkCategory(ctx, s.repo, req.CategoryID); err != nil {
			return nil, err
		}
		test.CategoryID = req.CategoryID
	}
	if req.Title != nil {
		test.Title = *req.Title
	}
	if req.Description != nil {
		test.Description = req.Description
	}
	if req.TimeLimit != nil {
		test.TimeLimit = *req.TimeLimit
	}
	if req.PassingScore != nil {
		test.PassingScore = *req.PassingScore
	}
	if req.MaxAttempts != nil {
		test.MaxAttempts = *req.MaxAttempts
	}
	if req.ShuffleQuestions != nil {
		test.ShuffleQuestions = *req.ShuffleQuestions
	}
	if req.ShowCorrectAnswers != nil {
		test.ShowCorrectAnswers = *req.ShowCorrectAnswers
	}
	if req.IsPublic != nil {
		test.IsPublic = *req.IsPublic
	}

	if err := s.repo.Test().Update(ctx, nil, test); err != nil {
		return nil, fmt.Errorf("failed to update test: %w", err)
	}

	s.logger.Info("Test updated successfully", "test_id", id)
	s.cache.InvalidateTest(ctx, id)

	updated, err := loadTest(ctx, s.repo, id, true)
	if err != nil {
		return nil, err
	}
	return s.buildTestResponse(updated, userID, role), nil
}

// Delete removes a test and the groups formed from it. Tests with results can only
// be removed by an admin.
func (s *testService) Delete(ctx context.Context, id uint, userID string) error {
	s.logger.Info("Deleting test", "test_id", id, "user_id", userID)

	_, role, err := s.loadManaged(ctx, id, userID, "delete")
	if err != nil {
		return err
	}

	hasResults, err := s.repo.Test().HasResults(ctx, nil, id)
	if err != nil {
		return fmt.Errorf("failed to check results: %w", err)
	}
	if hasResults && role != models.RoleAdmin {
		return NewBusinessRuleError("test_has_results", "test already has results and can only be deleted by an admin",
			map[string]interface{}{"test_id": id})
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Group().DeleteByTest(ctx, nil, id); err != nil {
			return err
		}
		return txRepo.Test().Delete(ctx, nil, id)
	})
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrTestNotFound
		}
		return fmt.Errorf("failed to delete test: %w", err)
	}

	s.logger.Info("Test deleted successfully", "test_id", id)
	s.cache.InvalidateTest(ctx, id)
	s.cache.InvalidateLeaderboards(ctx, id)
	return nil
}

func (s *testService) List(ctx context.Context, filters repositories.TestFilters, userID string) (*TestListResponse, error) {
	role, err := getUserRole(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}

	switch role {
	case models.RoleAdmin:
	case models.RoleTeacher:
		filters.VisibleTo = &userID
	default:
		published := models.TestPublished
		filters.Status = &published
	}

	var page int
	filters.Limit, filters.Offset, page = normalizePage(filters.Limit, filters.Offset)

	tests, total, err := s.repo.Test().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list tests: %w", err)
	}

	responses := lo.Map(tests, func(t *models.Test, _ int) *TestResponse {
		return s.buildTestResponse(t, userID, role)
	})

	return &TestListResponse{
		Tests: responses,
		Total: total,
		Page:  page,
		Size:  filters.Limit,
	}, nil
}

// ===== STATUS MANAGEMENT =====

func (s *testService) Publish(ctx context.Context, id uint, userID string) (*TestResponse, error) {
	return s.transition(ctx, id, userID, models.TestPublished)
}

func (s *testService) Unpublish(ctx context.Context, id uint, userID string) (*TestResponse, error) {
	return s.transition(ctx, id, userID, models.TestDraft)
}

func (s *testService) Archive(ctx context.Context, id uint, userID string) (*TestResponse, error) {
	return s.transition(ctx, id, userID, models.TestArchived)
}

func (s *testService) transition(ctx context.Context, id uint, userID string, next models.TestStatus) (*TestResponse, error) {
	s.logger.Info("Changing test status", "test_id", id, "user_id", userID, "status", next)

	role, err := getUserRole(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}

	test, err := loadTest(ctx, s.repo, id, true)
	if err != nil {
		return nil, err
	}
	if !canManageTest(test, userID, role) {
		return nil, NewPermissionError(userID, id, "test", "change status of", "not owner or insufficient permissions")
	}

	hasResults, err := s.repo.Test().HasResults(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("failed to check results: %w", err)
	}

	errs := s.validator.Business.ValidateStatusTransition(test.Status, next, hasResults, len(test.Questions))
	if next == models.TestPublished {
		errs = append(errs, s.validator.Business.ValidatePublishable(test)...)
	}
	if len(errs) > 0 {
		return nil, errs
	}

	if err := s.repo.Test().UpdateStatus(ctx, nil, id, next); err != nil {
		return nil, fmt.Errorf("failed to update test status: %w", err)
	}
	test.Status = next

	s.logger.Info("Test status changed", "test_id", id, "status", next)
	s.cache.InvalidateTest(ctx, id)
	return s.buildTestResponse(test, userID, role), nil
}

// Duplicate copies a test with its questions, options and test-specific scales into
// a new draft owned by userID.
func (s *testService) Duplicate(ctx context.Context, id uint, userID string) (*TestResponse, error) {
	s.logger.Info("Duplicating test", "test_id", id, "user_id", userID)

	role, err := requireStaff(ctx, s.repo, userID, "test", "duplicate")
	if err != nil {
		return nil, err
	}

	source, err := loadTest(ctx, s.repo, id, true)
	if err != nil {
		return nil, err
	}
	if !canViewTest(source, userID, role) {
		return nil, NewPermissionError(userID, id, "test", "duplicate", "test is not published")
	}

	clone := &models.Test{
		Title:              truncate(source.Title+" (copy)", 200),
		Description:        source.Description,
		CategoryID:         source.CategoryID,
		Status:             models.TestDraft,
		TimeLimit:          source.TimeLimit,
		PassingScore:       source.PassingScore,
		MaxAttempts:        source.MaxAttempts,
		ShuffleQuestions:   source.ShuffleQuestions,
		ShowCorrectAnswers: source.ShowCorrectAnswers,
		IsPublic:           source.IsPublic,
		CreatedBy:          userID,
	}
	for _, q := range source.Questions {
		copied := models.Question{
			Text:        q.Text,
			Type:        q.Type,
			Points:      q.Points,
			Order:       q.Order,
			Explanation: q.Explanation,
			CategoryID:  q.CategoryID,
			FuzzyMatch:  q.FuzzyMatch,
		}
		for _, o := range q.Options {
			copied.Options = append(copied.Options, models.AnswerOption{Text: o.Text, IsCorrect: o.IsCorrect, Order: o.Order})
		}
		clone.Questions = append(clone.Questions, copied)
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Test().Create(ctx, nil, clone); err != nil {
			return err
		}
		for _, sc := range source.Scales {
			scale := models.AssessmentScale{
				TestID:        &clone.ID,
				Name:          sc.Name,
				Label:         sc.Label,
				MinPercentage: sc.MinPercentage,
				MaxPercentage: sc.MaxPercentage,
				Description:   sc.Description,
				Color:         sc.Color,
			}
			if err := txRepo.Scale().Create(ctx, nil, &scale); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to duplicate test: %w", err)
	}

	s.logger.Info("Test duplicated successfully", "source_id", id, "test_id", clone.ID)
	s.cache.InvalidateTest(ctx, clone.ID)

	created, err := loadTest(ctx, s.repo, clone.ID, true)
	if err != nil {
		return nil, err
	}
	return s.buildTestResponse(created, userID, role), nil
}

// ===== HELPERS =====

func (s *testService) loadManaged(ctx context.Context, id uint, userID, action string) (*models.Test, models.UserRole, error) {
	role, err := getUserRole(ctx, s.repo, userID)
	if err != nil {
		return nil, "", err
	}
	test, err := loadTest(ctx, s.repo, id, false)
	if err != nil {
		return nil, "", err
	}
	if !canManageTest(test, userID, role) {
		return nil, "", NewPermissionError(userID, id, "test", action, "not owner or insufficient permissions")
	}
	return test, role, nil
}

func (s *testService) buildTestResponse(test *models.Test, userID string, role models.UserRole) *TestResponse {
	manage := canManageTest(test, userID, role)
	if !manage {
		test = TestForTaking(test)
	}
	return &TestResponse{
		Test:      test,
		CanEdit:   manage && test.Status != models.TestArchived,
		CanDelete: manage,
		CanTake:   test.Status == models.TestPublished,
	}
}

// TestForTaking returns a copy of test safe to show to a test taker: correct flags are
// cleared and the accepted answers of text questions are removed.
func TestForTaking(test *models.Test) *models.Test {
	clone := *test
	clone.Questions = make([]models.Question, len(test.Questions))
	for i, q := range test.Questions {
		q.Options = nil
		if q.Type.IsChoice() {
			q.Options = lo.Map(test.Questions[i].Options, func(o models.AnswerOption, _ int) models.AnswerOption {
				o.IsCorrect = false
				return o
			})
		}
		q.Explanation = nil
		clone.Questions[i] = q
	}
	return &clone
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
