package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/samber/lo"

	"github.com/SAP-F-2025/quiz-service/internal/cache"
	"github.com/SAP-F-2025/quiz-service/internal/events"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/scoring"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

// DefaultSubmissionGrace is added to a test's time limit before a submission counts as timed out.
const DefaultSubmissionGrace = 30 * time.Second

type attemptService struct {
	repo      repositories.Repository
	cache     *cache.CacheManager
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *validator.Validator
	grace     time.Duration
	now       func() time.Time
}

func NewAttemptService(repo repositories.Repository, cm *cache.CacheManager, publisher events.EventPublisher, logger *slog.Logger, validator *validator.Validator, grace time.Duration) AttemptService {
	if cm == nil {
		cm = cache.NewCacheManager(nil)
	}
	return &attemptService{
		repo:      repo,
		cache:     cm,
		publisher: publisher,
		logger:    logger,
		validator: validator,
		grace:     grace,
		now:       time.Now,
	}
}

// ===== TAKING =====

// Start opens an attempt, or returns the caller's open attempt on the test if there is one.
func (s *attemptService) Start(ctx context.Context, testID uint, userID string) (*AttemptResponse, error) {
	s.logger.Info("Starting attempt", "test_id", testID, "user_id", userID)

	if _, err := getUserRole(ctx, s.repo, userID); err != nil {
		return nil, err
	}

	test, err := loadTest(ctx, s.repo, testID, true)
	if err != nil {
		return nil, err
	}

	var (
		result  *models.TestResult
		resumed bool
	)
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		open, err := txRepo.Result().GetInProgress(ctx, nil, testID, userID)
		if err == nil {
			result, resumed = open, true
			return nil
		}
		if !repositories.IsNotFoundError(err) {
			return err
		}

		count, err := txRepo.Result().CountAttempts(ctx, nil, testID, userID)
		if err != nil {
			return err
		}
		if err := attemptStartError(s.validator.Business.ValidateAttemptStart(test.Status, count, test.MaxAttempts)); err != nil {
			return err
		}

		result = &models.TestResult{
			TestID:        testID,
			UserID:        userID,
			AttemptNumber: int(count) + 1,
			Status:        models.ResultInProgress,
			StartedAt:     s.now(),
		}
		return txRepo.Result().Create(ctx, nil, result)
	})
	if repositories.IsDuplicateError(err) {
		// a concurrent Start opened the attempt first
		result, err = s.repo.Result().GetInProgress(ctx, nil, testID, userID)
		resumed = true
	}
	if err != nil {
		return nil, err
	}

	if resumed {
		s.logger.Info("Resuming attempt", "result_id", result.ID, "test_id", testID)
	} else {
		s.logger.Info("Attempt started", "result_id", result.ID, "attempt_number", result.AttemptNumber)
	}

	resp := &AttemptResponse{
		Result:  result,
		Test:    shuffledForTaking(test, result.ID),
		Resumed: resumed,
	}
	if deadline := test.Deadline(result.StartedAt, 0); !deadline.IsZero() {
		resp.Deadline = &deadline
	}
	return resp, nil
}

// SaveAnswer stores an answer on an open attempt. Grading happens on submit.
func (s *attemptService) SaveAnswer(ctx context.Context, resultID uint, answer *models.AnswerSubmission, userID string) error {
	if err := s.validator.Validate(answer); err != nil {
		return err
	}

	result, test, err := s.loadOpenAttempt(ctx, resultID, userID)
	if err != nil {
		return err
	}

	if _, ok := lo.Find(test.Questions, func(q models.Question) bool { return q.ID == answer.QuestionID }); !ok {
		return fmt.Errorf("%w: question %d is not part of test %d", ErrBadRequest, answer.QuestionID, test.ID)
	}

	if deadline := test.Deadline(result.StartedAt, s.grace); !deadline.IsZero() && s.now().After(deadline) {
		return NewBusinessRuleError("time_limit", "time limit exceeded, submit the attempt",
			map[string]interface{}{"result_id": resultID, "deadline": deadline})
	}

	ua := &models.UserAnswer{
		ResultID:   resultID,
		QuestionID: answer.QuestionID,
		TextAnswer: answer.TextAnswer,
		AnsweredAt: s.now(),
	}
	ua.SetSelectedIDs(answer.SelectedOptionIDs)

	if err := s.repo.Result().SaveAnswer(ctx, nil, ua); err != nil {
		return fmt.Errorf("failed to save answer: %w", err)
	}
	return nil
}

// Submit grades every question of the test, using saved answers overridden by the
// ones in req, and closes the attempt. Late submissions are scored and flagged timed_out.
func (s *attemptService) Submit(ctx context.Context, resultID uint, req *models.SubmitResultRequest, userID string) (*ResultResponse, error) {
	s.logger.Info("Submitting attempt", "result_id", resultID, "user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	result, test, err := s.loadOpenAttempt(ctx, resultID, userID)
	if err != nil {
		return nil, err
	}

	globalScales, err := s.repo.Scale().ListGlobal(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load scales: %w", err)
	}

	saved, err := s.repo.Result().GetAnswers(ctx, nil, resultID)
	if err != nil {
		return nil, err
	}
	submissions := mergeSubmissions(saved, req.Answers)
	grade := scoring.GradeTest(test, lo.Values(submissions), globalScales)

	now := s.now()
	result.Score = grade.Score
	result.MaxScore = grade.MaxScore
	result.Percentage = grade.Percentage
	result.Passed = grade.Passed
	result.CompletedAt = &now
	result.TimeSpent = int(now.Sub(result.StartedAt).Seconds())
	result.Status = models.ResultCompleted
	if deadline := test.Deadline(result.StartedAt, s.grace); !deadline.IsZero() && now.After(deadline) {
		result.Status = models.ResultTimedOut
	}
	if grade.Scale != nil {
		label := grade.Scale.Label
		result.ScaleLabel = &label
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		// closing the row first makes a concurrent submit fail before it touches answers
		if err := txRepo.Result().Complete(ctx, nil, result); err != nil {
			return err
		}

		for _, o := range grade.Outcomes {
			ua := &models.UserAnswer{
				ResultID:     resultID,
				QuestionID:   o.QuestionID,
				IsCorrect:    o.IsCorrect,
				PointsEarned: o.PointsEarned,
				AnsweredAt:   now,
			}
			sub := submissions[o.QuestionID]
			ua.TextAnswer = sub.TextAnswer
			ua.SetSelectedIDs(sub.SelectedOptionIDs)
			if err := txRepo.Result().SaveAnswer(ctx, nil, ua); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return nil, ErrResultAlreadyCompleted
		}
		return nil, err
	}

	s.logger.Info("Attempt submitted",
		"result_id", resultID,
		"status", result.Status,
		"score", result.Score,
		"max_score", result.MaxScore,
		"percentage", result.Percentage)

	s.cache.InvalidateLeaderboards(ctx, result.TestID)
	s.cache.InvalidateCompetency(ctx, result.UserID)
	s.publishCompleted(ctx, result, test)

	return s.Get(ctx, resultID, userID)
}

// ===== QUERIES =====

func (s *attemptService) Get(ctx context.Context, resultID uint, userID string) (*ResultResponse, error) {
	role, err := getUserRole(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}

	result, err := s.repo.Result().GetByIDWithAnswers(ctx, nil, resultID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	test, err := loadTest(ctx, s.repo, result.TestID, true)
	if err != nil {
		return nil, err
	}

	manager := canManageTest(test, userID, role)
	if result.UserID != userID && !manager {
		return nil, NewPermissionError(userID, resultID, "result", "read", "not the owner of the result")
	}

	resp := &ResultResponse{
		Result:          result,
		TestTitle:       test.Title,
		CorrectRevealed: result.Status.IsFinished() && (test.ShowCorrectAnswers || manager),
	}
	if result.Status.IsFinished() {
		resp.Questions = buildReview(test, result.Answers, resp.CorrectRevealed)
	}
	if test.MaxAttempts > 0 && result.UserID == userID {
		count, err := s.repo.Result().CountAttempts(ctx, nil, test.ID, userID)
		if err != nil {
			return nil, err
		}
		remaining := max(0, test.MaxAttempts-int(count))
		resp.RemainingAttempts = &remaining
	}
	// answers are surfaced through Questions
	result.Answers = nil
	return resp, nil
}

func (s *attemptService) ListMine(ctx context.Context, userID string, filters repositories.ResultFilters) (*ResultListResponse, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}

	var page int
	filters.Limit, filters.Offset, page = normalizePage(filters.Limit, filters.Offset)

	results, total, err := s.repo.Result().ListByUser(ctx, nil, userID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	return &ResultListResponse{Results: results, Total: total, Page: page, Size: filters.Limit}, nil
}

func (s *attemptService) ListByTest(ctx context.Context, testID uint, userID string, filters repositories.ResultFilters) (*ResultListResponse, error) {
	role, err := getUserRole(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}
	test, err := loadTest(ctx, s.repo, testID, false)
	if err != nil {
		return nil, err
	}
	if !canManageTest(test, userID, role) {
		return nil, NewPermissionError(userID, testID, "test", "list results of", "not owner or insufficient permissions")
	}

	var page int
	filters.Limit, filters.Offset, page = normalizePage(filters.Limit, filters.Offset)

	results, total, err := s.repo.Result().ListByTest(ctx, nil, testID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	return &ResultListResponse{Results: results, Total: total, Page: page, Size: filters.Limit}, nil
}

// ===== HELPERS =====

func (s *attemptService) loadOpenAttempt(ctx context.Context, resultID uint, userID string) (*models.TestResult, *models.Test, error) {
	result, err := s.repo.Result().GetByID(ctx, nil, resultID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, nil, ErrResultNotFound
		}
		return nil, nil, fmt.Errorf("failed to get result: %w", err)
	}
	if result.UserID != userID {
		return nil, nil, NewPermissionError(userID, resultID, "result", "answer", "not the owner of the attempt")
	}
	if result.Status.IsFinished() {
		return nil, nil, ErrResultAlreadyCompleted
	}

	test, err := loadTest(ctx, s.repo, result.TestID, true)
	if err != nil {
		return nil, nil, err
	}
	return result, test, nil
}

func (s *attemptService) publishCompleted(ctx context.Context, result *models.TestResult, test *models.Test) {
	if s.publisher == nil {
		return
	}
	event, err := events.NewEvent(events.TopicResultCompleted, events.ResultCompletedData{
		ResultID:   result.ID,
		TestID:     result.TestID,
		UserID:     result.UserID,
		CategoryID: test.CategoryID,
		Score:      result.Score,
		MaxScore:   result.MaxScore,
		Percentage: result.Percentage,
		Passed:     result.Passed,
		TimedOut:   result.Status == models.ResultTimedOut,
		FinishedAt: *result.CompletedAt,
	})
	if err == nil {
		err = s.publisher.Publish(ctx, events.TopicResultCompleted, event)
	}
	if err != nil {
		s.logger.Error("Failed to publish result completed event", "result_id", result.ID, "error", err)
	}
}

func attemptStartError(errs ValidationErrors) error {
	for _, e := range errs {
		switch e.Rule {
		case "max_attempts":
			return ErrAttemptLimitExceeded
		case "business_logic":
			return ErrTestNotPublished
		}
	}
	return errs.OrNil()
}

// mergeSubmissions keys answers by question, letting submitted answers replace saved ones.
func mergeSubmissions(saved []models.UserAnswer, submitted []models.AnswerSubmission) map[uint]models.AnswerSubmission {
	merged := make(map[uint]models.AnswerSubmission, len(saved)+len(submitted))
	for i := range saved {
		merged[saved[i].QuestionID] = models.AnswerSubmission{
			QuestionID:        saved[i].QuestionID,
			SelectedOptionIDs: saved[i].SelectedIDs(),
			TextAnswer:        saved[i].TextAnswer,
		}
	}
	for _, a := range submitted {
		merged[a.QuestionID] = a
	}
	return merged
}

// shuffledForTaking strips answers and, when the test asks for it, shuffles questions
// with a seed derived from the attempt so a resumed attempt keeps its order.
func shuffledForTaking(test *models.Test, resultID uint) *models.Test {
	out := TestForTaking(test)
	if out.ShuffleQuestions {
		r := rand.New(rand.NewPCG(uint64(resultID), uint64(test.ID)))
		r.Shuffle(len(out.Questions), func(i, j int) {
			out.Questions[i], out.Questions[j] = out.Questions[j], out.Questions[i]
		})
	}
	return out
}

func buildReview(test *models.Test, answers []models.UserAnswer, reveal bool) []QuestionReview {
	byQuestion := lo.SliceToMap(answers, func(a models.UserAnswer) (uint, models.UserAnswer) {
		return a.QuestionID, a
	})

	reviews := make([]QuestionReview, 0, len(test.Questions))
	for _, q := range test.Questions {
		review := QuestionReview{
			QuestionID:        q.ID,
			Text:              q.Text,
			Type:              q.Type,
			Points:            q.Points,
			SelectedOptionIDs: []uint{},
		}
		if q.Type.IsChoice() {
			review.Options = lo.Map(q.Options, func(o models.AnswerOption, _ int) models.AnswerOption {
				if !reveal {
					o.IsCorrect = false
				}
				return o
			})
		}
		if a, ok := byQuestion[q.ID]; ok {
			review.SelectedOptionIDs = lo.Ternary(a.SelectedIDs() != nil, a.SelectedIDs(), []uint{})
			review.TextAnswer = a.TextAnswer
			review.IsCorrect = a.IsCorrect
			review.PointsEarned = a.PointsEarned
		}
		if reveal {
			review.Explanation = q.Explanation
			if q.Type.IsChoice() {
				review.CorrectOptionIDs = q.CorrectOptionIDs()
			} else {
				review.AcceptedAnswers = lo.FilterMap(q.Options, func(o models.AnswerOption, _ int) (string, bool) {
					return o.Text, o.IsCorrect
				})
			}
		}
		reviews = append(reviews, review)
	}
	return reviews
}
