package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"
	"gorm.io/datatypes"

	"github.com/SAP-F-2025/quiz-service/internal/ai"
	"github.com/SAP-F-2025/quiz-service/internal/events"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

type recommendationService struct {
	repo        repositories.Repository
	recommender ai.Recommender
	competency  CompetencyService
	publisher   events.EventPublisher
	logger      *slog.Logger
}

func NewRecommendationService(repo repositories.Repository, recommender ai.Recommender, competency CompetencyService, publisher events.EventPublisher, logger *slog.Logger) RecommendationService {
	if recommender == nil {
		recommender = ai.NoopRecommender{}
	}
	return &recommendationService{
		repo:        repo,
		recommender: recommender,
		competency:  competency,
		publisher:   publisher,
		logger:      logger,
	}
}

// Generate returns the stored recommendation for a finished result, asking the model
// for a new one when none is ready yet or force is set.
func (s *recommendationService) Generate(ctx context.Context, resultID uint, userID string, force bool) (*models.AIRecommendation, error) {
	s.logger.Info("Generating recommendation", "result_id", resultID, "user_id", userID, "force", force)

	result, test, err := s.loadAccessible(ctx, resultID, userID)
	if err != nil {
		return nil, err
	}
	return s.generate(ctx, result, test, force)
}

func (s *recommendationService) Get(ctx context.Context, resultID uint, userID string) (*models.AIRecommendation, error) {
	if _, _, err := s.loadAccessible(ctx, resultID, userID); err != nil {
		return nil, err
	}
	rec, err := s.repo.Recommendation().GetByResult(ctx, nil, resultID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrRecommendationNotFound
		}
		return nil, fmt.Errorf("failed to get recommendation: %w", err)
	}
	return rec, nil
}

func (s *recommendationService) ListMine(ctx context.Context, userID string) ([]*models.AIRecommendation, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	return s.repo.Recommendation().ListByUser(ctx, nil, userID)
}

// HandleResultCompleted generates feedback for results announced on the event bus.
// Model failures are recorded on the recommendation and not retried.
func (s *recommendationService) HandleResultCompleted(ctx context.Context, event *events.Event) error {
	var data events.ResultCompletedData
	if err := event.Decode(&data); err != nil {
		return err
	}

	result, err := s.repo.Result().GetByIDWithAnswers(ctx, nil, data.ResultID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			s.logger.Warn("Result for completed event not found", "result_id", data.ResultID, "event_id", event.ID)
			return nil
		}
		return err
	}
	test, err := loadTest(ctx, s.repo, result.TestID, false)
	if err != nil {
		if errors.Is(err, ErrTestNotFound) {
			return nil
		}
		return err
	}

	if _, err := s.generate(ctx, result, test, false); err != nil {
		if errors.Is(err, ErrAIUnavailable) || errors.Is(err, ErrResultNotCompleted) {
			s.logger.Warn("Skipping recommendation", "result_id", data.ResultID, "reason", err)
			return nil
		}
		return err
	}
	return nil
}

// ===== HELPERS =====

func (s *recommendationService) loadAccessible(ctx context.Context, resultID uint, userID string) (*models.TestResult, *models.Test, error) {
	role, err := getUserRole(ctx, s.repo, userID)
	if err != nil {
		return nil, nil, err
	}
	result, err := s.repo.Result().GetByIDWithAnswers(ctx, nil, resultID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, nil, ErrResultNotFound
		}
		return nil, nil, fmt.Errorf("failed to get result: %w", err)
	}
	test, err := loadTest(ctx, s.repo, result.TestID, false)
	if err != nil {
		return nil, nil, err
	}
	if result.UserID != userID && !canManageTest(test, userID, role) {
		return nil, nil, NewPermissionError(userID, resultID, "result", "read", "not the owner of the result")
	}
	return result, test, nil
}

func (s *recommendationService) generate(ctx context.Context, result *models.TestResult, test *models.Test, force bool) (*models.AIRecommendation, error) {
	if !result.Status.IsFinished() {
		return nil, ErrResultNotCompleted
	}
	if _, disabled := s.recommender.(ai.NoopRecommender); disabled {
		return nil, fmt.Errorf("%w: %v", ErrAIUnavailable, ai.ErrAIDisabled)
	}

	rec, err := s.repo.Recommendation().GetByResult(ctx, nil, result.ID)
	switch {
	case err == nil:
		if rec.Status == models.RecommendationReady && !force {
			return rec, nil
		}
	case repositories.IsNotFoundError(err):
		rec = nil
	default:
		return nil, fmt.Errorf("failed to get recommendation: %w", err)
	}

	input, err := s.buildPrompt(ctx, result, test)
	if err != nil {
		return nil, err
	}
	promptContext, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to encode prompt context: %w", err)
	}

	if rec == nil {
		rec = &models.AIRecommendation{
			UserID:   result.UserID,
			ResultID: result.ID,
			TestID:   result.TestID,
			Status:   models.RecommendationPending,
		}
		if err := s.repo.Recommendation().Create(ctx, nil, rec); err != nil {
			if !repositories.IsDuplicateError(err) {
				return nil, err
			}
			// a concurrent request stored the row first
			existing, err := s.repo.Recommendation().GetByResult(ctx, nil, result.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to get recommendation: %w", err)
			}
			if existing.Status == models.RecommendationReady && !force {
				return existing, nil
			}
			rec = existing
		}
	}
	rec.PromptContext = datatypes.JSON(promptContext)
	rec.Model = s.recommender.Model()

	out, genErr := s.recommender.Recommend(ctx, input)
	if genErr != nil {
		msg := genErr.Error()
		rec.Status = models.RecommendationFailed
		rec.Error = &msg
	} else {
		rec.Status = models.RecommendationReady
		rec.Content = out.Content
		rec.Model = lo.CoalesceOrEmpty(out.Model, rec.Model)
		rec.Error = nil
	}
	if err := s.repo.Recommendation().Update(ctx, nil, rec); err != nil {
		return nil, err
	}

	if genErr != nil {
		s.logger.Error("Recommendation generation failed", "result_id", result.ID, "error", genErr)
		return nil, fmt.Errorf("%w: %v", ErrAIUnavailable, genErr)
	}

	s.logger.Info("Recommendation ready", "recommendation_id", rec.ID, "result_id", result.ID, "model", rec.Model)
	s.publishReady(ctx, rec)
	return rec, nil
}

func (s *recommendationService) publishReady(ctx context.Context, rec *models.AIRecommendation) {
	if s.publisher == nil {
		return
	}
	event, err := events.NewEvent(events.TopicRecommendationReady, events.RecommendationReadyData{
		RecommendationID: rec.ID,
		ResultID:         rec.ResultID,
		UserID:           rec.UserID,
		Model:            rec.Model,
	})
	if err == nil {
		err = s.publisher.Publish(ctx, events.TopicRecommendationReady, event)
	}
	if err != nil {
		s.logger.Error("Failed to publish recommendation ready event", "recommendation_id", rec.ID, "error", err)
	}
}

func (s *recommendationService) buildPrompt(ctx context.Context, result *models.TestResult, test *models.Test) (ai.PromptInput, error) {
	input := ai.PromptInput{
		UserName:   s.displayName(ctx, result.UserID),
		TestTitle:  test.Title,
		Score:      result.Score,
		MaxScore:   result.MaxScore,
		Percentage: result.Percentage,
		Passed:     result.Passed,
		ScaleLabel: derefString(result.ScaleLabel),
		TimeSpent:  result.TimeSpent,
	}

	if test.CategoryID != nil {
		if category, err := s.repo.Category().GetByID(ctx, nil, *test.CategoryID); err == nil {
			input.CategoryName = category.Name
		}
	}

	if s.competency != nil {
		uc, err := s.competency.ForUser(ctx, result.UserID, nil)
		if err != nil {
			return input, err
		}
		input.Competencies = lo.Map(uc.Competencies, func(c models.CompetencyScore, _ int) ai.CompetencyLine {
			return ai.CompetencyLine{Name: c.CategoryName, Percentage: c.Percentage}
		})
	}

	for _, a := range result.Answers {
		if a.IsCorrect || a.Question == nil {
			continue
		}
		input.Missed = append(input.Missed, missedQuestion(a.Question, &a))
	}
	return input, nil
}

func (s *recommendationService) displayName(ctx context.Context, userID string) string {
	if p, err := s.repo.Profile().GetByID(ctx, nil, userID); err == nil && p.FullName != "" {
		return p.FullName
	}
	if u, err := s.repo.User().GetByID(ctx, userID); err == nil && u.FullName != "" {
		return u.FullName
	}
	return "Learner"
}

func missedQuestion(q *models.Question, a *models.UserAnswer) ai.MissedQuestion {
	optionText := lo.SliceToMap(q.Options, func(o models.AnswerOption) (uint, string) { return o.ID, o.Text })

	var given string
	if q.Type.IsChoice() {
		given = strings.Join(lo.FilterMap(a.SelectedIDs(), func(id uint, _ int) (string, bool) {
			text, ok := optionText[id]
			return text, ok
		}), "; ")
	} else {
		given = strings.TrimSpace(derefString(a.TextAnswer))
	}

	correct := lo.FilterMap(q.Options, func(o models.AnswerOption, _ int) (string, bool) {
		return o.Text, o.IsCorrect
	})
	separator := lo.Ternary(q.Type.IsChoice(), "; ", " or ")

	return ai.MissedQuestion{
		Question:    q.Text,
		Given:       given,
		Correct:     strings.Join(correct, separator),
		Explanation: derefString(q.Explanation),
	}
}
